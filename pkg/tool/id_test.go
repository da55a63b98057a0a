package tool

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGenerateUUIDV7(t *testing.T) {
	id, err := uuid.Parse(GenerateUUIDV7())
	require.NoError(t, err)
	require.Equal(t, uuid.Version(7), id.Version())
}

func TestNormalizePromoCode(t *testing.T) {
	require.Equal(t, "SUMMER25", NormalizePromoCode("  summer25\n"))
	require.Equal(t, "", NormalizePromoCode("   "))
}
