package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowed(t *testing.T) {
	filters := []*CommonFilter{
		{Field: "tier", Operator: CommonFilterOperatorEq, Values: []any{"promo"}},
		{Field: "status", Operator: CommonFilterOperatorIn, Values: []any{"active", "expired"}},
	}
	require.NoError(t, Allowed(filters, "tier", "status", "user_id"))

	err := Allowed(append(filters, &CommonFilter{Field: "1=1; drop table", Operator: CommonFilterOperatorEq}), "tier", "status")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not allowed")
}
