package types

// Unlimited marks a quota dimension without a cap. It is only ever compared
// for equality, never numerically.
const Unlimited = -1

type QuotaAction string

const (
	QuotaActionUpload        QuotaAction = "upload"
	QuotaActionVocalExercise QuotaAction = "vocal_exercise"
)

// FailurePolicy decides what a quota check answers when usage cannot be read.
type FailurePolicy string

const (
	FailClosed FailurePolicy = "closed"
	FailOpen   FailurePolicy = "open"
)
