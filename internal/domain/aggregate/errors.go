package aggregate

import "errors"

// Sentinel kinds for aggregation outcomes. The first two are soft
// failures: the request was well-formed but the models did not produce
// a usable consensus.
var (
	ErrInsufficientConfidence = errors.New("no results above confidence threshold")
	ErrNoAgreement            = errors.New("no unanimous agreement among models")
	ErrUnknownStrategy        = errors.New("unknown consensus strategy")
)
