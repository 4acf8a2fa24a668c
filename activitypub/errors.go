package activitypub

import "errors"

// Error taxonomy. Validation errors are never retried, trust errors are
// rejected and logged, transport errors on the resolver are surfaced to
// the gateway as upstream failures. Only the gateway translates these
// into HTTP statuses.
var (
	// Validation
	ErrMalformed         = errors.New("malformed activity")
	ErrMalformedActor    = errors.New("malformed actor document")
	ErrUnknownObjectType = errors.New("unknown object type")

	// Trust
	ErrInvalidActor      = errors.New("invalid actor uri")
	ErrForbiddenDomain   = errors.New("domain not allowed to federate")
	ErrMissingSignature  = errors.New("missing http signature")
	ErrUnknownKey        = errors.New("unparseable actor key")
	ErrSignatureMismatch = errors.New("http signature mismatch")
	ErrOriginMismatch    = errors.New("actor and object origins differ")

	// Transport
	ErrFetchFailed = errors.New("remote fetch failed")
)
