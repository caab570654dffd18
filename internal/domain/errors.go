package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrProviderFailure = errors.New("provider failure")
	ErrNoSegments      = errors.New("no valid segments")
)

// ErrorKind classifies provider-reported failures so callers can decide
// between retrying, rotating credentials, or giving up on the item.
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	// KindTransient covers timeouts and 5xx-class "service busy" responses.
	// Retry with the same or a rotated credential; never disable.
	KindTransient
	// KindCredentialFatal covers 401/402/403/429-class responses. The
	// credential is burned: disable it and rotate.
	KindCredentialFatal
	// KindItemTerminal means the item cannot proceed at this step in this run.
	KindItemTerminal
	// KindNotFound is a provider-reported 404 for the requested resource.
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindCredentialFatal:
		return "credential_fatal"
	case KindItemTerminal:
		return "item_terminal"
	case KindNotFound:
		return "not_found"
	default:
		return "unexpected"
	}
}

// ProviderError is the typed result variant for expected provider failures.
// Structured outcomes such as 404 or quota exhaustion travel as values rather
// than panics so the orchestrator can match on Kind.
type ProviderError struct {
	Kind    ErrorKind
	Status  int
	Service string
	Msg     string
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d, %s)", e.Service, e.Msg, e.Status, e.Kind)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Service, e.Msg, e.Kind)
}

// KindOf extracts the ErrorKind from err, or KindUnexpected when err does not
// wrap a ProviderError.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnexpected
}

// ClassifyStatus maps an HTTP status code onto the retry taxonomy shared by
// the transcript and analysis providers.
func ClassifyStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 402 || status == 403 || status == 429:
		return KindCredentialFatal
	case status == 404:
		return KindNotFound
	case status >= 500:
		return KindTransient
	default:
		return KindItemTerminal
	}
}
