package mistifly

import (
	"errors"
	"fmt"
)

// ErrorKind classifies upstream failures so callers can branch on kind
// instead of inspecting message strings.
type ErrorKind string

const (
	// KindNetwork: the request never produced a usable response.
	KindNetwork ErrorKind = "network"
	// KindAuth: credentials rejected even after a session refresh.
	KindAuth ErrorKind = "auth"
	// KindUpstream: the hub answered with an explicit error.
	KindUpstream ErrorKind = "upstream"
	// KindNotFound: the referenced offer or order does not exist upstream.
	KindNotFound ErrorKind = "not_found"
	// KindUnavailable: the hub explicitly declined the itinerary
	// (no longer bookable at any price).
	KindUnavailable ErrorKind = "unavailable"
	// KindAmbiguous: the revalidation response carried no pricing data at
	// all. Terminal in production; bypassed only behind the sandbox flag.
	KindAmbiguous ErrorKind = "ambiguous"
)

type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mistifly: %s (kind=%s status=%d)", e.Message, e.Kind, e.StatusCode)
}

// KindOf extracts the error kind, or KindNetwork for anything that is not an
// APIError (transport-level failures surface untyped).
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindNetwork
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
