package entitlement

import "errors"

// DeniedError is the expected, recoverable outcome of an enforce call:
// the organization's plan does not permit the requested operation. The
// HTTP layer translates it into a 403 with the reason and upgrade hint;
// it is never logged as an application error.
type DeniedError struct {
	Reason          string
	UpgradeRequired bool
}

// Error implements the error interface.
func (e *DeniedError) Error() string {
	return e.Reason
}

// AsDenied extracts a DeniedError from an error chain.
func AsDenied(err error) (*DeniedError, bool) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied, true
	}
	return nil, false
}
