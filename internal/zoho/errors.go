package zoho

import (
	"errors"
	"fmt"
)

// ErrNoRecords is returned by Document.First when the data array is empty.
var ErrNoRecords = errors.New("no records found")

// AuthProviderError means the OAuth token refresh did not succeed. Err is set
// when the token endpoint could not be reached at all.
type AuthProviderError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to get zoho access token: %v", e.Err)
	}
	return fmt.Sprintf("failed to get zoho access token (status %d): %s", e.StatusCode, e.Body)
}

func (e *AuthProviderError) Unwrap() error {
	return e.Err
}

// CrmRequestError means a CRM data call answered with a non-2xx status.
type CrmRequestError struct {
	Module     string
	StatusCode int
	Body       string
}

func (e *CrmRequestError) Error() string {
	return fmt.Sprintf("failed to fetch from zoho %s (status %d): %s", e.Module, e.StatusCode, e.Body)
}
