package oar

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`
	// Hint is a unix timestamp suggested by the scheduler when it refuses
	// a reservation date.
	Hint int64 `json:"hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("oar api: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("oar api: %d: %s", e.StatusCode, e.Message)
}

func apiErrorCode(err error, code string) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == code {
		return apiErr, true
	}
	return nil, false
}

// IsInvalidReservationTime reports whether err refuses a reservation date
// and returns the scheduler's hint, zero when it gave none.
func IsInvalidReservationTime(err error) (int64, bool) {
	apiErr, ok := apiErrorCode(err, CodeInvalidReservationTime)
	if !ok {
		return 0, false
	}
	return apiErr.Hint, true
}

// IsReservationTooOld reports whether err refuses a date in the past.
func IsReservationTooOld(err error) bool {
	_, ok := apiErrorCode(err, CodeReservationTooOld)
	return ok
}

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
