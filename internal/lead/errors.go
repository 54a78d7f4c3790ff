package lead

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrMalformedResponse marks a model response whose body was not the expected JSON.
// It only ever appears in Result.Malformed.
var ErrMalformedResponse = eris.New("malformed model response")

// ErrEmptyKeyword is returned when a prospecting call is made without a keyword.
var ErrEmptyKeyword = eris.New("keyword is required")

// RequestError is a failed call to the model provider. These always propagate.
type RequestError struct {
	Provider string
	Code     int
	Status   string

	// Transient is informational: nothing in this module retries.
	Transient bool

	Err error
}

func (e *RequestError) Error() string {
	if e == nil {
		return "model request failed"
	}
	parts := []string{fmt.Sprintf("%s request failed", strings.TrimSpace(e.Provider))}
	if e.Code != 0 {
		parts = append(parts, fmt.Sprintf("code=%d", e.Code))
	}
	if strings.TrimSpace(e.Status) != "" {
		parts = append(parts, "status="+strings.TrimSpace(e.Status))
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, " ")
}

func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
