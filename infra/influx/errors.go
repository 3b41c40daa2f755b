package influx

import (
	"errors"
	"fmt"
)

var (
	// ErrStatus marks a write rejected with a non-2xx HTTP status.
	ErrStatus = errors.New("unexpected http status")
	// ErrUnknownMode is returned by NewSender for an unsupported mode.
	ErrUnknownMode = errors.New("unknown influxdb mode")
)

// StatusError carries the response of a rejected write.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned HTTP response code %d for URL %s", e.Code, e.URL)
	}
	return fmt.Sprintf("server returned HTTP response code %d for URL %s: %s", e.Code, e.URL, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Retryable reports whether the status may succeed on a later attempt.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == 429
}
