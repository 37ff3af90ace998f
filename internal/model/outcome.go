package model

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Tristate is a boolean that may also be unknown.
// An Outcome uses it because a timeout leaves success undetermined and a
// transport failure leaves availability undetermined.
type Tristate int

const (
	// Unknown means the value could not be determined.
	Unknown Tristate = iota
	// True is a known true value.
	True
	// False is a known false value.
	False
)

// TristateOf converts a bool into a known Tristate.
func TristateOf(b bool) Tristate {
	if b {
		return True
	}
	return False
}

// String returns "true", "false" or "unknown".
func (t Tristate) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes Unknown as null.
func (t Tristate) MarshalJSON() ([]byte, error) {
	switch t {
	case True:
		return []byte("true"), nil
	case False:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes true, false and null.
func (t *Tristate) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("invalid tristate %s: %w", string(data), err)
	}
	if b == nil {
		*t = Unknown
		return nil
	}
	*t = TristateOf(*b)
	return nil
}

// Outcome is the result of checking one URL.
//
//   - response received: Availability=True, Success=True only for 200 OK, StatusCode set
//   - timeout:           Availability=False, Success=Unknown, no StatusCode
//   - other failure:     Availability=Unknown, Success=False, no StatusCode
//
// StatusCode is zero when no response was received.
type Outcome struct {
	// Availability reports whether the request completed without a
	// timeout or connection failure.
	Availability Tristate `json:"availability"`

	// Success reports whether the response status was 200 OK.
	Success Tristate `json:"success"`

	// StatusCode is the HTTP status code, or 0 when there was no response.
	StatusCode int `json:"status_code,omitempty"`

	// Err holds the transport error text for timeouts and failures.
	// It is informational only; classification never looks at it.
	Err string `json:"error,omitempty"`
}

// Responded builds the Outcome of a request that received a response.
func Responded(code int) Outcome {
	return Outcome{
		Availability: True,
		Success:      TristateOf(code == http.StatusOK),
		StatusCode:   code,
	}
}

// TimedOut builds the Outcome of a request that exceeded its timeout.
func TimedOut(err error) Outcome {
	o := Outcome{
		Availability: False,
		Success:      Unknown,
	}
	if err != nil {
		o.Err = err.Error()
	}
	return o
}

// Unreachable builds the Outcome of a request that failed for any reason
// other than a timeout (DNS failure, refused connection, TLS error, ...).
func Unreachable(err error) Outcome {
	o := Outcome{
		Availability: Unknown,
		Success:      False,
	}
	if err != nil {
		o.Err = err.Error()
	}
	return o
}

// HasStatus reports whether a response status code was recorded.
func (o Outcome) HasStatus() bool {
	return o.StatusCode != 0
}

// IsTimeout reports whether the Outcome describes a timeout.
func (o Outcome) IsTimeout() bool {
	return o.Availability == False && o.Success == Unknown
}

// String returns a short human-readable description.
func (o Outcome) String() string {
	switch {
	case o.HasStatus():
		return fmt.Sprintf("%d %s", o.StatusCode, http.StatusText(o.StatusCode))
	case o.IsTimeout():
		return "timeout"
	default:
		return "not available"
	}
}
