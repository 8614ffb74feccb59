package pm25

import "fmt"

// Kind separates transport failures from payload failures
type Kind string

const (
	KindNetwork Kind = "network"
	KindData    Kind = "data"
)

// Reason is a fixed, user-presentable description of what failed
type Reason string

const (
	ReasonInvalidURL    Reason = "invalid URL"
	ReasonBadStatus     Reason = "server returned an error"
	ReasonRequestFailed Reason = "request failed"
	ReasonParse         Reason = "unable to parse response data"
	ReasonInvalidType   Reason = "value is not a valid type"
)

// Error is returned by Client.FetchReading. The wrapped error carries the
// diagnostic detail and is meant for logs only.
type Error struct {
	Kind   Kind
	Reason Reason
	Status int // HTTP status for ReasonBadStatus
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func networkError(reason Reason, err error) *Error {
	return &Error{Kind: KindNetwork, Reason: reason, Err: err}
}

func dataError(reason Reason, err error) *Error {
	return &Error{Kind: KindData, Reason: reason, Err: err}
}
