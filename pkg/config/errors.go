// pkg/config/errors.go
package config

import "fmt"

// ErrorKind is a stable machine-readable classification of a
// configuration failure. Boot maps each kind to a distinct exit code.
type ErrorKind string

const (
	// ErrFile covers the whole file class: missing, unreadable or
	// undecodable.
	ErrFile   ErrorKind = "CONFIG_FILE_ERROR"
	ErrSchema ErrorKind = "CONFIG_SCHEMA_ERROR"
	ErrSecret ErrorKind = "CONFIG_SECRET_ERROR"
	ErrRealm  ErrorKind = "CONFIG_REALM_ERROR"
)

// Error carries the failure kind plus enough context for an operator
// to locate the offending entry. Secrets are referenced by name only,
// never echoed.
type Error struct {
	Kind   ErrorKind
	Path   string // config file path or tree path ("iam.realms.acme")
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("config: %s", e.Kind)
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }
