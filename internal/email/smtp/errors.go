package smtp

import "fmt"

// Error is a failed SMTP step. Transient failures happen while talking to the
// server and are worth retrying.
type Error struct {
	Op        string
	Err       error
	Transient bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("smtp %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) IsRecoverable() bool { return e.Transient }
