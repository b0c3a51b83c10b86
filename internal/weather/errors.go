package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is returned when the provider could not be reached or did not answer.
	ErrTransport = errors.New("failed to get response")

	// ErrParse is returned when a provider body lacks the expected fields.
	ErrParse = errors.New("failed to parse weather response")
)

// Parse stages.
const (
	StageShape  = "shape"
	StageCoerce = "coerce"
)

// ParseError describes which step of Parse rejected the body.
type ParseError struct {
	Stage string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s: %v", ErrParse, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %s %s: %v", ErrParse, e.Stage, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is reports ParseError as ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }
