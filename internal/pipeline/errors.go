package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedRecord    = errors.New("malformed primary record")
	ErrMissingCompanyName = errors.New("missing company_name")
	ErrMalformedAuxLine   = errors.New("malformed auxiliary line")
)

// RecordError ties a per-line failure to its position in a feed.
type RecordError struct {
	Source string
	LineNo int
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s line %d: %v", e.Source, e.LineNo, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
