package arscwriter

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Source locates a declaration in the original resource sources, for error
// reporting only. The zero Source means "unknown".
type Source struct {
	Path string
	Line int
}

func (s Source) String() string {
	if s.Path == "" {
		return "<unknown>"
	}
	if s.Line == 0 {
		return s.Path
	}
	return fmt.Sprintf("%s:%d", s.Path, s.Line)
}

// Diagnostic is one source-located error message.
type Diagnostic struct {
	Source  Source
	Message string
}

func (d Diagnostic) String() string {
	return d.Source.String() + ": " + d.Message
}

// Diagnostics collects errors raised during one flatten invocation. It is
// threaded explicitly through every encoder; there is no process-wide sink.
type Diagnostics struct {
	diags []Diagnostic
}

func (d *Diagnostics) Errorf(src Source, format string, args ...interface{}) {
	d.diags = append(d.diags, Diagnostic{Source: src, Message: fmt.Sprintf(format, args...)})
}

func (d *Diagnostics) HasErrors() bool {
	return len(d.diags) > 0
}

func (d *Diagnostics) Errors() []Diagnostic {
	return d.diags
}

// Err folds the collected diagnostics into a single error, or nil.
func (d *Diagnostics) Err() error {
	if len(d.diags) == 0 {
		return nil
	}
	msgs := make([]string, len(d.diags))
	for i, dg := range d.diags {
		msgs[i] = dg.String()
	}
	return errors.New(strings.Join(msgs, "; "))
}
