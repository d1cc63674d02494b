package parse

import (
	"fmt"
	"sort"

	"github.com/FocuswithJustin/ceparser/core/tree"
)

// Diagnostic categories.
const (
	CategoryStructural = "Parsing error"
	CategoryUnresolved = "Unknown token"
	CategoryFatal      = "Unrecognized parsing error"
)

// Fixed severities. Unresolved-token diagnostics are scored after parsing.
const (
	SeverityStructural = 100
	SeverityFatal      = 1000
)

// Error is one diagnostic collected while parsing.
type Error struct {
	Position int
	Category string
	Details  string
	Severity int
	// Entity is the tree element the diagnostic is attached to, if any.
	Entity tree.Entity
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at %d (severity %d): %s", e.Category, e.Position, e.Severity, e.Details)
}

// Deferred reports whether the severity is still waiting to be scored.
func (e *Error) Deferred() bool {
	return e.Severity <= 0 && e.Entity != nil
}

// Log is the ordered list of diagnostics of one parse.
type Log struct {
	errs  []*Error
	fatal *Error
}

// Add appends e. The first fatal diagnostic is also remembered separately.
func (l *Log) Add(e *Error) {
	l.errs = append(l.errs, e)
	if e.Category == CategoryFatal && l.fatal == nil {
		l.fatal = e
	}
}

// Errors returns the diagnostics in the order they were recorded.
func (l *Log) Errors() []*Error {
	out := make([]*Error, len(l.errs))
	copy(out, l.errs)
	return out
}

// Len returns the number of diagnostics.
func (l *Log) Len() int { return len(l.errs) }

// Fatal returns the diagnostic that aborted the parse, or nil.
func (l *Log) Fatal() *Error { return l.fatal }

// MaxSeverity returns the highest severity in the log, 0 when empty.
func (l *Log) MaxSeverity() int {
	top := 0
	for _, e := range l.errs {
		top = max(top, e.Severity)
	}
	return top
}

// BySeverity returns the diagnostics ordered from most to least severe.
// Diagnostics of equal severity keep their recorded order.
func (l *Log) BySeverity() []*Error {
	out := l.Errors()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Severity > out[j].Severity })
	return out
}

// Resolve scores every deferred diagnostic as the size of the attached subtree:
// the number of descendants plus one. In legacy mode every deferred diagnostic
// scores 1.
func (l *Log) Resolve(legacy bool) {
	for _, e := range l.errs {
		if !e.Deferred() {
			continue
		}
		if legacy {
			e.Severity = 1
			continue
		}
		e.Severity = tree.DescendantCount(e.Entity) + 1
	}
}
