// Package errs defines the error taxonomy raised by the config loader,
// condition compiler, and dependency resolver. Each kind is fatal at the
// point it is raised; none of them are used to signal per-cell validation
// failures, which are recorded as data on the cell instead (see
// internal/validate).
package errs

import "fmt"

// ConfigError reports a problem with the table/column/datatype/rule
// configuration itself: a missing required column, an undefined
// reference, an unrecognized condition, and so on.
type ConfigError struct {
	Path    string // source TSV file, when known
	Message string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s reading '%s'", e.Message, e.Path)
}

// NewConfigError builds a ConfigError with a formatted message and no
// associated file path.
func NewConfigError(format string, args ...any) error {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// NewConfigErrorIn builds a ConfigError scoped to the given source file.
func NewConfigErrorIn(path, format string, args ...any) error {
	return &ConfigError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// CycleError reports a dependency cycle discovered by the dependency
// resolver, either among a single table's tree constraints or among
// foreign/under edges across tables.
type CycleError struct {
	Message string
	Cycle   []string
}

func (e *CycleError) Error() string {
	return e.Message
}

// NewCycleError builds a CycleError carrying the offending cycle (for
// programmatic inspection) and a human-readable message.
func NewCycleError(message string, cycle []string) error {
	return &CycleError{Message: message, Cycle: cycle}
}

// TSVReadError reports a problem reading an input TSV file: the file is
// missing, empty, or its header does not match what a caller requires.
type TSVReadError struct {
	Path    string
	Message string
}

func (e *TSVReadError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// NewTSVReadError builds a TSVReadError for the given path.
func NewTSVReadError(path, format string, args ...any) error {
	return &TSVReadError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// ValidationError reports a structural problem discovered while running a
// check rather than while loading configuration — e.g. a structure
// expression that refers to a tree which was never declared.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
