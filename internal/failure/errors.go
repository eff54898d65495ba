package failure

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration     = errors.New("configuration error")
	ErrTransportCreation = errors.New("transport creation error")
	ErrCopy              = errors.New("copy error")
	ErrMalformedRecord   = errors.New("malformed record")
)

// ConfigurationError reports a missing or invalid startup parameter.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	field := strings.TrimSpace(e.Field)
	if field == "" {
		return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s", ErrConfiguration, field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// Configuration builds a ConfigurationError for field.
func Configuration(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}

// TransportCreationError reports that the transport endpoint could not be
// created or opened.
type TransportCreationError struct {
	Path string
	Err  error
}

func (e *TransportCreationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrTransportCreation, e.Path)
	}
	return fmt.Sprintf("%s: %s: %v", ErrTransportCreation, e.Path, e.Err)
}

func (e *TransportCreationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransportCreation}
	}
	return []error{ErrTransportCreation, e.Err}
}

// CopyError reports a failed copy of a single file.
type CopyError struct {
	Source      string
	Destination string
	Err         error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("%s: %s -> %s: %v", ErrCopy, e.Source, e.Destination, e.Err)
}

func (e *CopyError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCopy}
	}
	return []error{ErrCopy, e.Err}
}

// Wrap builds an error message that includes component context while tagging
// it with marker for later classification. A nil marker is treated as a copy
// failure.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrCopy
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short classification label for err, used as a log field.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrTransportCreation):
		return "transport"
	case errors.Is(err, ErrMalformedRecord):
		return "malformed_record"
	case errors.Is(err, ErrCopy):
		return "copy"
	default:
		return "unknown"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
