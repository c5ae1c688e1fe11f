package tree

import (
	"errors"
	"fmt"
)

// ErrMalformedValue is the sentinel matched by every MalformedValueError.
var ErrMalformedValue = errors.New("malformed value")

// MalformedValueError reports a value that cannot be copied or serialized,
// such as a Map that contains itself or a Go value with no tree equivalent.
type MalformedValueError struct {
	// Path locates the offending value, e.g. `user.tags[2]`. Empty for the root.
	Path string

	// Reason is a human-readable description.
	Reason string
}

// Error implements the error interface.
func (e *MalformedValueError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrMalformedValue, e.Reason)
	}
	return fmt.Sprintf("%s at %s: %s", ErrMalformedValue, e.Path, e.Reason)
}

// Is lets errors.Is(err, ErrMalformedValue) match.
func (e *MalformedValueError) Is(target error) bool {
	return target == ErrMalformedValue
}

// IsMalformed returns true if err is or wraps a MalformedValueError.
func IsMalformed(err error) bool {
	var me *MalformedValueError
	return errors.As(err, &me)
}

func malformed(path, format string, args ...any) *MalformedValueError {
	return &MalformedValueError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// childPath extends a diagnostic path with a map key.
func childPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// indexPath extends a diagnostic path with an array index.
func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
