package store

import "errors"

// ErrWriterClosed is returned by Flush after the Writer was closed.
var ErrWriterClosed = errors.New("store: writer closed")
