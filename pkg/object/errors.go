package object

import "errors"

var (
	// ErrObjectNotFound means no stored object matches a hash or prefix.
	ErrObjectNotFound = errors.New("object not found")
	// ErrAmbiguousObject means a prefix matches more than one object.
	ErrAmbiguousObject = errors.New("ambiguous object name")
	// ErrCorruptObject means a stored object failed to decompress or parse.
	ErrCorruptObject = errors.New("corrupt object")
	// ErrInvalidIdentity means a signature identity cannot be stored in a
	// commit header.
	ErrInvalidIdentity = errors.New("invalid identity")
)
