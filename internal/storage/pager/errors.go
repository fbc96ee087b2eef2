package pager

import "errors"

// Domain errors returned by the B+Tree and its pager. The taxonomy is
// flat and explicit: callers compare with errors.Is or ==, never string
// matching.
var (
	// ErrKeyNotFound is returned by Delete when no live entry matches the
	// given key; an entry that is already tombstoned does not count.
	ErrKeyNotFound = errors.New("pager: key not found")

	// ErrDuplicateKey is returned by Insert on a unique tree when the key
	// already exists with a live (non-tombstoned) entry.
	ErrDuplicateKey = errors.New("pager: duplicate key")

	// ErrPageNotFound is returned by a Pager when the requested
	// identifier has never been written. The BTree treats this as fatal:
	// it never asks for a page it has not allocated.
	ErrPageNotFound = errors.New("pager: page not found")
)
