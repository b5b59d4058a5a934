package storage

import "time"

// ListEntry describes one object (or directory-like prefix) returned by
// Backend.List.
//
// Name is backend-relative and forward-slash separated. Prefix entries carry
// a zero LastModified and a zero Size; IsPrefix distinguishes them. Entries
// are never mutated after construction. Ordering across backends is
// unspecified except for the local filesystem backend, which sorts by name.
type ListEntry struct {
	Name         string
	LastModified time.Time
	Size         int64
}

// IsPrefix reports whether the entry is a directory-like prefix rather than
// a concrete object.
func (e ListEntry) IsPrefix() bool {
	return e.LastModified.IsZero()
}
