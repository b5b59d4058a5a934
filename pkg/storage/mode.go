package storage

import "fmt"

// FileMode describes the intent a RemoteFile is opened with.
//
// Modes are small bitmasks so read and write intent can be combined.
// Most backends only implement one direction per handle; combinations a
// backend does not support are rejected at Open with
// ErrUnsupportedOperation.
type FileMode uint8

const (
	// ModeRead allows Read calls on the handle.
	ModeRead FileMode = 1 << iota
	// ModeWrite allows Write calls on the handle.
	ModeWrite
)

// CanRead reports whether the mode includes read intent.
func (m FileMode) CanRead() bool { return m&ModeRead != 0 }

// CanWrite reports whether the mode includes write intent.
func (m FileMode) CanWrite() bool { return m&ModeWrite != 0 }

// String renders the mode in the conventional "r"/"w"/"rw" form.
func (m FileMode) String() string {
	var s string
	if m.CanRead() {
		s += "r"
	}
	if m.CanWrite() {
		s += "w"
	}
	return s
}

// ParseMode converts a mode string into a FileMode.
//
// The encoding is order-insensitive: "rw" and "wr" both map to
// ModeRead|ModeWrite. Characters other than 'r' and 'w' are ignored, so an
// unrecognized string parses to FileMode(0); backends reject the zero mode
// at Open rather than here.
func ParseMode(s string) FileMode {
	var m FileMode
	for _, c := range s {
		switch c {
		case 'r':
			m |= ModeRead
		case 'w':
			m |= ModeWrite
		}
	}
	return m
}

// AsMode normalizes a FileMode or mode string to a FileMode. Any other type
// is rejected.
func AsMode(v any) (FileMode, error) {
	switch m := v.(type) {
	case FileMode:
		return m, nil
	case string:
		return ParseMode(m), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to FileMode", v)
	}
}
