package storage

import "fmt"

// ShareLinkOperation describes the operations a share link permits.
//
// Operations combine as bitmasks. The string form uses one character per
// flag ('d', 'u', 'r') and always stringifies in that canonical order, so a
// value round-trips regardless of the order it was parsed from.
type ShareLinkOperation uint8

const (
	// OperationDownload permits fetching the object body.
	OperationDownload ShareLinkOperation = 1 << iota
	// OperationUpload permits replacing the object body.
	OperationUpload
	// OperationRemove permits deleting the object.
	OperationRemove
)

// Has reports whether every flag in op is present.
func (o ShareLinkOperation) Has(op ShareLinkOperation) bool { return o&op == op }

// String renders the operations in canonical 'd','u','r' order.
func (o ShareLinkOperation) String() string {
	var s string
	if o.Has(OperationDownload) {
		s += "d"
	}
	if o.Has(OperationUpload) {
		s += "u"
	}
	if o.Has(OperationRemove) {
		s += "r"
	}
	return s
}

// ParseOperation converts an operation string into a ShareLinkOperation.
//
// Input order is irrelevant; characters outside 'd','u','r' are an error
// since operation strings travel inside signed tokens and must be exact.
func ParseOperation(s string) (ShareLinkOperation, error) {
	var o ShareLinkOperation
	for _, c := range s {
		switch c {
		case 'd':
			o |= OperationDownload
		case 'u':
			o |= OperationUpload
		case 'r':
			o |= OperationRemove
		default:
			return 0, fmt.Errorf("invalid share link operation %q", string(c))
		}
	}
	return o, nil
}

// AsOperation normalizes a ShareLinkOperation or operation string.
func AsOperation(v any) (ShareLinkOperation, error) {
	switch o := v.(type) {
	case ShareLinkOperation:
		return o, nil
	case string:
		return ParseOperation(o)
	default:
		return 0, fmt.Errorf("cannot convert %T to ShareLinkOperation", v)
	}
}
