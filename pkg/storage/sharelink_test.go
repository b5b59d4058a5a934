package storage

import "testing"

// Every non-empty flag combination must survive a round trip through the
// string encoding, and stringification must use the canonical d,u,r order
// regardless of input order.
func TestShareLinkOperationRoundTrip(t *testing.T) {
	for bits := ShareLinkOperation(1); bits <= 7; bits++ {
		s := bits.String()
		parsed, err := ParseOperation(s)
		if err != nil {
			t.Fatalf("ParseOperation(%q) failed: %v", s, err)
		}
		if parsed != bits {
			t.Errorf("round trip of %v: got %v", bits, parsed)
		}
	}
}

func TestParseOperationOrderInsensitive(t *testing.T) {
	cases := []struct {
		in        string
		canonical string
	}{
		{"rud", "dur"},
		{"ud", "du"},
		{"rd", "dr"},
		{"d", "d"},
		{"", ""},
	}
	for _, c := range cases {
		op, err := ParseOperation(c.in)
		if err != nil {
			t.Fatalf("ParseOperation(%q) failed: %v", c.in, err)
		}
		if op.String() != c.canonical {
			t.Errorf("ParseOperation(%q).String() = %q, want %q", c.in, op.String(), c.canonical)
		}
	}
}

func TestParseOperationInvalid(t *testing.T) {
	if _, err := ParseOperation("dx"); err == nil {
		t.Error("ParseOperation(\"dx\") should fail")
	}
}

func TestOperationHas(t *testing.T) {
	op := OperationDownload | OperationRemove
	if !op.Has(OperationDownload) || !op.Has(OperationRemove) {
		t.Error("Has should report present flags")
	}
	if op.Has(OperationUpload) {
		t.Error("Has should not report absent flags")
	}
	if op.Has(OperationDownload | OperationUpload) {
		t.Error("Has requires every flag to be present")
	}
}
