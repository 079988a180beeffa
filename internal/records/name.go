package records

import (
	"bytes"
	"fmt"
)

// Name is a bounded, NUL-padded string field.
type Name [StrMaxLen]byte

// NewName converts s, rejecting values that do not fit with a terminator.
func NewName(s string) (Name, error) {
	var n Name
	if len(s) > StrMaxLen-1 {
		return n, fmt.Errorf("%q exceeds %d bytes", s, StrMaxLen-1)
	}
	if bytes.IndexByte([]byte(s), 0) >= 0 {
		return n, fmt.Errorf("%q contains a NUL byte", s)
	}
	copy(n[:], s)
	return n, nil
}

func (n Name) String() string {
	return cstring(n[:])
}

// IsZero reports whether the name is empty.
func (n Name) IsZero() bool {
	return n[0] == 0
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
