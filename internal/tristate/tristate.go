// Package tristate provides Bool, a boolean that can also be Unknown.
//
// The zero value is Unknown, so a signal that was never obtained reads as
// Unknown rather than false. JSON encodes True/False as true/false and
// Unknown as null.
package tristate

import (
	"bytes"
	"fmt"
)

// Bool is a three-valued boolean.
type Bool int8

const (
	Unknown Bool = iota
	True
	False
)

// Of converts a plain bool into a known Bool.
func Of(b bool) Bool {
	if b {
		return True
	}
	return False
}

// Known reports whether b is True or False.
func (b Bool) Known() bool { return b != Unknown }

// IsTrue reports whether b is known to be true.
func (b Bool) IsTrue() bool { return b == True }

// IsFalse reports whether b is known to be false. Unknown is not false.
func (b Bool) IsFalse() bool { return b == False }

func (b Bool) String() string {
	switch b {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes Unknown as null.
func (b Bool) MarshalJSON() ([]byte, error) {
	switch b {
	case True:
		return []byte("true"), nil
	case False:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts true, false and null.
func (b *Bool) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*b = True
	case "false":
		*b = False
	case "null":
		*b = Unknown
	default:
		return fmt.Errorf("tristate: invalid value %s", data)
	}
	return nil
}
