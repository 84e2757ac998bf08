package access

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Tristate is an override flag: unset defers to the role default.
type Tristate uint8

const (
	Unset Tristate = iota
	True
	False
)

// FromBool converts a concrete boolean into a set flag.
func FromBool(v bool) Tristate {
	if v {
		return True
	}
	return False
}

// FromPtr maps nil to Unset.
func FromPtr(v *bool) Tristate {
	if v == nil {
		return Unset
	}
	return FromBool(*v)
}

func (t Tristate) IsSet() bool { return t == True || t == False }

// Or returns the flag value when set, fallback otherwise.
func (t Tristate) Or(fallback bool) bool {
	switch t {
	case True:
		return true
	case False:
		return false
	default:
		return fallback
	}
}

// Ptr returns nil for Unset.
func (t Tristate) Ptr() *bool {
	if !t.IsSet() {
		return nil
	}
	v := t == True
	return &v
}

func (t Tristate) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unset"
	}
}

func (t Tristate) MarshalJSON() ([]byte, error) {
	switch t {
	case True:
		return []byte("true"), nil
	case False:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (t *Tristate) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "null":
		*t = Unset
	case "true":
		*t = True
	case "false":
		*t = False
	default:
		return fmt.Errorf("%w: override flag must be true, false or null", ErrInvalidInput)
	}
	return nil
}

// Scan maps a nullable boolean column.
func (t *Tristate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = Unset
	case bool:
		*t = FromBool(v)
	default:
		return fmt.Errorf("access: cannot scan %T into Tristate", src)
	}
	return nil
}

func (t Tristate) Value() (driver.Value, error) {
	if !t.IsSet() {
		return nil, nil
	}
	return t == True, nil
}

var (
	_ json.Marshaler   = Tristate(0)
	_ json.Unmarshaler = (*Tristate)(nil)
	_ driver.Valuer    = Tristate(0)
)
