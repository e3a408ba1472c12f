package fault

import (
	"errors"
	"fmt"
)

// ErrUnknownFault is returned when a fault name does not resolve to a Type.
var ErrUnknownFault = errors.New("unknown fault type")

// #region fault-type
// Type identifies a fault category. It is the key type of every RateMap.
type Type uint8

const (
	SBE   Type = iota + 1 // single-bit error
	DBE                   // double-bit error
	TBE                   // triple-bit error
	MBE                   // multi-bit error
	WD                    // wordline defect
	AZ                    // bus address fault
	SB                    // safety mechanism broken
	SDB                   // SEC-DED mechanism broken
	OTH                   // other components
	SBEIF                 // single-bit error on the interface
)

// names is the declarative spelling of every member, in declaration order.
var names = [...]string{
	SBE:   "SBE",
	DBE:   "DBE",
	TBE:   "TBE",
	MBE:   "MBE",
	WD:    "WD",
	AZ:    "AZ",
	SB:    "SB",
	SDB:   "SDB",
	OTH:   "OTH",
	SBEIF: "SBE_IF",
}

var byName = func() map[string]Type {
	m := make(map[string]Type, len(names))
	for i, n := range names {
		if n != "" {
			m[n] = Type(i)
		}
	}
	return m
}()

// #endregion fault-type

// #region lookup
// All returns every fault type in declaration order.
func All() []Type {
	out := make([]Type, 0, len(names)-1)
	for i := 1; i < len(names); i++ {
		out = append(out, Type(i))
	}
	return out
}

// Parse resolves a declarative name such as "SBE" or "SBE_IF".
func Parse(name string) (Type, error) {
	t, ok := byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFault, name)
	}
	return t, nil
}

// Valid reports whether t is a declared member.
func (t Type) Valid() bool {
	return t > 0 && int(t) < len(names)
}

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
	return names[t]
}

// MarshalText encodes the type by name.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFault, uint8(t))
	}
	return []byte(names[t]), nil
}

// UnmarshalText decodes a type from its name.
func (t *Type) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// #endregion lookup
