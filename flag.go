package vmopts

import (
	"fmt"
	"strconv"
)

// FlagType is the declared type of a flag. It never changes after registration.
type FlagType uint8

const (
	TypeBool FlagType = iota
	TypeInt
	TypeUint
	TypeIntx
	TypeUintx
	TypeUint64
	TypeSizeT
	TypeDouble
	TypeString
	TypeStringList
)

var flagTypeNames = [...]string{
	TypeBool:       "bool",
	TypeInt:        "int",
	TypeUint:       "uint",
	TypeIntx:       "intx",
	TypeUintx:      "uintx",
	TypeUint64:     "uint64_t",
	TypeSizeT:      "size_t",
	TypeDouble:     "double",
	TypeString:     "ccstr",
	TypeStringList: "ccstrlist",
}

func (t FlagType) String() string {
	if int(t) < len(flagTypeNames) {
		return flagTypeNames[t]
	}
	return "unknown"
}

// ParseFlagType maps a type name (as printed by String) back to a FlagType.
func ParseFlagType(name string) (FlagType, error) {
	for t, n := range flagTypeNames {
		if n == name {
			return FlagType(t), nil
		}
	}
	return 0, fmt.Errorf("unknown flag type %q", name)
}

func (t FlagType) bitSize() int {
	switch t {
	case TypeInt, TypeUint:
		return 32
	default:
		return 64
	}
}

func (t FlagType) isSigned() bool   { return t == TypeInt || t == TypeIntx }
func (t FlagType) isUnsigned() bool { return t == TypeUint || t == TypeUintx || t == TypeUint64 || t == TypeSizeT }
func (t FlagType) isString() bool   { return t == TypeString || t == TypeStringList }
func (t FlagType) isNumeric() bool  { return t.isSigned() || t.isUnsigned() || t == TypeDouble }

// Attribute gates access to a flag.
type Attribute uint8

const (
	AttrProduct Attribute = iota
	AttrDiagnostic
	AttrExperimental
)

func (a Attribute) String() string {
	switch a {
	case AttrDiagnostic:
		return "diagnostic"
	case AttrExperimental:
		return "experimental"
	default:
		return "product"
	}
}

// Value is a flag value tagged with its type.
type Value struct {
	typ FlagType
	b   bool
	i   int64
	u   uint64
	f   float64
	s   string
}

func BoolValue(b bool) Value         { return Value{typ: TypeBool, b: b} }
func IntValue(n int32) Value         { return Value{typ: TypeInt, i: int64(n)} }
func UintValue(n uint32) Value       { return Value{typ: TypeUint, u: uint64(n)} }
func IntxValue(n int64) Value        { return Value{typ: TypeIntx, i: n} }
func UintxValue(n uint64) Value      { return Value{typ: TypeUintx, u: n} }
func Uint64Value(n uint64) Value     { return Value{typ: TypeUint64, u: n} }
func SizeTValue(n uint64) Value      { return Value{typ: TypeSizeT, u: n} }
func DoubleValue(f float64) Value    { return Value{typ: TypeDouble, f: f} }
func StringValue(s string) Value     { return Value{typ: TypeString, s: s} }
func StringListValue(s string) Value { return Value{typ: TypeStringList, s: s} }

// Type returns the value's type tag.
func (v Value) Type() FlagType { return v.typ }

// String formats the value the way it is written on a command line.
func (v Value) String() string {
	switch {
	case v.typ == TypeBool:
		return strconv.FormatBool(v.b)
	case v.typ.isSigned():
		return strconv.FormatInt(v.i, 10)
	case v.typ.isUnsigned():
		return strconv.FormatUint(v.u, 10)
	case v.typ == TypeDouble:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	default:
		return v.s
	}
}

// Interface returns the value as a plain Go value for serialization.
func (v Value) Interface() any {
	switch {
	case v.typ == TypeBool:
		return v.b
	case v.typ.isSigned():
		return v.i
	case v.typ.isUnsigned():
		return v.u
	case v.typ == TypeDouble:
		return v.f
	default:
		return v.s
	}
}

// Equal reports whether both values have the same type and contents.
func (v Value) Equal(o Value) bool {
	return v == o
}

func (v Value) less(o Value) bool {
	switch {
	case v.typ.isSigned():
		return v.i < o.i
	case v.typ.isUnsigned():
		return v.u < o.u
	default:
		return v.f < o.f
	}
}

// Range is the inclusive set of accepted values for a numeric flag.
type Range struct {
	Min Value
	Max Value
}

func (r Range) contains(v Value) bool {
	return !v.less(r.Min) && !r.Max.less(v)
}

// Flag is a single named, typed runtime setting.
type Flag struct {
	name   string
	typ    FlagType
	attr   Attribute
	doc    string
	value  Value
	def    Value
	origin Origin
	rng    *Range
	frozen bool
}

func (f *Flag) Name() string         { return f.name }
func (f *Flag) Type() FlagType       { return f.typ }
func (f *Flag) Attribute() Attribute { return f.attr }
func (f *Flag) Doc() string          { return f.doc }
func (f *Flag) Origin() Origin       { return f.origin }
func (f *Flag) Value() Value         { return f.value }
func (f *Flag) Default() Value       { return f.def }

// IsDefault reports whether the flag was never set since registration.
func (f *Flag) IsDefault() bool { return f.origin == OriginDefault }

// IsErgonomic reports whether the current value was chosen by ergonomics.
func (f *Flag) IsErgonomic() bool { return f.origin == OriginErgonomic }

// Range returns the declared range, if any.
func (f *Flag) Range() (Range, bool) {
	if f.rng == nil {
		return Range{}, false
	}
	return *f.rng, true
}

// Set stores v with the given origin. The value type must match exactly.
func (f *Flag) Set(v Value, origin Origin) error {
	if f.frozen {
		return fmt.Errorf("%s: %w", f.name, ErrFrozen)
	}
	if v.typ != f.typ {
		return fmt.Errorf("%s is %s, not %s: %w", f.name, f.typ, v.typ, ErrWrongFormat)
	}
	if f.rng != nil && !f.rng.contains(v) {
		return &RangeError{Flag: f, Value: v.String()}
	}
	f.value = v
	f.origin = origin
	return nil
}

func (f *Flag) check(t FlagType) error {
	if f.typ != t {
		return fmt.Errorf("%s is %s, not %s: %w", f.name, f.typ, t, ErrWrongFormat)
	}
	return nil
}

func (f *Flag) checkString() error {
	if !f.typ.isString() {
		return fmt.Errorf("%s is %s, not a string: %w", f.name, f.typ, ErrWrongFormat)
	}
	return nil
}

func (f *Flag) GetBool() (bool, error) {
	if err := f.check(TypeBool); err != nil {
		return false, err
	}
	return f.value.b, nil
}

func (f *Flag) SetBool(v bool, origin Origin) error { return f.Set(BoolValue(v), origin) }

func (f *Flag) GetInt() (int32, error) {
	if err := f.check(TypeInt); err != nil {
		return 0, err
	}
	return int32(f.value.i), nil
}

func (f *Flag) SetInt(v int32, origin Origin) error { return f.Set(IntValue(v), origin) }

func (f *Flag) GetUint() (uint32, error) {
	if err := f.check(TypeUint); err != nil {
		return 0, err
	}
	return uint32(f.value.u), nil
}

func (f *Flag) SetUint(v uint32, origin Origin) error { return f.Set(UintValue(v), origin) }

func (f *Flag) GetIntx() (int64, error) {
	if err := f.check(TypeIntx); err != nil {
		return 0, err
	}
	return f.value.i, nil
}

func (f *Flag) SetIntx(v int64, origin Origin) error { return f.Set(IntxValue(v), origin) }

func (f *Flag) GetUintx() (uint64, error) {
	if err := f.check(TypeUintx); err != nil {
		return 0, err
	}
	return f.value.u, nil
}

func (f *Flag) SetUintx(v uint64, origin Origin) error { return f.Set(UintxValue(v), origin) }

func (f *Flag) GetUint64() (uint64, error) {
	if err := f.check(TypeUint64); err != nil {
		return 0, err
	}
	return f.value.u, nil
}

func (f *Flag) SetUint64(v uint64, origin Origin) error { return f.Set(Uint64Value(v), origin) }

func (f *Flag) GetSizeT() (uint64, error) {
	if err := f.check(TypeSizeT); err != nil {
		return 0, err
	}
	return f.value.u, nil
}

func (f *Flag) SetSizeT(v uint64, origin Origin) error { return f.Set(SizeTValue(v), origin) }

func (f *Flag) GetDouble() (float64, error) {
	if err := f.check(TypeDouble); err != nil {
		return 0, err
	}
	return f.value.f, nil
}

func (f *Flag) SetDouble(v float64, origin Origin) error { return f.Set(DoubleValue(v), origin) }

// GetString returns the value of a ccstr or ccstrlist flag.
func (f *Flag) GetString() (string, error) {
	if err := f.checkString(); err != nil {
		return "", err
	}
	return f.value.s, nil
}

// SetString replaces the value of a ccstr or ccstrlist flag.
func (f *Flag) SetString(v string, origin Origin) error {
	if err := f.checkString(); err != nil {
		return err
	}
	return f.Set(Value{typ: f.typ, s: v}, origin)
}
