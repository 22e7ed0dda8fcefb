package types

import (
	"fmt"
	"strconv"
)

// Kind identifies the active variant of a DataType value.
type Kind int

// Supported value kinds.
const (
	KindInt32 Kind = iota
	KindInt64
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindBoolean
	KindDate
	KindTime
	KindTimestamp
	KindBinary
)

var kindNames = map[Kind]string{
	KindInt32:     "Int32",
	KindInt64:     "Int64",
	KindUint32:    "Uint32",
	KindUint64:    "Uint64",
	KindFloat32:   "Float32",
	KindFloat64:   "Float64",
	KindString:    "String",
	KindBoolean:   "Boolean",
	KindDate:      "Date",
	KindTime:      "Time",
	KindTimestamp: "Timestamp",
	KindBinary:    "Binary",
}

// String returns the name of the kind.
func (k Kind) String() string {
	name, ok := kindNames[k]
	if !ok {
		return fmt.Sprintf("Kind(%d)", int(k))
	}

	return name
}

// EDM type names used on the wire where JSON shape alone cannot convey the
// original type.
const (
	EdmBinary   = "Edm.Binary"
	EdmBoolean  = "Edm.Boolean"
	EdmDateTime = "Edm.DateTime"
	EdmDouble   = "Edm.Double"
	EdmGuid     = "Edm.Guid"
	EdmInt32    = "Edm.Int32"
	EdmInt64    = "Edm.Int64"
	EdmString   = "Edm.String"
)

// DataType is a tagged value used for statement parameters and entity field
// values. Exactly one variant is active, selected by Kind; each variant is
// independently nullable. The zero value is a null Int32.
type DataType struct {
	kind Kind
	i32  *int32
	i64  *int64
	u32  *uint32
	u64  *uint64
	f32  *float32
	f64  *float64
	// str backs the String, Date, Time and Timestamp kinds. Date, time and
	// timestamp values are carried as caller-supplied ISO text.
	str *string
	b   *bool
	bin []byte
	// binSet distinguishes a null Binary from an empty one.
	binSet bool
}

// Field is a named entity value. Names are unique within one entity.
type Field struct {
	Name  string
	Value DataType
}

// Row is one entity returned by a read query. Index is the store's row
// identifier.
type Row struct {
	Index  string
	Fields []Field
}

// Int32 returns an Int32 value.
func Int32(v int32) DataType { return DataType{kind: KindInt32, i32: &v} }

// Int32Null returns a null Int32.
func Int32Null() DataType { return DataType{kind: KindInt32} }

// Int64 returns an Int64 value.
func Int64(v int64) DataType { return DataType{kind: KindInt64, i64: &v} }

// Int64Null returns a null Int64.
func Int64Null() DataType { return DataType{kind: KindInt64} }

// Uint32 returns a Uint32 value.
func Uint32(v uint32) DataType { return DataType{kind: KindUint32, u32: &v} }

// Uint32Null returns a null Uint32.
func Uint32Null() DataType { return DataType{kind: KindUint32} }

// Uint64 returns a Uint64 value.
func Uint64(v uint64) DataType { return DataType{kind: KindUint64, u64: &v} }

// Uint64Null returns a null Uint64.
func Uint64Null() DataType { return DataType{kind: KindUint64} }

// Float32 returns a Float32 value.
func Float32(v float32) DataType { return DataType{kind: KindFloat32, f32: &v} }

// Float32Null returns a null Float32.
func Float32Null() DataType { return DataType{kind: KindFloat32} }

// Float64 returns a Float64 value.
func Float64(v float64) DataType { return DataType{kind: KindFloat64, f64: &v} }

// Float64Null returns a null Float64.
func Float64Null() DataType { return DataType{kind: KindFloat64} }

// String returns a String value.
func String(v string) DataType { return DataType{kind: KindString, str: &v} }

// StringNull returns a null String.
func StringNull() DataType { return DataType{kind: KindString} }

// Boolean returns a Boolean value.
func Boolean(v bool) DataType { return DataType{kind: KindBoolean, b: &v} }

// BooleanNull returns a null Boolean.
func BooleanNull() DataType { return DataType{kind: KindBoolean} }

// Date returns a Date value from its ISO text form.
func Date(v string) DataType { return DataType{kind: KindDate, str: &v} }

// DateNull returns a null Date.
func DateNull() DataType { return DataType{kind: KindDate} }

// Time returns a Time value from its ISO text form.
func Time(v string) DataType { return DataType{kind: KindTime, str: &v} }

// TimeNull returns a null Time.
func TimeNull() DataType { return DataType{kind: KindTime} }

// Timestamp returns a Timestamp value from its ISO text form.
func Timestamp(v string) DataType { return DataType{kind: KindTimestamp, str: &v} }

// TimestampNull returns a null Timestamp.
func TimestampNull() DataType { return DataType{kind: KindTimestamp} }

// Binary returns a Binary value.
func Binary(v []byte) DataType { return DataType{kind: KindBinary, bin: v, binSet: true} }

// BinaryNull returns a null Binary.
func BinaryNull() DataType { return DataType{kind: KindBinary} }

// Kind returns the active variant of the value.
func (d DataType) Kind() Kind { return d.kind }

// IsNull reports whether the active variant holds no value.
func (d DataType) IsNull() bool {
	switch d.kind {
	case KindInt32:
		return d.i32 == nil
	case KindInt64:
		return d.i64 == nil
	case KindUint32:
		return d.u32 == nil
	case KindUint64:
		return d.u64 == nil
	case KindFloat32:
		return d.f32 == nil
	case KindFloat64:
		return d.f64 == nil
	case KindString, KindDate, KindTime, KindTimestamp:
		return d.str == nil
	case KindBoolean:
		return d.b == nil
	case KindBinary:
		return !d.binSet
	}

	return true
}

// Int32Value returns the Int32 payload. ok is false when the value is not a
// non-null Int32.
func (d DataType) Int32Value() (int32, bool) {
	if d.kind != KindInt32 || d.i32 == nil {
		return 0, false
	}

	return *d.i32, true
}

// Int64Value returns the Int64 payload.
func (d DataType) Int64Value() (int64, bool) {
	if d.kind != KindInt64 || d.i64 == nil {
		return 0, false
	}

	return *d.i64, true
}

// Uint32Value returns the Uint32 payload.
func (d DataType) Uint32Value() (uint32, bool) {
	if d.kind != KindUint32 || d.u32 == nil {
		return 0, false
	}

	return *d.u32, true
}

// Uint64Value returns the Uint64 payload.
func (d DataType) Uint64Value() (uint64, bool) {
	if d.kind != KindUint64 || d.u64 == nil {
		return 0, false
	}

	return *d.u64, true
}

// Float32Value returns the Float32 payload.
func (d DataType) Float32Value() (float32, bool) {
	if d.kind != KindFloat32 || d.f32 == nil {
		return 0, false
	}

	return *d.f32, true
}

// Float64Value returns the Float64 payload.
func (d DataType) Float64Value() (float64, bool) {
	if d.kind != KindFloat64 || d.f64 == nil {
		return 0, false
	}

	return *d.f64, true
}

// StringValue returns the text payload of a String, Date, Time or Timestamp
// value.
func (d DataType) StringValue() (string, bool) {
	switch d.kind {
	case KindString, KindDate, KindTime, KindTimestamp:
		if d.str == nil {
			return "", false
		}

		return *d.str, true
	}

	return "", false
}

// BoolValue returns the Boolean payload.
func (d DataType) BoolValue() (bool, bool) {
	if d.kind != KindBoolean || d.b == nil {
		return false, false
	}

	return *d.b, true
}

// BinaryValue returns the Binary payload.
func (d DataType) BinaryValue() ([]byte, bool) {
	if d.kind != KindBinary || !d.binSet {
		return nil, false
	}

	return d.bin, true
}

// Equal reports whether two values have the same kind, nullability and
// payload. It makes DataType comparable with go-cmp.
func (d DataType) Equal(other DataType) bool {
	if d.kind != other.kind {
		return false
	}

	if d.IsNull() || other.IsNull() {
		return d.IsNull() == other.IsNull()
	}

	switch d.kind {
	case KindInt32:
		return *d.i32 == *other.i32
	case KindInt64:
		return *d.i64 == *other.i64
	case KindUint32:
		return *d.u32 == *other.u32
	case KindUint64:
		return *d.u64 == *other.u64
	case KindFloat32:
		return *d.f32 == *other.f32
	case KindFloat64:
		return *d.f64 == *other.f64
	case KindString, KindDate, KindTime, KindTimestamp:
		return *d.str == *other.str
	case KindBoolean:
		return *d.b == *other.b
	case KindBinary:
		return string(d.bin) == string(other.bin)
	}

	return false
}

// String renders the value for logs and error messages.
func (d DataType) String() string {
	if d.IsNull() {
		return d.kind.String() + "(null)"
	}

	switch d.kind {
	case KindInt32:
		return fmt.Sprintf("Int32(%d)", *d.i32)
	case KindInt64:
		return fmt.Sprintf("Int64(%d)", *d.i64)
	case KindUint32:
		return fmt.Sprintf("Uint32(%d)", *d.u32)
	case KindUint64:
		return fmt.Sprintf("Uint64(%d)", *d.u64)
	case KindFloat32:
		return "Float32(" + strconv.FormatFloat(float64(*d.f32), 'g', -1, 32) + ")"
	case KindFloat64:
		return "Float64(" + strconv.FormatFloat(*d.f64, 'g', -1, 64) + ")"
	case KindString, KindDate, KindTime, KindTimestamp:
		return fmt.Sprintf("%s(%q)", d.kind, *d.str)
	case KindBoolean:
		return fmt.Sprintf("Boolean(%t)", *d.b)
	case KindBinary:
		return fmt.Sprintf("Binary(%d bytes)", len(d.bin))
	}

	return d.kind.String()
}
