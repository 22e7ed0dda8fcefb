// Package codec converts entity field lists to and from the store's wire
// JSON representation. The wire format is a flat object of <field> and
// <field>@odata.type pairs; the type tag carries what JSON shape alone
// cannot convey (64-bit integers, binary, date/time values).
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tablesql/tablesql/types"
)

const (
	// TypeTagSuffix marks the sibling key carrying a field's EDM type.
	TypeTagSuffix = "@odata.type"
	// metadataPrefix marks store-managed metadata keys in a wire entity.
	metadataPrefix = "odata."
	// timestampField is the store-managed modification time of an entity.
	timestampField = "Timestamp"

	partitionKeyField = "PartitionKey"
	rowKeyField       = "RowKey"
)

// MarshalEntity renders entity fields as a wire JSON object. Values whose
// type a JSON shape cannot convey gain a <name>@odata.type sibling. Null
// values are omitted entirely: the wire format has no null representation,
// so omission is the only way to signal "no value".
func MarshalEntity(fields []types.Field) (map[string]any, error) {
	entity := map[string]any{}

	for _, field := range fields {
		if field.Value.IsNull() {
			continue
		}

		switch field.Value.Kind() {
		case types.KindBinary:
			data, _ := field.Value.BinaryValue()
			entity[field.Name] = base64.StdEncoding.EncodeToString(data)
			entity[field.Name+TypeTagSuffix] = types.EdmBinary
		case types.KindBoolean:
			v, _ := field.Value.BoolValue()
			entity[field.Name] = v
		case types.KindInt32:
			v, _ := field.Value.Int32Value()
			entity[field.Name] = v
		case types.KindInt64:
			v, _ := field.Value.Int64Value()
			entity[field.Name] = v
			entity[field.Name+TypeTagSuffix] = types.EdmInt64
		case types.KindUint32:
			// No unsigned wire type exists; widen to a signed-safe integer.
			v, _ := field.Value.Uint32Value()
			entity[field.Name] = int64(v)
			entity[field.Name+TypeTagSuffix] = types.EdmInt64
		case types.KindUint64:
			v, _ := field.Value.Uint64Value()
			if v > math.MaxInt64 {
				return nil, types.NewError(types.ErrCodeNumericOverflow,
					fmt.Sprintf("field %s: value %d exceeds the maximum Int64 value", field.Name, v), nil)
			}

			entity[field.Name] = int64(v)
			entity[field.Name+TypeTagSuffix] = types.EdmInt64
		case types.KindFloat32:
			v, _ := field.Value.Float32Value()
			entity[field.Name] = float64(v)
			entity[field.Name+TypeTagSuffix] = types.EdmDouble
		case types.KindFloat64:
			v, _ := field.Value.Float64Value()
			entity[field.Name] = v
		case types.KindString:
			v, _ := field.Value.StringValue()
			entity[field.Name] = v
		case types.KindDate, types.KindTime, types.KindTimestamp:
			v, _ := field.Value.StringValue()
			entity[field.Name] = v
			entity[field.Name+TypeTagSuffix] = types.EdmDateTime
		}
	}

	return entity, nil
}

// Options control how wire entities are decoded.
type Options struct {
	// RequireTypeMetadata makes decoding fail with MissingTypeMetadata when
	// a field has no @odata.type sibling instead of inferring the type from
	// the JSON shape.
	RequireTypeMetadata bool
}

// UnmarshalRows decodes a response envelope ({"value": [...]}) into one Row
// per entity, with type inference for untagged fields.
func UnmarshalRows(body []byte) ([]types.Row, error) {
	return UnmarshalRowsWith(body, Options{})
}

// UnmarshalRowsWith decodes a response envelope with explicit options.
func UnmarshalRowsWith(body []byte, opts Options) ([]types.Row, error) {
	var envelope struct {
		Value []map[string]json.RawMessage `json:"value"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, types.NewUnmarshalError(types.ErrCodeInvalidEncoding,
			"response envelope is not valid JSON", body, err)
	}

	rows := make([]types.Row, 0, len(envelope.Value))

	for _, obj := range envelope.Value {
		row, err := unmarshalRawEntity(obj, opts)
		if err != nil {
			return nil, err
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// UnmarshalEntity decodes a single wire entity object into a Row.
func UnmarshalEntity(body []byte, opts Options) (types.Row, error) {
	var obj map[string]json.RawMessage

	if err := json.Unmarshal(body, &obj); err != nil {
		return types.Row{}, types.NewUnmarshalError(types.ErrCodeInvalidEncoding,
			"wire entity is not valid JSON", body, err)
	}

	return unmarshalRawEntity(obj, opts)
}

func unmarshalRawEntity(obj map[string]json.RawMessage, opts Options) (types.Row, error) {
	row := types.Row{Fields: []types.Field{}}

	// Two passes: tags first so every field sees its sibling, then values in
	// a stable order.
	tags := map[string]string{}
	names := []string{}

	for name, raw := range obj {
		if tagged, ok := strings.CutSuffix(name, TypeTagSuffix); ok {
			var tag string
			if err := json.Unmarshal(raw, &tag); err != nil {
				return types.Row{}, types.NewUnmarshalError(types.ErrCodeInvalidEncoding,
					"field "+name+": type tag is not a JSON string", raw, err)
			}

			tags[tagged] = tag

			continue
		}

		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		raw := obj[name]

		if strings.HasPrefix(name, metadataPrefix) || name == timestampField || name == partitionKeyField {
			continue
		}

		if name == rowKeyField {
			var key string
			if err := json.Unmarshal(raw, &key); err != nil {
				return types.Row{}, types.NewUnmarshalError(types.ErrCodeInvalidEncoding,
					"RowKey is not a JSON string", raw, err)
			}

			row.Index = key

			continue
		}

		value, err := decodeValue(name, raw, tags, opts)
		if err != nil {
			return types.Row{}, err
		}

		row.Fields = append(row.Fields, types.Field{Name: name, Value: value})
	}

	return row, nil
}

func decodeValue(name string, raw json.RawMessage, tags map[string]string, opts Options) (types.DataType, error) {
	tag, tagged := tags[name]
	if !tagged {
		if opts.RequireTypeMetadata {
			return types.DataType{}, types.NewError(types.ErrCodeMissingTypeMetadata,
				"field "+name+" has no "+TypeTagSuffix+" metadata", nil)
		}

		tag = inferTag(raw)
	}

	switch tag {
	case types.EdmBinary:
		return decodeBinary(name, raw)
	case types.EdmBoolean:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return types.DataType{}, types.NewUnmarshalError(types.ErrCodeInvalidEncoding,
				"field "+name+": expected a JSON boolean", raw, err)
		}

		return types.Boolean(v), nil
	case types.EdmInt32:
		return decodeInt32(name, raw)
	case types.EdmInt64:
		return decodeInt64(name, raw)
	case types.EdmDouble:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return types.DataType{}, types.NewUnmarshalError(types.ErrCodeInvalidEncoding,
				"field "+name+": expected a JSON number", raw, err)
		}

		return types.Float64(v), nil
	case types.EdmString, types.EdmGuid:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return types.DataType{}, types.NewUnmarshalError(types.ErrCodeInvalidEncoding,
				"field "+name+": expected a JSON string", raw, err)
		}

		return types.String(v), nil
	case types.EdmDateTime:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return types.DataType{}, types.NewUnmarshalError(types.ErrCodeInvalidEncoding,
				"field "+name+": expected a JSON string", raw, err)
		}

		return types.Timestamp(v), nil
	}

	return types.DataType{}, types.NewError(types.ErrCodeUnsupportedType,
		"field "+name+": unrecognized wire type "+tag, nil)
}

func decodeBinary(name string, raw json.RawMessage) (types.DataType, error) {
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return types.DataType{}, types.NewUnmarshalError(types.ErrCodeInvalidEncoding,
			"field "+name+": expected a base64 JSON string", raw, err)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return types.DataType{}, types.NewUnmarshalError(types.ErrCodeInvalidEncoding,
			"field "+name+": invalid base64 payload", []byte(encoded), err)
	}

	return types.Binary(data), nil
}

func decodeInt32(name string, raw json.RawMessage) (types.DataType, error) {
	n, err := decodeWireInteger(name, raw)
	if err != nil {
		return types.DataType{}, err
	}

	if n > math.MaxInt32 || n < math.MinInt32 {
		return types.DataType{}, types.NewError(types.ErrCodeNumericOverflow,
			fmt.Sprintf("field %s: value %d does not fit a 32-bit signed integer", name, n), nil)
	}

	return types.Int32(int32(n)), nil
}

func decodeInt64(name string, raw json.RawMessage) (types.DataType, error) {
	n, err := decodeWireInteger(name, raw)
	if err != nil {
		return types.DataType{}, err
	}

	return types.Int64(n), nil
}

func decodeWireInteger(name string, raw json.RawMessage) (int64, error) {
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, types.NewUnmarshalError(types.ErrCodeInvalidEncoding,
			"field "+name+": expected a JSON number", raw, err)
	}

	n, err := num.Int64()
	if err != nil {
		return 0, types.NewUnmarshalError(types.ErrCodeInvalidEncoding,
			"field "+name+": expected an integer value", raw, err)
	}

	return n, nil
}

// inferTag derives a wire type from JSON shape alone: booleans map to
// Edm.Boolean, fractional numbers to Edm.Double, other numbers to Edm.Int32
// and everything else to Edm.String.
func inferTag(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return types.EdmString
	}

	switch trimmed {
	case "true", "false":
		return types.EdmBoolean
	}

	c := trimmed[0]
	if c == '-' || (c >= '0' && c <= '9') {
		if strings.ContainsAny(trimmed, ".eE") {
			return types.EdmDouble
		}

		return types.EdmInt32
	}

	return types.EdmString
}
