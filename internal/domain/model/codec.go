package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// readingJSON is the wire shape of a reading. Datapoints travel as the
// "reading" object so their order is decoded by hand.
type readingJSON struct {
	UUID          string          `json:"uuid,omitempty"`
	AssetCode     string          `json:"asset_code"`
	Timestamp     time.Time       `json:"timestamp"`
	UserTimestamp time.Time       `json:"user_ts"`
	Reading       json.RawMessage `json:"reading"`
}

// MarshalJSON encodes the reading with datapoints in their batch order.
func (r *Reading) MarshalJSON() ([]byte, error) {
	var dps bytes.Buffer
	dps.WriteByte('{')
	first := true
	for _, dp := range r.Datapoints {
		if dp == nil {
			continue
		}
		if !first {
			dps.WriteByte(',')
		}
		first = false
		if err := writeField(&dps, dp.Name, dp.Value); err != nil {
			return nil, err
		}
	}
	dps.WriteByte('}')

	return json.Marshal(readingJSON{
		UUID:          r.UUID,
		AssetCode:     r.AssetCode,
		Timestamp:     r.Timestamp,
		UserTimestamp: r.UserTimestamp,
		Reading:       dps.Bytes(),
	})
}

// UnmarshalJSON decodes a reading, keeping datapoint order.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var aux readingJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedReading, err)
	}
	if strings.TrimSpace(aux.AssetCode) == "" {
		return fmt.Errorf("%w: missing asset_code", ErrMalformedReading)
	}

	var dps []*Datapoint
	if len(aux.Reading) > 0 && string(aux.Reading) != "null" {
		dec := json.NewDecoder(bytes.NewReader(aux.Reading))
		dec.UseNumber()
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedReading, err)
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return fmt.Errorf("%w: reading must be an object", ErrMalformedReading)
		}
		fields, err := decodeFields(dec)
		if err != nil {
			return err
		}
		dps = make([]*Datapoint, len(fields))
		for i := range fields {
			dps[i] = &fields[i]
		}
	}

	*r = Reading{
		UUID:          aux.UUID,
		AssetCode:     aux.AssetCode,
		Timestamp:     aux.Timestamp,
		UserTimestamp: aux.UserTimestamp,
		Datapoints:    dps,
	}
	return nil
}

// MarshalJSON encodes v. Floats always carry a fraction or exponent so they
// decode back as floats.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes any supported JSON value into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	out, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after value", ErrMalformedReading)
	}
	*v = out
	return nil
}

func writeField(buf *bytes.Buffer, name string, v Value) error {
	key, err := json.Marshal(name)
	if err != nil {
		return err
	}
	buf.Write(key)
	buf.WriteByte(':')
	return writeValue(buf, v)
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case KindInteger:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		if name := nonFiniteName(v.f); name != "" {
			buf.WriteString(`{"` + name + `":true}`)
			return nil
		}
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		buf.WriteString(s)
		if !strings.ContainsAny(s, ".eE") {
			buf.WriteString(".0")
		}
	case KindString:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, f := range v.obj {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeField(buf, f.Name, f.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedValue, v.kind)
	}
	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, fmt.Errorf("%w: %w", ErrMalformedReading, err)
	}
	return valueFromToken(dec, tok)
}

// valueFromToken decodes the value that starts with tok.
func valueFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, fmt.Errorf("%w: %w", ErrMalformedReading, err)
			}
			return ArrayValue(items), nil
		case '{':
			return decodeObject(dec)
		}
		return Value{}, fmt.Errorf("%w: unexpected %q", ErrMalformedReading, t)
	case json.Number:
		return numberValue(t)
	case string:
		return StringValue(t), nil
	default:
		return Value{}, fmt.Errorf("%w: %v", ErrUnsupportedValue, tok)
	}
}

// decodeObject decodes an object value. A single field named +Inf, -Inf or
// NaN holding true is the encoding of a non-finite float; booleans are
// rejected everywhere else, so no real object can take that shape.
func decodeObject(dec *json.Decoder) (Value, error) {
	if !dec.More() {
		return decodeRest(dec, []Datapoint{})
	}
	name, err := fieldName(dec)
	if err != nil {
		return Value{}, err
	}
	tok, err := dec.Token()
	if err != nil {
		return Value{}, fmt.Errorf("%w: %w", ErrMalformedReading, err)
	}
	if b, ok := tok.(bool); ok && b && !dec.More() {
		if f, ok := nonFiniteValue(name); ok {
			if _, err := dec.Token(); err != nil {
				return Value{}, fmt.Errorf("%w: %w", ErrMalformedReading, err)
			}
			return FloatValue(f), nil
		}
	}
	v, err := valueFromToken(dec, tok)
	if err != nil {
		return Value{}, fmt.Errorf("datapoint %q: %w", name, err)
	}
	return decodeRest(dec, []Datapoint{{Name: name, Value: v}})
}

func decodeRest(dec *json.Decoder, fields []Datapoint) (Value, error) {
	rest, err := decodeFields(dec)
	if err != nil {
		return Value{}, err
	}
	return ObjectValue(append(fields, rest...)), nil
}

func fieldName(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedReading, err)
	}
	name, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected field name", ErrMalformedReading)
	}
	return name, nil
}

func nonFiniteName(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	default:
		return ""
	}
}

func nonFiniteValue(name string) (float64, bool) {
	switch name {
	case "NaN":
		return math.NaN(), true
	case "+Inf":
		return math.Inf(1), true
	case "-Inf":
		return math.Inf(-1), true
	default:
		return 0, false
	}
}

// decodeFields reads name/value pairs up to and including the closing brace
// of an object whose opening brace was already consumed.
func decodeFields(dec *json.Decoder) ([]Datapoint, error) {
	fields := []Datapoint{}
	for dec.More() {
		name, err := fieldName(dec)
		if err != nil {
			return nil, err
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("datapoint %q: %w", name, err)
		}
		fields = append(fields, Datapoint{Name: name, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedReading, err)
	}
	return fields, nil
}

func numberValue(n json.Number) (Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return IntegerValue(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedValue, s)
	}
	return FloatValue(f), nil
}
