package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/trust0-project/ridb/internal/util/lazyerrors"
)

// ParseJSON decodes plain JSON bytes into our dynamic value model,
// preserving object key order. The top-level value must be a JSON object;
// it is returned as a *Document.
func ParseJSON(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	doc, ok := v.(*Document)
	if !ok {
		return nil, lazyerrors.Errorf("types.ParseJSON: top-level value must be an object, got %T", v)
	}

	return doc, nil
}

// decodeValue reads one JSON value (scalar, array, or object) from dec.
func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (any, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, lazyerrors.Errorf("types.decodeToken: unexpected delimiter %q", t)
		}
	case json.Number:
		return decodeNumber(t)
	case string:
		return t, nil
	case bool:
		return t, nil
	case nil:
		return nil, nil
	default:
		return nil, lazyerrors.Errorf("types.decodeToken: unexpected token %#v", tok)
	}
}

func decodeNumber(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}

	f, err := n.Float64()
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return f, nil
}

func decodeObject(dec *json.Decoder) (*Document, error) {
	doc := new(Document)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, lazyerrors.Error(err)
		}

		key, ok := keyTok.(string)
		if !ok {
			return nil, lazyerrors.Errorf("types.decodeObject: expected string key, got %#v", keyTok)
		}

		value, err := decodeValue(dec)
		if err != nil {
			return nil, lazyerrors.Error(err)
		}

		if err := doc.Set(key, value); err != nil {
			return nil, lazyerrors.Error(err)
		}
	}

	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, lazyerrors.Error(err)
	}

	return doc, nil
}

func decodeArray(dec *json.Decoder) ([]any, error) {
	var arr []any

	for dec.More() {
		value, err := decodeValue(dec)
		if err != nil {
			return nil, lazyerrors.Error(err)
		}

		arr = append(arr, value)
	}

	if _, err := dec.Token(); err != nil { // closing ']'
		return nil, lazyerrors.Error(err)
	}

	return arr, nil
}

// MarshalJSON encodes v (a *Document, []any, or scalar) into plain JSON,
// preserving Document key order. Unlike CanonicalJSON (canonical.go), this
// does not sort keys.
func MarshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer

	if err := encodeValue(&buf, v, false); err != nil {
		return nil, lazyerrors.Error(err)
	}

	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any, sortKeys bool) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case int64:
		buf.WriteString(strconv.FormatInt(t, 10))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return lazyerrors.Errorf("types.encodeValue: JSON cannot represent %v", t)
		}

		buf.WriteString(formatFloat(t))
	case string:
		b, err := json.Marshal(t)
		if err != nil {
			return lazyerrors.Error(err)
		}

		buf.Write(b)
	case []any:
		buf.WriteByte('[')

		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}

			if err := encodeValue(buf, e, sortKeys); err != nil {
				return err
			}
		}

		buf.WriteByte(']')
	case *Document:
		return encodeDocument(buf, t, sortKeys)
	default:
		return lazyerrors.Errorf("types.encodeValue: unsupported type: %T", v)
	}

	return nil
}

func encodeDocument(buf *bytes.Buffer, doc *Document, sortKeys bool) error {
	keys := doc.Keys()
	if sortKeys {
		keys = sortedCopy(keys)
	}

	buf.WriteByte('{')

	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		kb, err := json.Marshal(k)
		if err != nil {
			return lazyerrors.Error(err)
		}

		buf.Write(kb)
		buf.WriteByte(':')

		v, err := doc.Get(k)
		if err != nil {
			return lazyerrors.Error(err)
		}

		if err := encodeValue(buf, v, sortKeys); err != nil {
			return err
		}
	}

	buf.WriteByte('}')

	return nil
}

// formatFloat renders f using the shortest round-trip decimal
// representation, the same choice RFC 8785 (JCS) and Rust's serde_json
// make for f64.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func sortedCopy(keys []string) []string {
	out := append([]string(nil), keys...)
	insertionSortStrings(out)

	return out
}

// insertionSortStrings sorts small slices in place without pulling in
// sort.Strings's reflection-based comparator for the common case of a
// handful of document fields.
func insertionSortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
