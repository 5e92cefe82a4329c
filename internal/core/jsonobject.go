package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// marshalObject writes n key/number pairs as a JSON object in the given order.
// encoding/json sorts map keys, so ordered objects are assembled by hand.
func marshalObject(n int, at func(i int) (string, float64)) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i := 0; i < n; i++ {
		key, val := at(i)
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// unmarshalObject walks a JSON object of numbers in document order.
// A JSON null decodes as an empty object.
func unmarshalObject(data []byte, fn func(key string, v float64)) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("expected JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errors.New("expected object key")
		}
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("value for %q: %w", key, err)
		}
		fn(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
