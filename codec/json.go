package codec

import (
	"bytes"
	"encoding/json"
)

// JSON encodes with encoding/json. HTML escaping is off: list rows often carry
// user text with '<' or '&' and the bytes never reach a browser.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
