// Package codec turns cached values into bytes and back. A store decodes a
// fresh value on every read, so callers never share memory with a stored entry.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// ByName returns the codec registered under name: "json", "cbor" or "msgpack".
// Protobuf needs a message constructor and is not available by name.
func ByName[V any](name string) (Codec[V], bool) {
	switch name {
	case "", "json":
		return JSON[V]{}, true
	case "cbor":
		cb, err := NewCBOR[V](CBOROptions{})
		if err != nil {
			return nil, false
		}
		return cb, true
	case "msgpack":
		return Msgpack[V]{}, true
	default:
		return nil, false
	}
}
