package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// CBOR serializes pages with fxamacker/cbor. Construct with NewCBOR or
// MustCBOR; the zero value panics on use.
//
// Decoding is bounded (nesting, array and map sizes) because payloads may come
// from a provider shared with other processes; bytes that exceed the bounds
// fail to decode and the store self-heals the entry.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// CBOROptions tunes NewCBOR. The zero value is usable.
type CBOROptions struct {
	// Deterministic selects RFC 8949 core deterministic encoding, so equal
	// pages encode to equal bytes.
	Deterministic bool
	// MaxRows caps array and map lengths on decode; at least 16. 0 = 65536.
	MaxRows int
}

func NewCBOR[V any](o CBOROptions) (CBOR[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if o.Deterministic {
		eo = cbor.CoreDetEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}

	rows := o.MaxRows
	if rows <= 0 {
		rows = 1 << 16
	}
	dm, err := cbor.DecOptions{
		DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
		MaxNestedLevels:  32,
		MaxArrayElements: rows,
		MaxMapPairs:      rows,
	}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

// MustCBOR is NewCBOR that panics on error.
func MustCBOR[V any](o CBOROptions) CBOR[V] {
	c, err := NewCBOR[V](o)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	if err := c.dec.Unmarshal(b, &v); err != nil {
		return v, err
	}
	return v, nil
}
