package codec

import "fmt"

// Limit wraps another codec and refuses payloads above a size on both paths.
// Oversized pages are not worth caching, and a shared provider (Redis) may hand
// back bytes this process never wrote. Max <= 0 disables the check.
type Limit[V any] struct {
	Inner Codec[V]
	Max   int // bytes
}

// ErrTooLarge is returned (wrapped) for payloads above Limit.Max.
type ErrTooLarge struct {
	Size, Max int
}

func (e *ErrTooLarge) Error() string {
	return fmt.Sprintf("codec: payload too large: %d > %d", e.Size, e.Max)
}

func (c Limit[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if c.Max > 0 && len(b) > c.Max {
		return nil, &ErrTooLarge{Size: len(b), Max: c.Max}
	}
	return b, nil
}

func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.Max > 0 && len(b) > c.Max {
		var zero V
		return zero, &ErrTooLarge{Size: len(b), Max: c.Max}
	}
	return c.Inner.Decode(b)
}
