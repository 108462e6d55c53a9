package codec

import (
	"errors"

	"google.golang.org/protobuf/proto"
)

// Protobuf stores proto messages, e.g. pages returned by a gRPC list service.
type Protobuf[T proto.Message] struct {
	new func() T // constructor for a concrete message (e.g. func() *pb.EventPage { return &pb.EventPage{} })
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	if c.new == nil {
		var zero T
		return zero, errors.New("codec: protobuf codec without constructor")
	}
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
