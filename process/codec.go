package process

import (
	"fmt"
	"reflect"

	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/marshalkit/codec"
	"github.com/dogmatiq/marshalkit/codec/json"
)

// PayloadTypes is the set of payload types used by the built-in process
// variants.
var PayloadTypes = []reflect.Type{
	reflect.TypeOf(&Negotiation{}),
	reflect.TypeOf(&Transfer{}),
	reflect.TypeOf(&Monitor{}),
}

// NewMarshaler returns a marshaler that can marshal the payload types.
func NewMarshaler() marshalkit.Marshaler {
	m, err := codec.NewMarshaler(
		PayloadTypes,
		[]codec.Codec{
			&json.Codec{},
		},
	)
	if err != nil {
		panic(err)
	}

	return m
}

// MarshalPayload marshals a process payload into a packet.
func MarshalPayload(m marshalkit.ValueMarshaler, v interface{}) (marshalkit.Packet, error) {
	return m.Marshal(v)
}

// UnmarshalPayload unmarshals a packet produced by MarshalPayload() and
// returns a pointer to the payload.
func UnmarshalPayload(m marshalkit.ValueMarshaler, p marshalkit.Packet) (interface{}, error) {
	v, err := m.Unmarshal(p)
	if err != nil {
		return nil, err
	}

	switch x := v.(type) {
	case *Negotiation, *Transfer, *Monitor:
		return x, nil
	case Negotiation:
		return &x, nil
	case Transfer:
		return &x, nil
	case Monitor:
		return &x, nil
	default:
		return nil, fmt.Errorf("unexpected payload type %T", v)
	}
}

// NewPayload returns a new, empty payload for the given process type.
func NewPayload(t Type) interface{} {
	switch t {
	case NegotiationType:
		return &Negotiation{}
	case TransferType:
		return &Transfer{}
	case MonitorType:
		return &Monitor{}
	default:
		panic(fmt.Sprintf("unrecognized process type: %s", t))
	}
}
