package grpcexecutor

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is the content-subtype used for all executor RPCs.
const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec is a gRPC codec that encodes messages as JSON, so that the
// executor API can be served without generated protocol buffers code.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}
