package simgraph

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// encodeValue serializes a message or data-port value to bytes for the
// diff.MessageToData.Payload wire shape (an interface{} holding []byte,
// per rendergraph.applyInputUpdates). The value is written as its raw
// fixed-size little-endian bytes, the same layout kernels read and write
// through their port views; a value without a fixed size (a string, a
// map, a struct holding one) is rejected with an error.
func encodeValue(value interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, value); err != nil {
		return nil, fmt.Errorf("simgraph: encode value: %w", err)
	}

	return buf.Bytes(), nil
}

// decodeValue reverses encodeValue into a concrete T, used by
// GraphValue[T].Read.
func decodeValue[T any](data []byte) (T, error) {
	var out T
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &out); err != nil {
		return out, fmt.Errorf("simgraph: decode value: %w", err)
	}

	return out, nil
}
