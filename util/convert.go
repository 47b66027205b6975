package util

import (
	"fmt"

	"github.com/vmihailenco/msgpack"
)

// ToByteSlice msgpack-encodes obj into a zero padded buffer of size bytes.
func ToByteSlice[T any](obj T, size int) ([]byte, error) {
	data, err := msgpack.Marshal(obj)
	if err != nil {
		return nil, err
	}
	if len(data) > size {
		return nil, fmt.Errorf("encoded size %d exceeds buffer size %d", len(data), size)
	}

	res := make([]byte, size)
	copy(res, data)

	return res, nil
}

func ToStruct[T any](data []byte) (T, error) {
	var res T

	if err := msgpack.Unmarshal(data, &res); err != nil {
		return res, err
	}

	return res, nil
}
