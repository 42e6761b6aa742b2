// Package serde converts application values to message payloads and back.
package serde

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
)

type Serializer[T any] interface {
	Serialize(v T) ([]byte, error)
}

type Deserializer[T any] interface {
	Deserialize(data []byte) (T, error)
}

// SerializerFunc adapts a function to Serializer
type SerializerFunc[T any] func(v T) ([]byte, error)

func (f SerializerFunc[T]) Serialize(v T) ([]byte, error) { return f(v) }

// DeserializerFunc adapts a function to Deserializer
type DeserializerFunc[T any] func(data []byte) (T, error)

func (f DeserializerFunc[T]) Deserialize(data []byte) (T, error) { return f(data) }

// Bytes passes payloads through untouched
type Bytes struct{}

func (Bytes) Serialize(v []byte) ([]byte, error) { return v, nil }

func (Bytes) Deserialize(data []byte) ([]byte, error) { return data, nil }

type String struct{}

func (String) Serialize(v string) ([]byte, error) { return []byte(v), nil }

func (String) Deserialize(data []byte) (string, error) { return string(data), nil }

// JSON encodes values with encoding/json
type JSON[T any] struct{}

func (JSON[T]) Serialize(v T) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json: marshal: %w", err)
	}
	return data, nil
}

func (JSON[T]) Deserialize(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("json: unmarshal: %w", err)
	}
	return v, nil
}

// Proto encodes protobuf messages. New must return an empty message to
// unmarshal into.
type Proto[T proto.Message] struct {
	New func() T
}

func (Proto[T]) Serialize(v T) ([]byte, error) {
	data, err := proto.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("proto: marshal: %w", err)
	}
	return data, nil
}

func (p Proto[T]) Deserialize(data []byte) (T, error) {
	v := p.New()
	if err := proto.Unmarshal(data, v); err != nil {
		return v, fmt.Errorf("proto: unmarshal: %w", err)
	}
	return v, nil
}
