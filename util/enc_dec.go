package util

import "encoding/json"

// EncoderDecoder converts values to and from their stored byte form. Storage
// implementations hold one per record type so the wire format stays in one
// place.
type EncoderDecoder[T any] interface {
	Encode(value T) ([]byte, error)
	Decode(data []byte) (*T, error)
}

type JsonEncDec[T any] struct{}

var _ EncoderDecoder[any] = new(JsonEncDec[any])

func NewJsonEncoderDecoder[T any]() *JsonEncDec[T] {
	return &JsonEncDec[T]{}
}

func (*JsonEncDec[T]) Encode(value T) ([]byte, error) {
	return json.Marshal(value)
}

func (*JsonEncDec[T]) Decode(data []byte) (*T, error) {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}
