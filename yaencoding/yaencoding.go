// Package yaencoding provides the codecs used to persist FSM data in external
// stores. Each encode/decode returns yaerrors.Error so storages can wrap the
// failure with their own context.
//
// Supported formats:
//   - MessagePack (compact binary, the default for redis storage)
//   - JSON (human readable, the default for sql storage)
//
// Example usage:
//
//	codec := yaencoding.MessagePack{}
//
//	raw, err := codec.Marshal(map[string]any{"name": "Ya Code", "age": 5})
//	if err != nil {
//	    return err.Wrap("failed to encode fsm data")
//	}
//
//	data, err := codec.UnmarshalMap(raw) // map[name:Ya Code age:5]
package yaencoding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns FSM data maps into bytes and back.
// UnmarshalMap never returns a nil map on success.
type Codec interface {
	Name() string
	Marshal(value any) ([]byte, yaerrors.Error)
	UnmarshalMap(data []byte) (map[string]any, yaerrors.Error)
}

// MessagePack is the msgpack Codec. Integers decode as int64 and floats as float64.
type MessagePack struct{}

// JSON is the encoding/json Codec. Numbers decode as float64.
type JSON struct{}

var (
	_ Codec = MessagePack{}
	_ Codec = JSON{}
)

func (MessagePack) Name() string { return "msgpack" }

func (MessagePack) Marshal(value any) ([]byte, yaerrors.Error) {
	return EncodeMessagePack(value)
}

func (MessagePack) UnmarshalMap(data []byte) (map[string]any, yaerrors.Error) {
	result, err := DecodeMessagePack[map[string]any](data)
	if err != nil {
		return nil, err
	}

	if *result == nil {
		return map[string]any{}, nil
	}

	return *result, nil
}

func (JSON) Name() string { return "json" }

func (JSON) Marshal(value any) ([]byte, yaerrors.Error) {
	return EncodeJSON(value)
}

func (JSON) UnmarshalMap(data []byte) (map[string]any, yaerrors.Error) {
	result, err := DecodeJSON[map[string]any](data)
	if err != nil {
		return nil, err
	}

	if *result == nil {
		return map[string]any{}, nil
	}

	return *result, nil
}

// EncodeMessagePack serializes value using the MessagePack format.
//
// Example:
//
//	raw, err := yaencoding.EncodeMessagePack(record)
func EncodeMessagePack(value any) ([]byte, yaerrors.Error) {
	raw, err := msgpack.Marshal(value)
	if err != nil {
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			fmt.Sprintf("[ENCODING] failed to marshal `%T` using message pack format", value),
		)
	}

	return raw, nil
}

// DecodeMessagePack decodes MessagePack data into T using loose interface
// decoding, so numbers inside untyped maps come back as int64/uint64/float64.
//
// Example:
//
//	record, err := yaencoding.DecodeMessagePack[Record](raw)
func DecodeMessagePack[T any](data []byte) (*T, yaerrors.Error) {
	var result T

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	if err := dec.Decode(&result); err != nil {
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			fmt.Sprintf("[ENCODING] failed to unmarshal `%T` from message pack format", result),
		)
	}

	return &result, nil
}

// EncodeJSON serializes value as JSON.
func EncodeJSON(value any) ([]byte, yaerrors.Error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			fmt.Sprintf("[ENCODING] failed to marshal `%T` as json", value),
		)
	}

	return raw, nil
}

// DecodeJSON decodes JSON data into T.
func DecodeJSON[T any](data []byte) (*T, yaerrors.Error) {
	var result T

	if err := json.Unmarshal(data, &result); err != nil {
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			fmt.Sprintf("[ENCODING] failed to unmarshal `%T` from json", result),
		)
	}

	return &result, nil
}
