package db

import (
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/securefront/compliance-scheduler/internal/models"
)

var timeType = reflect.TypeOf(time.Time{})

// Decode converts a document into one of the models structs. The document id is
// exposed to the decoder as the "id" field. Timestamps are parsed here and
// nowhere else; a bad value fails the whole document with ErrMalformed.
func Decode(doc Document, out any) error {
	input := make(map[string]any, len(doc.Data)+1)
	for k, v := range doc.Data {
		input[k] = v
	}
	input["id"] = doc.ID

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       timestampHook,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return &StoreError{Op: "decode", Collection: doc.Collection, ID: doc.ID, Kind: ErrInvalid, Err: err}
	}
	if err := dec.Decode(input); err != nil {
		return &StoreError{Op: "decode", Collection: doc.Collection, ID: doc.ID, Kind: ErrMalformed, Err: err}
	}
	return nil
}

func timestampHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return models.ParseTimestamp(v)
	case time.Time:
		return v.UTC(), nil
	}
	return data, nil
}
