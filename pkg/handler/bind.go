package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
)

const maxJSONBody = 1 << 20

// BindJSON decodes an application/json body strictly: unknown fields and
// trailing data are rejected. Requests without a body are skipped.
func BindJSON() Bind {
	return func(r *http.Request, v any) error {
		if r.Body == nil || r.Body == http.NoBody || (r.ContentLength == 0 && r.Header.Get("Content-Type") == "") {
			return ErrBinderNotApplicable
		}
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			return fmt.Errorf("%w: expected application/json", ErrUnsupportedMedia)
		}

		dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: empty body", ErrInvalidJSON)
			}
			return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		var extra json.RawMessage
		if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: unexpected data after JSON object", ErrInvalidJSON)
		}
		return nil
	}
}

// BindPath fills string fields tagged `path:"name"` using extractor, which
// is usually chi.URLParam.
func BindPath(extractor func(r *http.Request, name string) string) Bind {
	return func(r *http.Request, v any) error {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
			return fmt.Errorf("%w: target must be a pointer to struct", ErrInvalidPath)
		}
		rv = rv.Elem()
		rt := rv.Type()

		for i := range rv.NumField() {
			field := rv.Field(i)
			name, ok := rt.Field(i).Tag.Lookup("path")
			if !ok || name == "-" || !field.CanSet() {
				continue
			}
			if field.Kind() != reflect.String {
				return fmt.Errorf("%w: field %s must be a string", ErrInvalidPath, rt.Field(i).Name)
			}
			if val := extractor(r, name); val != "" {
				field.SetString(val)
			}
		}
		return nil
	}
}
