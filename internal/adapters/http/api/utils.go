package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes bounds a screening payload; eleven integers fit easily.
const maxBodyBytes = 64 << 10

var (
	errEmptyBody    = errors.New("request body must be a JSON object")
	errTrailingData = errors.New("unexpected data after JSON object")
)

// decodeObject reads a single JSON object from the request body. Numbers are
// kept as json.Number so integer coercion sees the literal the client sent.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errEmptyBody
		}
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	if raw == nil {
		return nil, errEmptyBody
	}
	if dec.More() {
		return nil, errTrailingData
	}
	return raw, nil
}
