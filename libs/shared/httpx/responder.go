package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// JSON writes the provided payload as JSON with the supplied status code.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// Error writes an error response with a standard envelope.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{"error": message})
}

// FieldErrors writes a field -> messages map under the "errors" key.
func FieldErrors(w http.ResponseWriter, status int, fields map[string][]string) {
	JSON(w, status, map[string]any{"errors": fields})
}

// DecodeJSON decodes a request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}
