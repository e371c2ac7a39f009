package jsonx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// MaxBodyBytes caps request bodies read by the body parsers.
const MaxBodyBytes = 1 << 20

var (
	ErrEmptyBody    = errors.New("empty body")
	ErrTrailingJSON = errors.New("trailing data")
	ErrBodyTooLarge = errors.New("body too large")
)

// ParseJSONObject decodes one JSON value from src into dst, rejecting
// unknown object fields.
//
// - Malformed JSON (bad tokens, empty/unterminated/truncated) => *json.SyntaxError, io.EOF, io.ErrUnexpectedEOF
// - Incorrect data type (field/value mismatch) => *json.UnmarshalTypeError
// - Unknown object fields => error("json: unknown field \"...\"") from encoding/json (no dedicated error type)
func ParseJSONObject[T any](src io.Reader, dst *T) error {
	dec := json.NewDecoder(src)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ParseStrictJSONBody reads and **strictly** decodes a JSON HTTP request body into dst.
//
// Every failure is a shape problem and maps to **400 Bad Request**:
//
//   - Malformed JSON syntax (e.g., bad tokens, truncated body)
//   - Empty body (ErrEmptyBody)
//   - Oversized body, over MaxBodyBytes (ErrBodyTooLarge)
//   - Trailing data after the first value (ErrTrailingJSON)
//   - Unknown fields, via DisallowUnknownFields
//   - Field-type mismatches (e.g., string into int)
//
// It does not check required fields or business rules.
func ParseStrictJSONBody[T any](r *http.Request, dst *T) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return ErrEmptyBody
	}
	return decodeSingle(body, dst)
}

// ParseOptionalJSONBody is ParseStrictJSONBody for endpoints whose body may
// be omitted; an empty body leaves dst untouched.
func ParseOptionalJSONBody[T any](r *http.Request, dst *T) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return decodeSingle(body, dst)
}

func readBody(r *http.Request) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxBodyBytes {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

func decodeSingle[T any](body []byte, dst *T) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Ensure no trailing JSON values
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return ErrTrailingJSON
	}
	return nil
}
