/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package payload decodes a single input record — a line, a blob, or a
// JSON field — into the raw byte sequence the rest of Precursor operates
// on.
package payload

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Mode names the transport encoding a record is declared under.
type Mode string

const (
	ModeBase64 Mode = "base64"
	ModeString Mode = "string"
	ModeHex    Mode = "hex"
	ModeBinary Mode = "binary"
)

func (m Mode) valid() bool {
	switch m {
	case ModeBase64, ModeString, ModeHex, ModeBinary:
		return true
	}
	return false
}

// OriginKind distinguishes where a Payload's bytes originated.
type OriginKind int

const (
	OriginLine OriginKind = iota
	OriginFile
	OriginBlob
)

// Origin records the provenance of a Payload for diagnostics.
type Origin struct {
	Kind   OriginKind
	Line   int
	Path   string
	Offset int64
}

// Payload is an immutable byte sequence plus its origin. It is created once
// by Decode and never mutated afterward.
type Payload struct {
	Data   []byte
	Origin Origin
}

// UnsupportedModeError is returned when an unrecognized Mode is requested.
type UnsupportedModeError struct {
	Mode Mode
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("%q is not a supported input mode", string(e.Mode))
}

// InvalidEncodingError wraps a transport-decode failure (bad hex, bad
// base64).
type InvalidEncodingError struct {
	Mode Mode
	Err  error
}

func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("invalid %s payload: %v", e.Mode, e.Err)
}

func (e *InvalidEncodingError) Unwrap() error { return e.Err }

// JSONParseError is returned when a JSON-path extraction was requested but
// the record does not parse as JSON.
type JSONParseError struct {
	Err error
}

func (e *JSONParseError) Error() string { return fmt.Sprintf("invalid JSON record: %v", e.Err) }
func (e *JSONParseError) Unwrap() error { return e.Err }

// JSONPathError is returned when a JSON-path expression resolves to
// nothing.
type JSONPathError struct {
	Path string
}

func (e *JSONPathError) Error() string {
	return fmt.Sprintf("JSON path %q did not resolve to a value", e.Path)
}

func removeWrappedQuotes(s []byte) []byte {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

func stripWhitespace(s []byte) []byte {
	out := make([]byte, 0, len(s))
	for _, b := range s {
		switch b {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			continue
		}
		out = append(out, b)
	}
	return out
}

// decodeLeaf applies the declared Mode to a record that has already been
// through JSON-path extraction (or never needed it).
func decodeLeaf(record []byte, mode Mode) ([]byte, error) {
	switch mode {
	case ModeBinary:
		return record, nil
	case ModeString:
		return removeWrappedQuotes(record), nil
	case ModeBase64:
		stripped := removeWrappedQuotes(stripWhitespace(record))
		out, err := base64.StdEncoding.DecodeString(string(stripped))
		if err != nil {
			return nil, &InvalidEncodingError{Mode: mode, Err: err}
		}
		return out, nil
	case ModeHex:
		stripped := removeWrappedQuotes(stripWhitespace(record))
		out, err := hex.DecodeString(string(stripped))
		if err != nil {
			return nil, &InvalidEncodingError{Mode: mode, Err: err}
		}
		return out, nil
	default:
		return nil, &UnsupportedModeError{Mode: mode}
	}
}

// Decode converts a raw record into a Payload under the declared mode. If
// jsonPath is non-empty, the record is first parsed as JSON (non-object
// roots are wrapped under the key "input"), the path is evaluated, and the
// resulting scalar is re-decoded under mode. The second return value is the
// base JSON object the path was evaluated against (the record itself, or
// the wrapping object for a non-object root; nil if jsonPath was empty) so
// callers can merge surviving JSON fields into the final report.
func Decode(record []byte, mode Mode, jsonPath string, origin Origin) (Payload, json.RawMessage, error) {
	if !mode.valid() && mode != ModeBinary && mode != ModeString && mode != ModeHex && mode != ModeBase64 {
		return Payload{}, nil, &UnsupportedModeError{Mode: mode}
	}

	if jsonPath == "" {
		data, err := decodeLeaf(record, mode)
		if err != nil {
			return Payload{}, nil, err
		}
		return Payload{Data: data, Origin: origin}, nil, nil
	}

	if !json.Valid(record) {
		return Payload{}, nil, &JSONParseError{Err: fmt.Errorf("record is not valid JSON")}
	}

	base := record
	trimmed := bytes.TrimSpace(record)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		wrapped, err := json.Marshal(map[string]json.RawMessage{"input": json.RawMessage(record)})
		if err != nil {
			return Payload{}, nil, &JSONParseError{Err: err}
		}
		base = wrapped
	}

	result := gjson.GetBytes(base, jsonPath)
	if !result.Exists() {
		return Payload{}, nil, &JSONPathError{Path: jsonPath}
	}

	leaf := []byte(result.String())
	data, err := decodeLeaf(leaf, mode)
	if err != nil {
		return Payload{}, nil, err
	}
	return Payload{Data: data, Origin: origin}, json.RawMessage(base), nil
}
