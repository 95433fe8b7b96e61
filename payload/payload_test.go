/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeString(t *testing.T) {
	p, base, err := Decode([]byte(`"hello world"`), ModeString, "", Origin{Kind: OriginLine, Line: 1})
	require.NoError(t, err)
	assert.Nil(t, base)
	assert.Equal(t, "hello world", string(p.Data))
}

func TestDecodeHexWhitespaceTolerant(t *testing.T) {
	p, _, err := Decode([]byte("68 65 6c 6c 6f"), ModeHex, "", Origin{})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(p.Data))
}

func TestDecodeHexOddLengthFails(t *testing.T) {
	_, _, err := Decode([]byte("abc"), ModeHex, "", Origin{})
	require.Error(t, err)
	var invalid *InvalidEncodingError
	assert.ErrorAs(t, err, &invalid)
}

func TestDecodeBase64(t *testing.T) {
	p, _, err := Decode([]byte("aGVsbG8="), ModeBase64, "", Origin{})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(p.Data))
}

func TestDecodeBinaryPassesThroughUnchanged(t *testing.T) {
	raw := []byte{0x00, 0x27, 0x05, 0x19, 0x56, 0xff}
	p, _, err := Decode(raw, ModeBinary, "", Origin{})
	require.NoError(t, err)
	assert.Equal(t, raw, p.Data)
}

func TestDecodeUnsupportedMode(t *testing.T) {
	_, _, err := Decode([]byte("x"), Mode("nonsense"), "", Origin{})
	var unsupported *UnsupportedModeError
	assert.ErrorAs(t, err, &unsupported)
}

func TestDecodeJSONPathWrapsNonObjectRoot(t *testing.T) {
	p, base, err := Decode([]byte(`"aGVsbG8="`), ModeBase64, "input", Origin{})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(p.Data))
	require.NotNil(t, base)
}

func TestDecodeJSONPathPreservesBaseFields(t *testing.T) {
	record := []byte(`{"encoded":"aGVsbG8=","extra":"kept"}`)
	p, base, err := Decode(record, ModeBase64, "encoded", Origin{})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(p.Data))
	assert.JSONEq(t, string(record), string(base))
}

func TestDecodeJSONPathMissingFails(t *testing.T) {
	record := []byte(`{"foo":"bar"}`)
	_, _, err := Decode(record, ModeString, "missing", Origin{})
	var pathErr *JSONPathError
	assert.ErrorAs(t, err, &pathErr)
}

func TestDecodeJSONPathInvalidJSONFails(t *testing.T) {
	_, _, err := Decode([]byte(`not json`), ModeString, "foo", Origin{})
	var parseErr *JSONParseError
	assert.ErrorAs(t, err, &parseErr)
}
