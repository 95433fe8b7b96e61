/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsecurus/precursor/similarity/mrshv2"
)

var universalModes = []struct {
	name          string
	mode          Mode
	tlshAlgorithm string
}{
	{"lzjd", ModeLZJD, ""},
	{"fbhash", ModeFBHash, ""},
	{"tlsh", ModeTLSH, "128_1"},
}

func TestUniversalBackendProperties(t *testing.T) {
	payloadA := []byte("GET /index.html HTTP/1.1\r\nHost: example.org\r\n")
	payloadB := []byte("GET /other.html HTTP/1.1\r\nHost: example.net\r\n")

	for _, tc := range universalModes {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			hashA, err := Build(payloadA, tc.mode, tc.tlshAlgorithm)
			require.NoError(t, err)
			hashA2, err := Build(payloadA, tc.mode, tc.tlshAlgorithm)
			require.NoError(t, err)
			hashB, err := Build(payloadB, tc.mode, tc.tlshAlgorithm)
			require.NoError(t, err)

			// identical payloads render identically and distance 0.
			assert.Equal(t, hashA.Render(), hashA2.Render())
			dSelf, err := Diff(hashA, hashA2, false)
			require.NoError(t, err)
			assert.Equal(t, 0, dSelf)

			// distance is symmetric.
			dAB, err := Diff(hashA, hashB, false)
			require.NoError(t, err)
			dBA, err := Diff(hashB, hashA, false)
			require.NoError(t, err)
			assert.Equal(t, dAB, dBA)

			// distance is bounded.
			assert.GreaterOrEqual(t, dAB, 0)
			assert.LessOrEqual(t, dAB, 100)

			// length penalty never decreases distance.
			dABPenalized, err := Diff(hashA, hashB, true)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, dABPenalized, dAB)
		})
	}
}

func TestBuildRejectsEmptyPayloadForLZJDAndFBHash(t *testing.T) {
	_, err := Build(nil, ModeLZJD, "")
	assert.Error(t, err)

	_, err = Build([]byte{}, ModeFBHash, "")
	assert.Error(t, err)
}

func TestDiffRejectsCrossVariantComparison(t *testing.T) {
	lzjdHash, err := Build([]byte("payload one"), ModeLZJD, "")
	require.NoError(t, err)
	fbHash, err := Build([]byte("payload one"), ModeFBHash, "")
	require.NoError(t, err)

	_, err = Diff(lzjdHash, fbHash, false)
	assert.ErrorIs(t, err, ErrIncompatibleVariants)
}

func TestMRSHv2WithoutBuildTagReturnsAdapterError(t *testing.T) {
	_, err := Build([]byte("anything"), ModeMRSHv2, "")
	var adapterErr *mrshv2.AdapterError
	assert.ErrorAs(t, err, &adapterErr)
}
