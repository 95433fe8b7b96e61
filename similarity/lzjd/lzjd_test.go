/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package lzjd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRejectsEmptyPayload(t *testing.T) {
	_, err := Build(nil)
	assert.Error(t, err)
}

func TestRenderHasLZJDPrefix(t *testing.T) {
	d, err := Build([]byte("GET /index.html HTTP/1.1\r\nHost: example.org\r\n"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(d.Render(), "lzjd:"))
}

func TestDistanceIdenticalIsZero(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog, repeatedly")
	d1, err := Build(payload)
	require.NoError(t, err)
	d2, err := Build(payload)
	require.NoError(t, err)

	dist := Distance(d1, d2, false)
	assert.Equal(t, 0, dist)
	assert.Equal(t, d1.Render(), d2.Render())
}

func TestDistanceDisjointIsHigh(t *testing.T) {
	d1, err := Build([]byte(strings.Repeat("a", 200)))
	require.NoError(t, err)
	d2, err := Build([]byte(strings.Repeat("z", 200)))
	require.NoError(t, err)

	dist := Distance(d1, d2, false)
	assert.Greater(t, dist, 50)
}

func TestDistanceSymmetric(t *testing.T) {
	d1, err := Build([]byte("payload A with some content"))
	require.NoError(t, err)
	d2, err := Build([]byte("payload B with different content"))
	require.NoError(t, err)

	assert.Equal(t, Distance(d1, d2, false), Distance(d2, d1, false))
}

func TestDistanceLengthPenaltyNeverDecreases(t *testing.T) {
	d1, err := Build([]byte("short"))
	require.NoError(t, err)
	d2, err := Build([]byte(strings.Repeat("much longer payload content here", 5)))
	require.NoError(t, err)

	base := Distance(d1, d2, false)
	penalized := Distance(d1, d2, true)
	assert.GreaterOrEqual(t, penalized, base)
}
