/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fbhash

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

func TestBuildHandlesPayloadsShorterThanWindow(t *testing.T) {
	d, err := Build([]byte("hi"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(d.Render(), "fbhash:"))
}

func TestDistanceIdenticalIsZero(t *testing.T) {
	payload := []byte("GET /index.html HTTP/1.1\r\nHost: example.org\r\n")
	d1, err := Build(payload)
	require.NoError(t, err)
	d2, err := Build(payload)
	require.NoError(t, err)

	assert.Equal(t, 0, Distance(d1, d2, false))
	assert.Equal(t, d1.Render(), d2.Render())
}

func TestDistanceSymmetricAndBounded(t *testing.T) {
	d1, err := Build([]byte("GET /index.html HTTP/1.1\r\nHost: example.org\r\n"))
	require.NoError(t, err)
	d2, err := Build([]byte("GET /about.html HTTP/1.1\r\nHost: example.net\r\n"))
	require.NoError(t, err)

	dAB := Distance(d1, d2, false)
	dBA := Distance(d2, d1, false)
	assert.Equal(t, dAB, dBA)
	assert.GreaterOrEqual(t, dAB, 0)
	assert.LessOrEqual(t, dAB, 100)
	assert.Less(t, dAB, 100)
}

func TestDistanceLengthPenaltyNeverDecreases(t *testing.T) {
	d1, err := Build([]byte("GET /index.html HTTP/1.1\r\nHost: example.org\r\n"))
	require.NoError(t, err)
	d2, err := Build([]byte("GET /index.html HTTP/1.1\r\nHost: example.org.longer.tail\r\n"))
	require.NoError(t, err)

	base := Distance(d1, d2, false)
	penalized := Distance(d1, d2, true)
	assert.GreaterOrEqual(t, penalized, base)
}
