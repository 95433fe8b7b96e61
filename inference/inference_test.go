/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreHTTPRequest(t *testing.T) {
	payload := []byte("GET /index.html HTTP/1.1\r\nHost: example.org\r\n")
	result := Score(payload, nil, 0, 3, 0.5)

	assert.Equal(t, "http", result.Label)
	assert.False(t, result.Abstained)
	require.NotEmpty(t, result.Candidates)
	assert.Equal(t, "http", result.Candidates[0].Protocol)
}

func TestScoreSSHBanner(t *testing.T) {
	result := Score([]byte("SSH-2.0-OpenSSH_8.4"), nil, 0, 3, 0.5)
	assert.Equal(t, "ssh", result.Label)
	assert.False(t, result.Abstained)
}

func TestScoreELFMagic(t *testing.T) {
	raw := []byte{0x7f, 0x45, 0x4c, 0x46, 0x02, 0x01, 0x01, 0x00}
	result := Score(raw, nil, 0, 3, 0.5)
	assert.Equal(t, "firmware_binary", result.Label)
}

func TestScoreNoMatchesAbstainsToUnknown(t *testing.T) {
	result := Score([]byte{0x01, 0x02}, nil, 0, 3, 0.5)
	assert.Equal(t, "unknown", result.Label)
	assert.True(t, result.Abstained)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "unknown", result.Candidates[0].Protocol)
}

func TestScoreAbstainedIffBelowThreshold(t *testing.T) {
	payload := []byte("USER anonymous\r\n")
	result := Score(payload, nil, 0, 3, 0.9)
	assert.True(t, result.Abstained)
	assert.Equal(t, "unknown", result.Label)
	assert.Less(t, result.Confidence, 0.9)
}

func TestScoreNeighborBoostMonotonic(t *testing.T) {
	payload := []byte("GET /index.html HTTP/1.1\r\nHost: example.org\r\n")
	low := Score(payload, nil, 0, 3, 0.5)
	high := Score(payload, nil, 50, 3, 0.5)
	assert.GreaterOrEqual(t, high.Confidence, low.Confidence)
}

func TestScoreClampsToPointNineNine(t *testing.T) {
	payload := []byte("GET /index.html HTTP/1.1\r\nHost: example.org\r\n")
	result := Score(payload, nil, 1000000, 3, 0.5)
	assert.LessOrEqual(t, result.Confidence, 0.99)
}

func TestScoreTopKClampsToAtLeastOne(t *testing.T) {
	payload := []byte("GET /index.html HTTP/1.1\r\nHost: example.org\r\n")
	result := Score(payload, nil, 0, 0, 0.5)
	assert.Len(t, result.Candidates, 1)
}

func TestScoreTagEvidenceContributes(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	withoutTags := Score(payload, nil, 0, 3, 0.1)
	withTags := Score(payload, []string{"dns_query"}, 0, 3, 0.1)
	assert.Equal(t, "dns_or_domain_payload", withTags.Label)
	assert.NotEqual(t, withoutTags.Label, withTags.Label)
}
