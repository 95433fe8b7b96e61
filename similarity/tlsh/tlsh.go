/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package tlsh implements a locality-sensitive trigram-bucket hash
// parameterized by bucket count and checksum length, in the spirit of the
// well-known TLSH algorithm. No off-the-shelf Go (or Rust) implementation
// of TLSH exists anywhere in the reference corpus this module was built
// against, so this is a from-scratch port of the algorithm description
// rather than an adaptation of an existing library.
package tlsh

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/obsecurus/precursor/similarity"
)

// Params describes one TLSH algorithm tag's shape.
type Params struct {
	BucketSize  int
	ChecksumLen int
}

var algorithms = map[string]Params{
	"48_1":  {BucketSize: 48, ChecksumLen: 1},
	"128_1": {BucketSize: 128, ChecksumLen: 1},
	"128_3": {BucketSize: 128, ChecksumLen: 3},
	"256_1": {BucketSize: 256, ChecksumLen: 1},
	"256_3": {BucketSize: 256, ChecksumLen: 3},
}

// ResolveAlgorithm looks up the bucket/checksum shape for an algorithm tag
// such as "128_1".
func ResolveAlgorithm(tag string) (Params, error) {
	p, ok := algorithms[tag]
	if !ok {
		return Params{}, fmt.Errorf("tlsh: unsupported algorithm %q", tag)
	}
	return p, nil
}

// Digest is a built TLSH hash. Digests of different algorithm tags are
// incompatible and Distance reports an error if asked to compare them.
type Digest struct {
	Algorithm string
	Len       int
	body      []byte
	checksum  []byte
}

// Build computes a TLSH digest for payload under the given algorithm tag.
func Build(payload []byte, algorithm string) (*Digest, error) {
	if len(payload) == 0 {
		return nil, similarity.ErrEmptyPayload
	}
	params, err := ResolveAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}

	counts := make([]uint32, params.BucketSize)
	for i := 0; i+2 < len(payload); i++ {
		b0, b1, b2 := payload[i], payload[i+1], payload[i+2]
		for salt := 0; salt < 3; salt++ {
			counts[trigramBucket(b0, b1, b2, salt, params.BucketSize)]++
		}
	}

	q1, q2, q3 := quartiles(counts)
	body := make([]byte, params.BucketSize/4)
	for i, c := range counts {
		code := quartileCode(c, q1, q2, q3)
		body[i/4] |= code << uint((i%4)*2)
	}

	return &Digest{
		Algorithm: algorithm,
		Len:       len(payload),
		body:      body,
		checksum:  pearsonChecksum(payload, params.ChecksumLen),
	}, nil
}

// Render returns the lowercase ASCII hex of the checksum followed by the
// hash body.
func (d *Digest) Render() string {
	return hex.EncodeToString(d.checksum) + hex.EncodeToString(d.body)
}

// Distance computes the normalized [0,100] distance between two TLSH
// digests of the same algorithm tag.
func Distance(a, b *Digest, includeLengthPenalty bool) (int, error) {
	if a.Algorithm != b.Algorithm {
		return 0, similarity.ErrIncompatibleVariants
	}

	bodyDiff := 0
	maxBodyDiff := 0
	for i := range a.body {
		ac := a.body[i]
		bc := b.body[i]
		for shift := uint(0); shift < 8; shift += 2 {
			da := (ac >> shift) & 0x03
			db := (bc >> shift) & 0x03
			bodyDiff += codeDiff(da, db)
			maxBodyDiff += 6
		}
	}

	bodyScore := 0.0
	if maxBodyDiff > 0 {
		bodyScore = float64(bodyDiff) / float64(maxBodyDiff) * 90.0
	}

	checksumDiffBytes := 0
	for i := range a.checksum {
		if a.checksum[i] != b.checksum[i] {
			checksumDiffBytes++
		}
	}
	checksumScore := 0.0
	if len(a.checksum) > 0 {
		checksumScore = float64(checksumDiffBytes) / float64(len(a.checksum)) * 10.0
	}

	total := int(roundHalfAwayFromZero(bodyScore + checksumScore))
	if includeLengthPenalty {
		total += similarity.LengthPenalty(a.Len, b.Len)
	}
	return similarity.Clamp(total), nil
}

func codeDiff(a, b byte) int {
	diff := int(a) - int(b)
	if diff < 0 {
		diff = -diff
	}
	if diff == 3 {
		return 6
	}
	return diff
}

func quartiles(counts []uint32) (q1, q2, q3 uint32) {
	sorted := append([]uint32(nil), counts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	if n == 0 {
		return 0, 0, 0
	}
	return sorted[n/4], sorted[n/2], sorted[(n*3)/4]
}

func quartileCode(c, q1, q2, q3 uint32) byte {
	switch {
	case c <= q1:
		return 0
	case c <= q2:
		return 1
	case c <= q3:
		return 2
	default:
		return 3
	}
}

func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}
