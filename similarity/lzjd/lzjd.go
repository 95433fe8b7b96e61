/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package lzjd implements the LZ78-phrase MinHash similarity backend: an
// LZ78 phrase dictionary is built over the payload, each phrase is hashed
// to a bucket id, and the sorted top-K bucket ids form the sketch.
package lzjd

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/obsecurus/precursor/similarity"
)

const sketchSize = 128

// Digest is a built LZJD sketch plus the original payload length (folded
// into the rendered digest and used for the optional length penalty).
type Digest struct {
	sketch    []uint64
	payloadLen int
}

// Build computes the LZJD digest for payload.
func Build(payload []byte) (*Digest, error) {
	if len(payload) == 0 {
		return nil, similarity.ErrEmptyPayload
	}

	phrases := lz78Phrases(payload)
	if len(phrases) == 0 {
		return nil, fmt.Errorf("lzjd: produced an empty phrase set")
	}

	sketch := make([]uint64, 0, len(phrases))
	for _, phrase := range phrases {
		sketch = append(sketch, hashPhraseToBucket(phrase))
	}
	sort.Slice(sketch, func(i, j int) bool { return sketch[i] < sketch[j] })
	sketch = dedupSorted(sketch)
	if len(sketch) > sketchSize {
		sketch = sketch[:sketchSize]
	}
	if len(sketch) == 0 {
		return nil, fmt.Errorf("lzjd: produced an empty sketch")
	}

	return &Digest{sketch: sketch, payloadLen: len(payload)}, nil
}

// Render renders `lzjd:<sketchlen>:<sha256prefix>`.
func (d *Digest) Render() string {
	buf := make([]byte, 0, (len(d.sketch)+1)*8)
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(d.payloadLen))
	buf = append(buf, lenBuf[:]...)
	for _, bucket := range d.sketch {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], bucket)
		buf = append(buf, b[:]...)
	}
	digest := sha256.Sum256(buf)
	return fmt.Sprintf("lzjd:%d:%s", len(d.sketch), hex.EncodeToString(digest[:16]))
}

// Distance computes the Jaccard-derived distance between two sketches.
func Distance(a, b *Digest, includeLengthPenalty bool) int {
	jaccard := jaccardSimilarity(a.sketch, b.sketch)
	distance := int(roundHalfAwayFromZero((1.0 - jaccard) * 100.0))
	if includeLengthPenalty {
		distance += similarity.LengthPenalty(a.payloadLen, b.payloadLen)
	}
	return similarity.Clamp(distance)
}

func lz78Phrases(payload []byte) [][]byte {
	dictionary := make(map[string]struct{})
	var phrases [][]byte
	start := 0
	for start < len(payload) {
		end := start + 1
		for end <= len(payload) {
			if _, ok := dictionary[string(payload[start:end])]; !ok {
				break
			}
			end++
		}
		if end <= len(payload) {
			phrase := append([]byte(nil), payload[start:end]...)
			dictionary[string(phrase)] = struct{}{}
			phrases = append(phrases, phrase)
			start = end
		} else {
			phrase := append([]byte(nil), payload[start:]...)
			dictionary[string(phrase)] = struct{}{}
			phrases = append(phrases, phrase)
			break
		}
	}
	return phrases
}

func hashPhraseToBucket(phrase []byte) uint64 {
	digest := sha256.Sum256(phrase)
	return binary.BigEndian.Uint64(digest[:8])
}

func dedupSorted(sorted []uint64) []uint64 {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func jaccardSimilarity(left, right []uint64) float64 {
	if len(left) == 0 && len(right) == 0 {
		return 1.0
	}
	i, j, intersection := 0, 0, 0
	for i < len(left) && j < len(right) {
		switch {
		case left[i] < right[j]:
			i++
		case left[i] > right[j]:
			j++
		default:
			intersection++
			i++
			j++
		}
	}
	union := len(left) + len(right) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}

func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}
