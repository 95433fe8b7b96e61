/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package fbhash implements the chunk-feature cosine similarity backend: a
// 7-byte sliding window over the payload is hashed with XXH3-64 into
// feature ids, frequency-counted, and compared via a TF/IDF-proxy weighted
// cosine distance.
package fbhash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"github.com/obsecurus/precursor/similarity"
	"github.com/zeebo/xxh3"
)

const (
	windowSize       = 7
	fingerprintTopK  = 32
)

type feature struct {
	hash uint64
	tf   uint32
}

// Digest is a built FBHash: the sorted-by-id full feature list plus the
// rendered digest string.
type Digest struct {
	features   []feature
	payloadLen int
	digest     string
}

// Build computes the FBHash digest for payload.
func Build(payload []byte) (*Digest, error) {
	if len(payload) == 0 {
		return nil, similarity.ErrEmptyPayload
	}

	frequencies := make(map[uint64]uint32)
	chunkCount := 0

	if len(payload) < windowSize {
		h := xxh3.Hash(payload)
		frequencies[h] = 1
		chunkCount = 1
	} else {
		for i := 0; i+windowSize <= len(payload); i++ {
			h := xxh3.Hash(payload[i : i+windowSize])
			frequencies[h]++
			chunkCount++
		}
	}

	if len(frequencies) == 0 {
		return nil, fmt.Errorf("fbhash: failed to extract any chunk features")
	}

	features := make([]feature, 0, len(frequencies))
	for h, tf := range frequencies {
		features = append(features, feature{hash: h, tf: tf})
	}
	sort.Slice(features, func(i, j int) bool { return features[i].hash < features[j].hash })

	digest := renderDigest(features, len(payload), chunkCount)
	return &Digest{features: features, payloadLen: len(payload), digest: digest}, nil
}

// Render returns `fbhash:<numfeatures>:<sha256prefix>`.
func (d *Digest) Render() string { return d.digest }

func renderDigest(features []feature, payloadLen, chunkCount int) string {
	ranked := append([]feature(nil), features...)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].tf != ranked[j].tf {
			return ranked[i].tf > ranked[j].tf
		}
		return ranked[i].hash < ranked[j].hash
	})
	if len(ranked) > fingerprintTopK {
		ranked = ranked[:fingerprintTopK]
	}

	buf := make([]byte, 0, len(ranked)*12+16)
	var lenBuf, countBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(payloadLen))
	binary.BigEndian.PutUint64(countBuf[:], uint64(chunkCount))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, countBuf[:]...)
	for _, f := range ranked {
		var hb [8]byte
		var tb [4]byte
		binary.BigEndian.PutUint64(hb[:], f.hash)
		binary.BigEndian.PutUint32(tb[:], f.tf)
		buf = append(buf, hb[:]...)
		buf = append(buf, tb[:]...)
	}

	sum := sha256.Sum256(buf)
	return fmt.Sprintf("fbhash:%d:%s", len(features), hex.EncodeToString(sum[:16]))
}

// Distance computes the cosine-dissimilarity-based distance between two
// FBHash digests over their full (untruncated, id-sorted) feature lists.
func Distance(a, b *Digest, includeLengthPenalty bool) int {
	li, ri := 0, 0
	var dotProduct, normLeft, normRight float64

	for li < len(a.features) && ri < len(b.features) {
		lf, rf := a.features[li], b.features[ri]
		switch {
		case lf.hash == rf.hash:
			lw := featureWeight(lf.tf, 2)
			rw := featureWeight(rf.tf, 2)
			dotProduct += lw * rw
			normLeft += lw * lw
			normRight += rw * rw
			li++
			ri++
		case lf.hash < rf.hash:
			lw := featureWeight(lf.tf, 1)
			normLeft += lw * lw
			li++
		default:
			rw := featureWeight(rf.tf, 1)
			normRight += rw * rw
			ri++
		}
	}
	for ; li < len(a.features); li++ {
		lw := featureWeight(a.features[li].tf, 1)
		normLeft += lw * lw
	}
	for ; ri < len(b.features); ri++ {
		rw := featureWeight(b.features[ri].tf, 1)
		normRight += rw * rw
	}

	cosineSimilarity := 0.0
	if normLeft != 0.0 && normRight != 0.0 {
		cosineSimilarity = dotProduct / (math.Sqrt(normLeft) * math.Sqrt(normRight))
	}
	if cosineSimilarity > 1.0 {
		cosineSimilarity = 1.0
	} else if cosineSimilarity < 0.0 {
		cosineSimilarity = 0.0
	}

	distance := int(roundHalfAwayFromZero((1.0 - cosineSimilarity) * 100.0))
	if includeLengthPenalty {
		distance += similarity.LengthPenalty(a.payloadLen, b.payloadLen)
	}
	return similarity.Clamp(distance)
}

// featureWeight implements the FBHash-inspired TF/IDF-proxy weighting:
// log-scaled term frequency times a local two-document IDF proxy.
func featureWeight(termFrequency, documentFrequency uint32) float64 {
	tf := 1.0 + math.Log(float64(termFrequency))
	idf := math.Log(1.0 + 2.0/float64(documentFrequency))
	return tf * idf
}

func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}
