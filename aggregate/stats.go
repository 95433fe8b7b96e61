/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package aggregate

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/inhies/go-bytesize"

	"github.com/obsecurus/precursor/report"
)

const statisticsMarker = "---PRECURSOR_STATISTICS---"

// Environment echoes the run's configuration into the statistics object, as
// the run's configuration echoed alongside the counters.
type Environment struct {
	Version          string
	SimilarityMode   string
	TLSHAlgorithm    string
	RegexEngine      string
	Threshold        int
	SimOnly          bool
	SinglePacket     bool
	AbstainThreshold float64
}

// Stats accumulates batch-wide counters and the payload size distribution.
// Counters are atomic and the size list is guarded by its own mutex,
// independent of the aggregator's report/sequence locks.
type Stats struct {
	inputsSeen    int64
	matched       int64
	hashesBuilt   int64
	pairsUnder    int64
	tagCounts     sync.Map // tag -> *int64

	sizeMu sync.Mutex
	sizes  []int

	uniqueMu sync.Mutex
	unique   map[string]struct{}
}

// NewStats constructs an empty Stats collector.
func NewStats() *Stats {
	return &Stats{unique: make(map[string]struct{})}
}

// RecordInput counts one record pulled from the input source, whether or
// not it ultimately matched.
func (s *Stats) RecordInput() {
	atomic.AddInt64(&s.inputsSeen, 1)
}

// RecordMatch records a matched payload: its fingerprint for the
// unique-payload count, its size for the distribution, and its tags for
// the per-tag counters.
func (s *Stats) RecordMatch(rep *report.PayloadReport, payloadLen int) {
	atomic.AddInt64(&s.matched, 1)

	s.uniqueMu.Lock()
	s.unique[rep.Fingerprint.String()] = struct{}{}
	s.uniqueMu.Unlock()

	s.sizeMu.Lock()
	s.sizes = append(s.sizes, payloadLen)
	s.sizeMu.Unlock()

	for _, tag := range rep.Tags {
		s.addTag(tag)
	}
	if rep.SimilarityHash != "" {
		atomic.AddInt64(&s.hashesBuilt, 1)
	}
}

func (s *Stats) addTag(tag string) {
	counterAny, _ := s.tagCounts.LoadOrStore(tag, new(int64))
	counter := counterAny.(*int64)
	atomic.AddInt64(counter, 1)
}

// RecordPair counts one pairwise comparison that fell at or under the
// similarity threshold.
func (s *Stats) RecordPair() {
	atomic.AddInt64(&s.pairsUnder, 1)
}

// sizeDistribution computes min/avg/max/p95/total over the recorded sizes.
// p95 is computed as sorted[len*95/100-1], clamped at index 0 to preserve
// the source formula's behavior on small samples (see DESIGN.md's Open
// Question resolution).
func (s *Stats) sizeDistribution() (min, avg, max, p95, total int) {
	s.sizeMu.Lock()
	sizes := make([]int, len(s.sizes))
	copy(sizes, s.sizes)
	s.sizeMu.Unlock()

	if len(sizes) == 0 {
		return 0, 0, 0, 0, 0
	}
	sort.Ints(sizes)
	min = sizes[0]
	max = sizes[len(sizes)-1]
	sum := 0
	for _, v := range sizes {
		sum += v
	}
	total = sum
	avg = sum / len(sizes)

	idx := len(sizes)*95/100 - 1
	if idx < 0 {
		idx = 0
	}
	p95 = sizes[idx]
	return
}

// Snapshot renders the statistics object as a plain map, ready for JSON
// marshaling.
func (s *Stats) Snapshot(env Environment) map[string]interface{} {
	tagCounts := map[string]int64{}
	s.tagCounts.Range(func(k, v interface{}) bool {
		tagCounts[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})

	s.uniqueMu.Lock()
	uniqueCount := len(s.unique)
	s.uniqueMu.Unlock()

	min, avg, max, p95, total := s.sizeDistribution()

	return map[string]interface{}{
		"inputs_seen":      atomic.LoadInt64(&s.inputsSeen),
		"matched_payloads": atomic.LoadInt64(&s.matched),
		"unique_payloads":  uniqueCount,
		"tag_matches":      tagCounts,
		"hashes_built":     atomic.LoadInt64(&s.hashesBuilt),
		"pairs_under_threshold": atomic.LoadInt64(&s.pairsUnder),
		"size_distribution": map[string]interface{}{
			"min":          min,
			"avg":          avg,
			"max":          max,
			"p95":          p95,
			"total_bytes":  total,
			"total_human":  bytesize.ByteSize(total).String(),
		},
		"environment": map[string]interface{}{
			"version":           env.Version,
			"similarity_mode":   env.SimilarityMode,
			"tlsh_algorithm":    env.TLSHAlgorithm,
			"regex_engine":      env.RegexEngine,
			"threshold":         env.Threshold,
			"sim_only":          env.SimOnly,
			"single_packet":     env.SinglePacket,
			"abstain_threshold": env.AbstainThreshold,
		},
	}
}

// EmitStatistics writes the marker-framed statistics JSON object to w,
// as a marker line followed by a single JSON-encoded line.
func EmitStatistics(w io.Writer, stats *Stats, env Environment) error {
	snapshot := stats.Snapshot(env)
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("aggregate: encoding statistics: %w", err)
	}
	if _, err := fmt.Fprintln(w, statisticsMarker); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}
