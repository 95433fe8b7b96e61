/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package aggregate owns the two shared structures ingest populates — the
// payload report map and the ordered similarity-digest sequence — and the
// post-ingest operations run over them: all-pairs diffing, neighbor-boost
// re-ranking, and ordered emission.
package aggregate

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	gwlog "github.com/obsecurus/precursor/ingest/log"
	"github.com/obsecurus/precursor/inference"
	"github.com/obsecurus/precursor/report"
	"github.com/obsecurus/precursor/similarity"
)

// Config holds the aggregation-affecting subset of the CLI surface.
type Config struct {
	PairwiseDiff         bool
	Threshold            int
	IncludeLengthPenalty bool
	SinglePacket         bool
	SimOnly              bool
	AbstainThreshold     float64
	ProtocolTopK         int
}

type sequenceEntry struct {
	key    string
	digest similarity.Hash
}

// Aggregator indexes reports by fingerprint, collects the similarity
// sequence, and runs the post-ingest pairing and emission steps. The report
// map and the digest sequence are each guarded by their own mutex; no code
// path holds both at once.
type Aggregator struct {
	cfg Config
	log *gwlog.Logger

	reportMu sync.Mutex
	reports  map[string]*report.PayloadReport
	order    []string

	seqMu    sync.Mutex
	sequence []sequenceEntry

	stats *Stats
}

// New constructs an Aggregator. logger may be nil, in which case
// diagnostics are discarded.
func New(cfg Config, logger *gwlog.Logger) *Aggregator {
	return &Aggregator{
		cfg:     cfg,
		log:     logger,
		reports: make(map[string]*report.PayloadReport),
		stats:   NewStats(),
	}
}

func (a *Aggregator) warnf(format string, args ...interface{}) {
	if a.log != nil {
		a.log.Warnf(format, args...)
	}
}

// Ingest inserts a matched payload's report into the report map, keyed by
// fingerprint. Duplicate fingerprints overwrite the earlier report (see
// DESIGN.md's Open Question resolution); the unique-payload count is
// maintained independently by Stats.
func (a *Aggregator) Ingest(rep *report.PayloadReport, hash similarity.Hash, payloadLen int) {
	key := rep.Fingerprint.String()

	a.reportMu.Lock()
	if _, exists := a.reports[key]; !exists {
		a.order = append(a.order, key)
	}
	a.reports[key] = rep
	a.reportMu.Unlock()

	a.seqMu.Lock()
	a.sequence = append(a.sequence, sequenceEntry{key: key, digest: hash})
	a.seqMu.Unlock()

	a.stats.RecordMatch(rep, payloadLen)
}

// RunPairwiseDiff computes, for every unordered pair (i, j) with j > i in
// the digest sequence, the distance between their similarity hashes. Pairs
// at or below the configured threshold are recorded twice into the
// neighbor map, once under each side's digest rendering. The outer index i
// is parallelized via an errgroup; inner iteration over j > i is
// sequential per outer task.
func (a *Aggregator) RunPairwiseDiff(ctx context.Context) error {
	if !a.cfg.PairwiseDiff {
		return nil
	}

	a.seqMu.Lock()
	seq := make([]sequenceEntry, len(a.sequence))
	copy(seq, a.sequence)
	a.seqMu.Unlock()

	type pairResult struct {
		leftKey, rightKey       string
		leftDigest, rightDigest string
		distance                int
	}

	resultsMu := sync.Mutex{}
	var results []pairResult

	g, _ := errgroup.WithContext(ctx)
	for i := range seq {
		i := i
		g.Go(func() error {
			left := seq[i]
			var local []pairResult
			for j := i + 1; j < len(seq); j++ {
				right := seq[j]
				if left.digest.Mode() != right.digest.Mode() {
					continue
				}
				distance, err := similarity.Diff(left.digest, right.digest, a.cfg.IncludeLengthPenalty)
				if err != nil {
					a.warnf("aggregate: skipping incompatible pair %s/%s: %v", left.key, right.key, err)
					continue
				}
				if distance > a.cfg.Threshold {
					continue
				}
				a.stats.RecordPair()
				local = append(local, pairResult{
					leftKey:     left.key,
					rightKey:    right.key,
					leftDigest:  left.digest.Render(),
					rightDigest: right.digest.Render(),
					distance:    distance,
				})
			}
			if len(local) > 0 {
				resultsMu.Lock()
				results = append(results, local...)
				resultsMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	a.reportMu.Lock()
	defer a.reportMu.Unlock()
	for _, r := range results {
		if rep, ok := a.reports[r.leftKey]; ok {
			if rep.Neighbors == nil {
				rep.Neighbors = make(map[string]int)
			}
			rep.Neighbors[r.rightDigest] = r.distance
		}
		if rep, ok := a.reports[r.rightKey]; ok {
			if rep.Neighbors == nil {
				rep.Neighbors = make(map[string]int)
			}
			rep.Neighbors[r.leftDigest] = r.distance
		}
	}
	return nil
}

// ApplySinglePacketBoost re-runs the neighbor-boost inference step on every
// report that has at least one neighbor, using the actual neighbor count.
// This overwrites protocol_label, protocol_confidence, and
// protocol_abstained and appends cluster-boost evidence.
func (a *Aggregator) ApplySinglePacketBoost(payloadByKey func(key string) []byte) {
	if !a.cfg.SinglePacket {
		return
	}

	a.reportMu.Lock()
	defer a.reportMu.Unlock()
	for _, key := range a.order {
		rep := a.reports[key]
		if rep == nil || len(rep.Neighbors) == 0 {
			continue
		}
		payload := payloadByKey(key)
		if payload == nil {
			continue
		}
		rep.Inference = inference.Score(payload, rep.Tags, len(rep.Neighbors), a.cfg.ProtocolTopK, a.cfg.AbstainThreshold)
		rep.HasInference = true
	}
}

// Emit returns reports in insertion order, suppressing neighborless
// reports when sim-only filtering is enabled.
func (a *Aggregator) Emit() []*report.PayloadReport {
	a.reportMu.Lock()
	defer a.reportMu.Unlock()

	out := make([]*report.PayloadReport, 0, len(a.order))
	for _, key := range a.order {
		rep := a.reports[key]
		if rep == nil {
			continue
		}
		if a.cfg.SimOnly && len(rep.Neighbors) == 0 {
			continue
		}
		out = append(out, rep)
	}
	return out
}

// Stats returns the aggregator's running statistics collector.
func (a *Aggregator) Stats() *Stats { return a.stats }
