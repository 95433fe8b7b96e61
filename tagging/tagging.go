/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package tagging runs a pattern store over a payload and produces the
// ordered tag list that gates every later stage of the pipeline.
package tagging

import (
	"sync"
	"sync/atomic"

	"github.com/obsecurus/precursor/pattern"
)

// Result is the outcome of tagging a single payload.
type Result struct {
	// Tags lists, in pattern-declaration order then in-pattern capture
	// order, every capture-group name that fired.
	Tags []string

	// SigmaRuleIDs lists the rule slugs of every Sigma rule whose condition
	// tree evaluated true against Tags.
	SigmaRuleIDs []string

	// Matched is true iff at least one capture fired. Unmatched payloads
	// are never reported by the aggregator.
	Matched bool
}

// Counters tracks per-tag hit counts across an entire run with atomic
// update-or-insert semantics, safe for concurrent tagging workers.
type Counters struct {
	mu     sync.Mutex
	counts map[string]*int64
}

// NewCounters builds an empty counter set.
func NewCounters() *Counters {
	return &Counters{counts: make(map[string]*int64)}
}

// Add increments the counter for tag by delta, creating it if necessary.
func (c *Counters) Add(tag string, delta int64) {
	c.mu.Lock()
	ptr, ok := c.counts[tag]
	if !ok {
		var zero int64
		ptr = &zero
		c.counts[tag] = ptr
	}
	c.mu.Unlock()
	atomic.AddInt64(ptr, delta)
}

// Snapshot returns a point-in-time copy of all counters.
func (c *Counters) Snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.counts))
	for k, ptr := range c.counts {
		out[k] = atomic.LoadInt64(ptr)
	}
	return out
}

// Engine runs a pattern.Store against payloads.
type Engine struct {
	store    *pattern.Store
	counters *Counters
}

// NewEngine builds a tagging Engine backed by the given pattern store.
func NewEngine(store *pattern.Store, counters *Counters) *Engine {
	return &Engine{store: store, counters: counters}
}

// Tag runs every compiled pattern (and every Sigma rule derived from them)
// against data, in pattern declaration order, and returns the ordered tag
// list plus which Sigma rules fired.
func (e *Engine) Tag(data []byte) (Result, error) {
	var result Result

	for _, cp := range e.store.Patterns {
		matches, err := cp.FindAllMatches(data)
		if err != nil {
			return result, err
		}
		for _, m := range matches {
			for _, name := range m.Names {
				result.Tags = append(result.Tags, name)
				result.Matched = true
				if e.counters != nil {
					e.counters.Add(name, 1)
				}
			}
		}
	}

	if len(e.store.Sigma) > 0 && result.Matched {
		for _, plan := range pattern.MatchingSigmaRules(e.store.Sigma, result.Tags) {
			result.SigmaRuleIDs = append(result.SigmaRuleIDs, plan.RuleSlug)
		}
	}

	return result, nil
}
