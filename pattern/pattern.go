/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package pattern compiles authored regular expressions and Sigma
// detection rules into a shared matcher set with named captures, the
// source of every tag Precursor ever emits.
package pattern

import (
	"fmt"
	"strconv"

	"github.com/dlclark/regexp2"
)

// CompiledPattern is an opaque regex handle plus the ordered list of named
// capture groups it declares.
type CompiledPattern struct {
	Source   string
	re       *regexp2.Regexp
	captures []string // declared capture names, in declaration order

	// SigmaRuleID is non-empty when this pattern was compiled from a Sigma
	// selector value rather than authored directly.
	SigmaRuleID string
}

// CompileError is returned for invalid regex syntax or a pattern with no
// named capture groups.
type CompileError struct {
	Source string
	Reason string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("failed to compile pattern %q: %s", e.Source, e.Reason)
}

// Compile builds a CompiledPattern from an authored regex string. Every
// authored pattern must declare at least one named capture group; patterns
// with zero named captures are rejected, since captures are the sole source
// of tags.
func Compile(source string) (*CompiledPattern, error) {
	// Multiline lets ^/$ anchor per embedded line; Singleline lets . match
	// a newline, which is what distinguishes a blob record (the whole
	// payload is one match candidate, newlines and all) from a line record
	// (each line is matched independently, so a pattern spanning a newline
	// can never fire against it).
	re, err := regexp2.Compile(source, regexp2.Multiline|regexp2.Singleline)
	if err != nil {
		return nil, &CompileError{Source: source, Reason: err.Error()}
	}

	names := namedGroups(re)
	if len(names) == 0 {
		return nil, &CompileError{Source: source, Reason: "pattern declares no named capture groups"}
	}

	return &CompiledPattern{Source: source, re: re, captures: names}, nil
}

func namedGroups(re *regexp2.Regexp) []string {
	all := re.GetGroupNames()
	out := make([]string, 0, len(all))
	for _, n := range all {
		if _, err := strconv.Atoi(n); err == nil {
			continue // purely numeric groups (including "0", the whole match) are unnamed
		}
		out = append(out, n)
	}
	return out
}

// CaptureNames returns the declared named capture groups in declaration
// order.
func (p *CompiledPattern) CaptureNames() []string {
	return p.captures
}

// Match holds the named captures that fired for one match of one pattern
// against one payload, in in-pattern capture order.
type Match struct {
	Names []string
}

// FindAllMatches iterates all non-overlapping matches of p against data,
// returning, for each match, the ordered list of named captures that
// captured a non-empty span.
func (p *CompiledPattern) FindAllMatches(data []byte) ([]Match, error) {
	text := string(data)
	var out []Match

	m, err := p.re.FindStringMatch(text)
	for m != nil {
		if err != nil {
			return out, fmt.Errorf("match error in pattern %q: %w", p.Source, err)
		}
		var names []string
		for _, name := range p.captures {
			g := m.GroupByName(name)
			if g == nil || len(g.Captures) == 0 {
				continue
			}
			for _, c := range g.Captures {
				if len(c.String()) > 0 {
					names = append(names, name)
				}
			}
		}
		if len(names) > 0 {
			out = append(out, Match{Names: names})
		}
		m, err = p.re.FindNextMatch(m)
	}
	if err != nil {
		return out, fmt.Errorf("match error in pattern %q: %w", p.Source, err)
	}
	return out, nil
}

// Store is an immutable, concurrency-safe set of compiled patterns shared
// across all tagging workers.
type Store struct {
	Patterns []*CompiledPattern
	Sigma    []*SigmaRulePlan
}

// NewStore builds a Store from authored pattern sources and (optionally)
// compiled Sigma rule plans. Each authored source is compiled independently;
// the first compile failure is returned as a CompileError, matching the
// fail-fast-at-startup propagation policy.
func NewStore(sources []string, sigmaPlans []*SigmaRulePlan) (*Store, error) {
	s := &Store{Sigma: sigmaPlans}
	for _, src := range sources {
		cp, err := Compile(src)
		if err != nil {
			return nil, err
		}
		s.Patterns = append(s.Patterns, cp)
	}
	for _, plan := range sigmaPlans {
		for _, spec := range plan.PatternSpecs {
			cp, err := Compile(spec.Regex)
			if err != nil {
				return nil, err
			}
			cp.SigmaRuleID = plan.RuleSlug
			s.Patterns = append(s.Patterns, cp)
		}
	}
	return s, nil
}
