/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package pattern

import (
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"
)

// SigmaPatternSpec is one compiled selector value, ready to be fed to
// Compile.
type SigmaPatternSpec struct {
	Regex string
}

// SigmaRulePlan is a fully compiled Sigma detection rule: its condition
// tree, the capture names each selector contributes, and the pattern specs
// a Store compiles on its behalf.
type SigmaRulePlan struct {
	RuleName             string
	RuleSlug             string
	Condition            SigmaConditionExpr
	SelectorCaptureNames map[string][]string
	PatternSpecs         []SigmaPatternSpec
}

// detectionDoc is the subset of Sigma YAML shape this compiler understands:
// a title/id and a detection block of named selectors plus a condition.
type detectionDoc struct {
	Title     string         `yaml:"title"`
	ID        string         `yaml:"id"`
	Detection map[string]any `yaml:"detection"`
}

// LoadSigmaRulePlan reads a Sigma rule YAML file and compiles it into a
// SigmaRulePlan.
func LoadSigmaRulePlan(path string) (*SigmaRulePlan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read Sigma rule file %s: %w", path, err)
	}
	return ParseSigmaRulePlan(raw, defaultRuleName(path))
}

func defaultRuleName(path string) string {
	base := path
	if idx := strings.LastIndexAny(base, `/\`); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	if base == "" {
		return "sigma_rule"
	}
	return base
}

// ParseSigmaRulePlan compiles a Sigma rule from already-read YAML bytes.
func ParseSigmaRulePlan(raw []byte, fallbackName string) (*SigmaRulePlan, error) {
	var doc detectionDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unable to parse Sigma rule YAML: %w", err)
	}
	if doc.Detection == nil {
		return nil, fmt.Errorf("Sigma rule is missing a detection block")
	}

	ruleName := doc.Title
	if ruleName == "" {
		ruleName = fallbackName
	}
	ruleID := doc.ID
	if ruleID == "" {
		ruleID = ruleName
	}
	ruleSlug := sanitizeCaptureName(ruleID)

	conditionRaw := "1 of them"
	captureIndex := map[string]int{}
	selectorCaptureNames := map[string][]string{}
	var patternSpecs []SigmaPatternSpec

	for key, value := range doc.Detection {
		if key == "condition" {
			if s, ok := value.(string); ok {
				conditionRaw = s
			}
			continue
		}
		walkSelector(key, value, ruleSlug, captureIndex, selectorCaptureNames, &patternSpecs)
	}

	if len(patternSpecs) == 0 {
		return nil, fmt.Errorf("Sigma rule %q did not yield any keyword patterns", ruleName)
	}

	condition, err := ParseSigmaCondition(conditionRaw)
	if err != nil {
		return nil, fmt.Errorf("unable to parse condition in Sigma rule %q: %w", ruleName, err)
	}

	return &SigmaRulePlan{
		RuleName:             ruleName,
		RuleSlug:             ruleSlug,
		Condition:            condition,
		SelectorCaptureNames: selectorCaptureNames,
		PatternSpecs:         patternSpecs,
	}, nil
}

// walkSelector handles one top-level detection key. A selector's value is
// either a flat field map (each field mapping to a scalar or a list of
// scalars) or a bare list of literal values (the "keywords" selector shape).
func walkSelector(selectorName string, value any, ruleSlug string, captureIndex map[string]int, selectorCaptureNames map[string][]string, patternSpecs *[]SigmaPatternSpec) {
	switch v := value.(type) {
	case map[string]any:
		for field, fieldValue := range v {
			fieldBase, modifiers := parseFieldModifiers(field)
			for _, literal := range flattenValues(fieldValue) {
				addSigmaPattern(selectorName, fieldBase, modifiers, literal, ruleSlug, captureIndex, selectorCaptureNames, patternSpecs)
			}
		}
	case []any:
		for _, literal := range flattenValues(v) {
			addSigmaPattern(selectorName, "", nil, literal, ruleSlug, captureIndex, selectorCaptureNames, patternSpecs)
		}
	default:
		for _, literal := range flattenValues(v) {
			addSigmaPattern(selectorName, "", nil, literal, ruleSlug, captureIndex, selectorCaptureNames, patternSpecs)
		}
	}
}

func flattenValues(value any) []string {
	switch v := value.(type) {
	case []any:
		var out []string
		for _, item := range v {
			out = append(out, flattenValues(item)...)
		}
		return out
	case string:
		return []string{v}
	case nil:
		return nil
	default:
		return []string{fmt.Sprintf("%v", v)}
	}
}

func parseFieldModifiers(field string) (string, []string) {
	if field == "" {
		return "", nil
	}
	parts := strings.Split(field, "|")
	return parts[0], parts[1:]
}

func addSigmaPattern(selectorName, fieldBase string, modifiers []string, value, ruleSlug string, captureIndex map[string]int, selectorCaptureNames map[string][]string, patternSpecs *[]SigmaPatternSpec) {
	var stem string
	if fieldBase != "" {
		stem = sanitizeCaptureName(selectorName) + "_" + sanitizeCaptureName(fieldBase)
	} else {
		stem = sanitizeCaptureName(selectorName)
	}
	ordinal := captureIndex[stem]
	captureIndex[stem] = ordinal + 1

	captureName := sigmaCaptureName(ruleSlug, stem, ordinal)
	rendered := sigmaValueToRegex(value, modifiers)
	regex := fmt.Sprintf("(?<%s>%s)", captureName, rendered)

	selectorCaptureNames[selectorName] = append(selectorCaptureNames[selectorName], captureName)
	*patternSpecs = append(*patternSpecs, SigmaPatternSpec{Regex: regex})
}

func sanitizeCaptureName(input string) string {
	var b strings.Builder
	for _, ch := range input {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch >= 'A' && ch <= 'Z':
			b.WriteRune(ch - 'A' + 'a')
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "sigma_match"
	}
	if out[0] >= '0' && out[0] <= '9' {
		return "sigma_" + out
	}
	return out
}

// sigmaCaptureName derives a deterministic capture name that fits the
// 32-code-unit limit some PCRE2 builds enforce for named captures.
func sigmaCaptureName(ruleSlug, stem string, ordinal int) string {
	const maxLen = 32
	digest := xxh3.HashString(fmt.Sprintf("%s:%s:%d", ruleSlug, stem, ordinal))
	name := fmt.Sprintf("sigma_%016x_%d", digest, ordinal)
	if len(name) > maxLen {
		name = fmt.Sprintf("sigma_%016x", digest)
	}
	return name
}

func sigmaEscapeLiteral(input string) string {
	var b strings.Builder
	for _, ch := range input {
		switch ch {
		case '\\', '.', '+', '^', '$', '{', '}', '(', ')', '[', ']', '|':
			b.WriteByte('\\')
			b.WriteRune(ch)
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func hasModifier(modifiers []string, name string) bool {
	for _, m := range modifiers {
		if m == name {
			return true
		}
	}
	return false
}

func sigmaValueToRegex(value string, modifiers []string) string {
	if hasModifier(modifiers, "re") {
		return value
	}
	wildcardPresent := strings.ContainsAny(value, "*?")
	escaped := sigmaEscapeLiteral(value)

	switch {
	case hasModifier(modifiers, "contains") && !wildcardPresent:
		return ".*" + escaped + ".*"
	case hasModifier(modifiers, "startswith") && !wildcardPresent:
		return escaped + ".*"
	case hasModifier(modifiers, "endswith") && !wildcardPresent:
		return ".*" + escaped
	default:
		return escaped
	}
}

// MatchingSigmaRules returns every rule plan whose condition tree evaluates
// to true given the set of tags that fired against a payload.
func MatchingSigmaRules(plans []*SigmaRulePlan, matchedTags []string) []*SigmaRulePlan {
	if len(plans) == 0 || len(matchedTags) == 0 {
		return nil
	}
	matchedSet := make(map[string]struct{}, len(matchedTags))
	for _, t := range matchedTags {
		matchedSet[t] = struct{}{}
	}

	var hits []*SigmaRulePlan
	for _, plan := range plans {
		selectorHits := selectorHitsForRule(plan, matchedSet)
		if plan.Condition.Evaluate(selectorHits) {
			hits = append(hits, plan)
		}
	}
	return hits
}

func selectorHitsForRule(plan *SigmaRulePlan, matchedTags map[string]struct{}) map[string]bool {
	hits := make(map[string]bool, len(plan.SelectorCaptureNames))
	for selector, captureNames := range plan.SelectorCaptureNames {
		hit := false
		for _, cn := range captureNames {
			if _, ok := matchedTags[cn]; ok {
				hit = true
				break
			}
		}
		hits[selector] = hit
	}
	return hits
}

func matchingSelectors(selectorHits map[string]bool, target string) []string {
	if strings.EqualFold(target, "them") {
		out := make([]string, 0, len(selectorHits))
		for k := range selectorHits {
			out = append(out, k)
		}
		return out
	}
	g, err := glob.Compile(target)
	if err != nil {
		// Not a valid glob: fall back to an exact selector-name match.
		if _, ok := selectorHits[target]; ok {
			return []string{target}
		}
		return nil
	}
	var out []string
	for k := range selectorHits {
		if g.Match(k) {
			out = append(out, k)
		}
	}
	return out
}
