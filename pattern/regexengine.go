/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package pattern

import (
	"fmt"
	"strings"
)

// RegexEngine names which matching engine a pattern was authored against.
// Vectorscan is a compile-time compatibility check only — matching always
// falls back to the primary regexp2 engine.
type RegexEngine int

const (
	EnginePCRE2 RegexEngine = iota
	EngineVectorscan
)

func RegexEngineFromString(value string) (RegexEngine, error) {
	switch value {
	case "pcre2":
		return EnginePCRE2, nil
	case "vectorscan":
		return EngineVectorscan, nil
	default:
		return 0, fmt.Errorf("unsupported regex engine %q", value)
	}
}

func (e RegexEngine) String() string {
	switch e {
	case EnginePCRE2:
		return "pcre2"
	case EngineVectorscan:
		return "vectorscan"
	default:
		return "unknown"
	}
}

// VectorscanCompatibilityIssues enumerates features known to be
// unsupported by Vectorscan. It never changes how a pattern is actually
// matched — it only produces diagnostics for the --regex-engine vectorscan
// compatibility pass.
func VectorscanCompatibilityIssues(source string) []string {
	var issues []string
	if strings.Contains(source, "(?<=") || strings.Contains(source, "(?<!") {
		issues = append(issues, "lookbehind assertions are not supported")
	}
	for d := '1'; d <= '9'; d++ {
		if strings.ContainsRune(source, '\\') && strings.Contains(source, `\`+string(d)) {
			issues = append(issues, "backreferences are not supported")
			break
		}
	}
	if strings.Contains(source, "(?R") || strings.Contains(source, "(?&") {
		issues = append(issues, "recursive/subroutine constructs are not supported")
	}
	if strings.Contains(source, "(?>") {
		issues = append(issues, "atomic groups may be incompatible")
	}
	if strings.Contains(source, "(?(") {
		issues = append(issues, "conditional expressions are not supported")
	}
	if strings.Contains(source, "(?C") {
		issues = append(issues, "callouts are not supported")
	}
	return issues
}
