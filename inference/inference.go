/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package inference scores a payload against a fixed catalogue of protocol
// heuristics, fuses tag evidence, and applies an optional similarity
// neighbor-count boost.
package inference

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/h2non/filetype"
	"github.com/miekg/dns"

	"github.com/obsecurus/precursor/report"
)

func shannonEntropy(payload []byte) float64 {
	if len(payload) == 0 {
		return 0
	}
	var counts [256]int
	for _, b := range payload {
		counts[b]++
	}
	n := float64(len(payload))
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func printableRatio(payload []byte) float64 {
	if len(payload) == 0 {
		return 0
	}
	printable := 0
	for _, b := range payload {
		if b == '\n' || b == '\r' || b == '\t' || (b >= 0x20 && b <= 0x7e) {
			printable++
		}
	}
	return float64(printable) / float64(len(payload))
}

func hasMagic(payload []byte, magic []byte) bool {
	return len(payload) >= len(magic) && string(payload[:len(magic)]) == string(magic)
}

type scoreEntry struct {
	score    float64
	evidence []string
}

func addScore(scores map[string]*scoreEntry, protocol string, score float64, evidence string) {
	e, ok := scores[protocol]
	if !ok {
		e = &scoreEntry{}
		scores[protocol] = e
	}
	e.score += score
	e.evidence = append(e.evidence, evidence)
}

// addEvidence appends supplemental evidence to an already-scored candidate.
// It never creates a new candidate and never changes a score: the hard-coded
// predicate table above remains the sole source of truth for scoring.
func addEvidence(scores map[string]*scoreEntry, protocol string, evidence string) {
	if e, ok := scores[protocol]; ok {
		e.evidence = append(e.evidence, evidence)
	}
}

// Score scores payload against the heuristic table, folds in tag evidence
// and a similarity neighbor-count boost, and returns a ranked
// report.ProtocolInference. topK is clamped to a minimum of 1.
func Score(payload []byte, tags []string, neighborCount int, topK int, abstainThreshold float64) report.ProtocolInference {
	scores := make(map[string]*scoreEntry)
	lower := strings.ToLower(string(payload))
	entropy := shannonEntropy(payload)
	printable := printableRatio(payload)
	payloadLen := len(payload)

	if strings.HasPrefix(lower, "get ") || strings.HasPrefix(lower, "post ") ||
		strings.HasPrefix(lower, "head ") || strings.HasPrefix(lower, "put ") ||
		strings.HasPrefix(lower, "delete ") || strings.Contains(lower, " http/1.") ||
		strings.Contains(lower, "host:") {
		addScore(scores, "http", 0.85, "matched HTTP request/headers")
	}

	if payloadLen >= 3 && payload[0] == 0x16 && payload[1] == 0x03 && payload[2] <= 0x04 {
		addScore(scores, "tls", 0.90, "matched TLS handshake prefix 16 03 xx")
	}

	if strings.HasPrefix(lower, "ssh-") {
		addScore(scores, "ssh", 0.95, "matched SSH identification banner")
	}

	if strings.HasPrefix(lower, "ehlo ") || strings.HasPrefix(lower, "helo ") ||
		strings.HasPrefix(lower, "mail from:") || strings.HasPrefix(lower, "rcpt to:") ||
		strings.HasPrefix(lower, "220 ") || strings.HasPrefix(lower, "250 ") {
		addScore(scores, "smtp", 0.78, "matched SMTP command/response markers")
	}

	if strings.HasPrefix(lower, "user ") || strings.HasPrefix(lower, "pass ") ||
		strings.HasPrefix(lower, "+ok") || strings.HasPrefix(lower, "-err") {
		addScore(scores, "pop3_or_ftp", 0.66, "matched POP3/FTP style tokens")
	}

	if strings.HasPrefix(lower, "{") && strings.Contains(lower, ":") && printable > 0.95 {
		addScore(scores, "json_application", 0.52, "high-printable JSON-like payload shape")
	}

	if hasMagic(payload, []byte("\x7fELF")) {
		addScore(scores, "firmware_binary", 0.98, "ELF magic header")
	}
	if hasMagic(payload, []byte("MZ")) {
		addScore(scores, "firmware_binary", 0.85, "PE/COFF MZ header")
	}
	if hasMagic(payload, []byte("\x1f\x8b")) {
		addScore(scores, "compressed_binary", 0.88, "gzip magic header")
	}
	if hasMagic(payload, []byte("PK\x03\x04")) {
		addScore(scores, "compressed_binary", 0.80, "zip magic header")
	}
	if payloadLen >= 4 && payload[0] == 0x27 && payload[1] == 0x05 && payload[2] == 0x19 && payload[3] == 0x56 {
		addScore(scores, "firmware_binary", 0.86, "uImage magic header (0x27051956)")
	}

	if printable < 0.35 && entropy > 6.2 {
		addScore(scores, "opaque_binary_stream", 0.60, "low-printable/high-entropy binary characteristics")
	}

	if kind, err := filetype.Match(payload); err == nil && kind != filetype.Unknown {
		switch kind.Extension {
		case "elf", "exe":
			addEvidence(scores, "firmware_binary", fmt.Sprintf("filetype: matches %s", kind.Extension))
		case "gz", "zip":
			addEvidence(scores, "compressed_binary", fmt.Sprintf("filetype: matches %s", kind.Extension))
		}
	}

	if strings.Contains(lower, "/bin/sh") || strings.HasPrefix(lower, "wget ") ||
		strings.HasPrefix(lower, "curl ") || strings.HasPrefix(lower, "busybox ") ||
		strings.HasPrefix(lower, "chmod ") || strings.HasPrefix(lower, "powershell ") {
		addScore(scores, "shell_command", 0.72, "matched command execution markers")
	}

	dotCount := strings.Count(lower, ".")
	if printable > 0.9 && dotCount >= 2 && !strings.Contains(lower, " ") {
		addScore(scores, "dns_or_domain_payload", 0.44, "domain-like token shape")
	}

	var dnsMsg dns.Msg
	if dnsMsg.Unpack(payload) == nil {
		addEvidence(scores, "dns_or_domain_payload", "dns: parsed as wire-format DNS message")
	}

	for _, tag := range tags {
		tagLower := strings.ToLower(tag)
		if strings.Contains(tagLower, "http") {
			addScore(scores, "http", 0.20, "tag evidence: http")
		}
		if strings.Contains(tagLower, "tls") || strings.Contains(tagLower, "ssl") {
			addScore(scores, "tls", 0.20, "tag evidence: tls/ssl")
		}
		if strings.Contains(tagLower, "dns") {
			addScore(scores, "dns_or_domain_payload", 0.20, "tag evidence: dns")
		}
		if strings.Contains(tagLower, "ssh") {
			addScore(scores, "ssh", 0.20, "tag evidence: ssh")
		}
		if strings.Contains(tagLower, "firmware") || strings.Contains(tagLower, "elf") {
			addScore(scores, "firmware_binary", 0.20, "tag evidence: firmware/elf")
		}
	}

	neighborBoost := math.Log1p(float64(neighborCount)) * 0.08
	if neighborBoost > 0 {
		if neighborBoost > 0.25 {
			neighborBoost = 0.25
		}
		for _, e := range scores {
			e.score += neighborBoost
			e.evidence = append(e.evidence, fmt.Sprintf("similarity cluster boost from %d neighbors", neighborCount))
		}
	}

	candidates := make([]report.ProtocolCandidate, 0, len(scores))
	for protocol, e := range scores {
		score := e.score
		if score < 0 {
			score = 0
		}
		if score > 0.99 {
			score = 0.99
		}
		candidates = append(candidates, report.ProtocolCandidate{Protocol: protocol, Score: score, Evidence: e.evidence})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	if len(candidates) == 0 {
		return report.ProtocolInference{
			Label:      "unknown",
			Confidence: 0,
			Abstained:  true,
			Candidates: []report.ProtocolCandidate{{
				Protocol: "unknown",
				Score:    0,
				Evidence: []string{"no protocol heuristics matched"},
			}},
		}
	}

	top := candidates[0]
	threshold := abstainThreshold
	if threshold < 0 {
		threshold = 0
	} else if threshold > 1 {
		threshold = 1
	}
	abstained := top.Score < threshold
	label := top.Protocol
	if abstained {
		label = "unknown"
	}

	if topK < 1 {
		topK = 1
	}
	if topK > len(candidates) {
		topK = len(candidates)
	}

	return report.ProtocolInference{
		Label:      label,
		Confidence: top.Score,
		Abstained:  abstained,
		Candidates: candidates[:topK],
	}
}
