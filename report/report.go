/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package report defines the shared record shapes produced by the tagging,
// similarity, and inference stages and consumed by the aggregator.
package report

import (
	"encoding/json"

	"github.com/zeebo/xxh3"
)

// Fingerprint is the canonical identity of a payload report: XXH3-64 of its
// raw bytes.
type Fingerprint [8]byte

// NewFingerprint hashes the given payload bytes.
func NewFingerprint(data []byte) Fingerprint {
	sum := xxh3.Hash(data)
	var fp Fingerprint
	fp[0] = byte(sum >> 56)
	fp[1] = byte(sum >> 48)
	fp[2] = byte(sum >> 40)
	fp[3] = byte(sum >> 32)
	fp[4] = byte(sum >> 24)
	fp[5] = byte(sum >> 16)
	fp[6] = byte(sum >> 8)
	fp[7] = byte(sum)
	return fp
}

const hexDigits = "0123456789abcdef"

// String renders the fingerprint as lowercase hexadecimal, matching the
// xxh3_64_sum report field.
func (f Fingerprint) String() string {
	buf := make([]byte, 16)
	for i, b := range f {
		buf[i*2] = hexDigits[b>>4]
		buf[i*2+1] = hexDigits[b&0x0f]
	}
	return string(buf)
}

// ProtocolCandidate is a scored protocol guess with supporting evidence.
type ProtocolCandidate struct {
	Protocol string   `json:"protocol"`
	Score    float64  `json:"score"`
	Evidence []string `json:"evidence"`
}

// ProtocolInference is the outcome of the single-packet protocol scorer.
type ProtocolInference struct {
	Label      string              `json:"label"`
	Confidence float64             `json:"confidence"`
	Abstained  bool                `json:"abstained"`
	Candidates []ProtocolCandidate `json:"candidates"`
}

// PayloadReport is the per-payload record emitted as one line of NDJSON.
type PayloadReport struct {
	Fingerprint Fingerprint
	Tags        []string
	SigmaRuleIDs []string

	SimilarityHash string

	HasInference bool
	Inference    ProtocolInference

	// Neighbors maps another digest's rendering to an integer distance, only
	// populated post-aggregation.
	Neighbors map[string]int

	// Base holds surviving JSON fields from the original record when a
	// JSON-path extraction was used; nil otherwise.
	Base json.RawMessage
}

// MarshalJSON reproduces PayloadReport's exact field set, omitting
// fields that are absent in the current mode.
func (r PayloadReport) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{}
	if len(r.Base) > 0 {
		var baseFields map[string]interface{}
		if err := json.Unmarshal(r.Base, &baseFields); err == nil {
			for k, v := range baseFields {
				out[k] = v
			}
		}
	}

	out["xxh3_64_sum"] = r.Fingerprint.String()
	if r.Tags == nil {
		out["tags"] = []string{}
	} else {
		out["tags"] = r.Tags
	}
	if len(r.SigmaRuleIDs) > 0 {
		out["sigma_rule_ids"] = r.SigmaRuleIDs
	}
	out["similarity_hash"] = r.SimilarityHash

	if r.HasInference {
		out["protocol_label"] = r.Inference.Label
		out["protocol_confidence"] = r.Inference.Confidence
		out["protocol_abstained"] = r.Inference.Abstained
		out["protocol_candidates"] = r.Inference.Candidates
	}

	if len(r.Neighbors) > 0 {
		out["tlsh_similarities"] = r.Neighbors
	}

	return json.Marshal(out)
}
