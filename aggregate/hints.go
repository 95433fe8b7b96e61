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

	"github.com/obsecurus/precursor/report"
)

const protocolHintsMarker = "---PRECURSOR_PROTOCOL_HINTS---"

// Hint summarizes one payload cluster for the protocol-hints secondary
// output.
type Hint struct {
	Fingerprint        string   `json:"fingerprint"`
	SimilarityHash     string   `json:"similarity_hash"`
	NeighborCount      int      `json:"neighbor_count"`
	Tags               []string `json:"tags"`
	ProtocolLabel      string   `json:"protocol_label,omitempty"`
	ProtocolConfidence float64  `json:"protocol_confidence,omitempty"`
	ProtocolAbstained  bool     `json:"protocol_abstained,omitempty"`
}

// BuildHints ranks reports by neighbor count descending and truncates to
// limit (minimum 1).
func BuildHints(reports []*report.PayloadReport, limit int) []Hint {
	if limit < 1 {
		limit = 1
	}

	candidates := make([]*report.PayloadReport, 0, len(reports))
	for _, rep := range reports {
		if len(rep.Neighbors) > 0 {
			candidates = append(candidates, rep)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].Neighbors) > len(candidates[j].Neighbors)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	hints := make([]Hint, 0, len(candidates))
	for _, rep := range candidates {
		hint := Hint{
			Fingerprint:    rep.Fingerprint.String(),
			SimilarityHash: rep.SimilarityHash,
			NeighborCount:  len(rep.Neighbors),
			Tags:           rep.Tags,
		}
		if rep.HasInference {
			hint.ProtocolLabel = rep.Inference.Label
			hint.ProtocolConfidence = rep.Inference.Confidence
			hint.ProtocolAbstained = rep.Inference.Abstained
		}
		hints = append(hints, hint)
	}
	return hints
}

// EmitProtocolHints writes the marker-framed protocol-hints JSON array to
// w.
func EmitProtocolHints(w io.Writer, reports []*report.PayloadReport, limit int) error {
	hints := BuildHints(reports, limit)
	encoded, err := json.Marshal(hints)
	if err != nil {
		return fmt.Errorf("aggregate: encoding protocol hints: %w", err)
	}
	if _, err := fmt.Fprintln(w, protocolHintsMarker); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}
