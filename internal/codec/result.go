package codec

import (
	"encoding/json"
	"fmt"

	"apex-build/internal/judge"
)

// ResultDoc is the on-disk result document written by the harness, spec §6.
type ResultDoc struct {
	Status string `json:"status"`

	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	ExitCode int `json:"exit_code"`

	CompileTimeMs float64 `json:"compile_time_ms"`
	TimeMs        float64 `json:"time_ms"`
	CPUUtime      float64 `json:"cpu_utime"`
	CPUStime      float64 `json:"cpu_stime"`
	MaxRSSMb      float64 `json:"maxrss_mb"`

	Expected map[string]interface{} `json:"expected,omitempty"`
	Actual   map[string]interface{} `json:"actual,omitempty"`
	Match    *bool                  `json:"match,omitempty"`

	Error string `json:"error,omitempty"`

	Recompiled bool `json:"recompiled,omitempty"`
}

// EncodeResult marshals a ResultDoc, used by the harness binary.
func EncodeResult(doc ResultDoc) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("codec: encode result: %w", err)
	}
	return b, nil
}

// DecodeResult parses a harness result document into a ResultDoc. A
// malformed or missing document is the caller's signal to classify
// INTERNAL_ERROR (spec §4.E rule 2) — DecodeResult itself only reports the
// parse failure, it does not classify.
func DecodeResult(b []byte) (ResultDoc, error) {
	var doc ResultDoc
	if len(b) == 0 {
		return ResultDoc{}, fmt.Errorf("codec: empty result document")
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return ResultDoc{}, fmt.Errorf("codec: decode result: %w", err)
	}
	return doc, nil
}

// ToVerdictSkeleton copies the wire fields into a Verdict without applying
// any classification rules — classification is the Verdict Classifier's
// (spec §4.E) exclusive job.
func (d ResultDoc) ToVerdictSkeleton() judge.Verdict {
	return judge.Verdict{
		Status:        judge.Status(d.Status),
		Match:         d.Match,
		Expected:      d.Expected,
		Actual:        d.Actual,
		Stdout:        d.Stdout,
		Stderr:        d.Stderr,
		CompileOutput: d.Stderr,
		ExitCode:      d.ExitCode,
		ErrorDetail:   d.Error,
		Metrics: judge.Metrics{
			WallMs:      d.TimeMs,
			CompileMs:   d.CompileTimeMs,
			UserCPUSec:  d.CPUUtime,
			SysCPUSec:   d.CPUStime,
			MaxRSSBytes: int64(d.MaxRSSMb * 1024 * 1024),
			Recompiled:  d.Recompiled,
		},
	}
}
