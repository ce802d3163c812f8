// Package codec serializes Submissions into the on-disk configuration
// document the harness reads, and parses the harness's on-disk result
// document back into a Verdict skeleton (spec §4.A, §6).
//
// Values are carried as interface{} and go through encoding/json, so every
// JSON number, integer or not, decodes as a float64; the 64-bit signed
// integer form appears only in the literals the harness generator writes.
// Arrays preserve order. Values are not checked for null: a nil input_value
// or expected entry is emitted as null.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"apex-build/internal/judge"
)

// ParamDoc is one entry of the config document's "solve_params" array.
type ParamDoc struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	InputValue interface{} `json:"input_value"`
}

// ConfigDoc is the on-disk configuration document read by the harness,
// spec §6.
type ConfigDoc struct {
	SolveParams  []ParamDoc             `json:"solve_params"`
	Expected     map[string]interface{} `json:"expected,omitempty"`
	FunctionType string                 `json:"function_type"`

	CStandard   string `json:"c_standard,omitempty"`
	CppStandard string `json:"cpp_standard,omitempty"`

	CompilerFlags string `json:"compiler_flags,omitempty"`

	// Resource limits the harness must enforce internally (spec §3). These
	// travel with the config document because the harness process inside
	// the container has no other way to learn the submission's actual
	// compile/execution timeouts — the sandbox manager's own outer deadline
	// (orchestrator.execMargin added on top) is a safety net, not a
	// substitute for the harness observing the submitted limits itself.
	CompileTimeoutMs   int64   `json:"compile_timeout_ms"`
	ExecutionTimeoutMs int64   `json:"execution_timeout_ms"`
	MemoryBytes        int64   `json:"memory_bytes"`
	CPUCores           float64 `json:"cpu_cores"`

	// Mode distinguishes the optimized-batch "compile+run" invocation from
	// a subsequent "run-only" one (spec §4.D step 2-3). Empty means
	// single-submission mode, which always compiles.
	Mode string `json:"mode,omitempty"`
}

// ResourceLimits decodes the config document's limit fields back into a
// judge.ResourceLimits, the shape the harness's execution code expects.
func (c ConfigDoc) ResourceLimits() judge.ResourceLimits {
	return judge.ResourceLimits{
		CompileTimeout:   time.Duration(c.CompileTimeoutMs) * time.Millisecond,
		ExecutionTimeout: time.Duration(c.ExecutionTimeoutMs) * time.Millisecond,
		MemoryBytes:      c.MemoryBytes,
		CPUCores:         c.CPUCores,
	}
}

const (
	ModeCompileAndRun = "compile_and_run"
	ModeRunOnly       = "run_only"
)

// BuildConfigDoc assembles the wire document for one test configuration
// drawn from a Submission.
func BuildConfigDoc(sub *judge.Submission, mode string) ConfigDoc {
	params := make([]ParamDoc, 0, len(sub.Parameters))
	for _, p := range sub.Parameters {
		params = append(params, ParamDoc{
			Name:       p.Name,
			Type:       string(p.Type),
			InputValue: p.InitialValue,
		})
	}

	doc := ConfigDoc{
		SolveParams:  params,
		Expected:     sub.Expected,
		FunctionType: string(sub.FunctionType),
		Mode:         mode,
	}

	cs := sub.EffectiveCompilerSettings()
	flags := cs.Flags
	if cs.Optimization != "" {
		flags = flags + " " + cs.Optimization
	}
	doc.CompilerFlags = flags

	limits := sub.EffectiveResourceLimits()
	doc.CompileTimeoutMs = limits.CompileTimeout.Milliseconds()
	doc.ExecutionTimeoutMs = limits.ExecutionTimeout.Milliseconds()
	doc.MemoryBytes = limits.MemoryBytes
	doc.CPUCores = limits.CPUCores

	switch sub.Language {
	case judge.LanguageCpp:
		doc.CppStandard = cs.Standard
	default:
		doc.CStandard = cs.Standard
	}
	return doc
}

// EncodeConfig marshals a ConfigDoc to the JSON bytes uploaded as
// config.<ext>. A nil solve_params list is written as []; no other field is
// checked for null.
func EncodeConfig(doc ConfigDoc) ([]byte, error) {
	if doc.SolveParams == nil {
		doc.SolveParams = []ParamDoc{}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("codec: encode config: %w", err)
	}
	return b, nil
}

// DecodeConfig parses a config document, used by the harness side of the
// codec contract.
func DecodeConfig(b []byte) (ConfigDoc, error) {
	var doc ConfigDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return ConfigDoc{}, fmt.Errorf("codec: decode config: %w", err)
	}
	return doc, nil
}

// Standard returns the doc's active standard string regardless of language.
func (c ConfigDoc) Standard() string {
	if c.CppStandard != "" {
		return c.CppStandard
	}
	return c.CStandard
}
