// Package orchestrator implements the two operations of spec §4.D:
// evaluating a single submission and evaluating an optimized batch of
// configurations against one compiled source. It owns the sandbox
// acquire/release lifecycle (scoped, panic-safe) and the concurrency gate
// from spec §5, and hands the downloaded result document to the Verdict
// Classifier (internal/verdict) for final classification.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"apex-build/internal/codec"
	"apex-build/internal/judge"
	"apex-build/internal/limiter"
	"apex-build/internal/metrics"
	"apex-build/internal/sandbox"
	"apex-build/internal/verdict"
)

// execMargin is added on top of the submission's own compile+execution
// timeouts to derive the harness exec deadline the sandbox manager
// enforces as an outer safety net (spec §4.D step 3, §8 "margin is bounded
// and documented (≤ 500 ms)").
const execMargin = 400 * time.Millisecond

// Orchestrator wires a Manager and a concurrency Gate into the evaluate/
// evaluate_batch operations.
type Orchestrator struct {
	manager sandbox.Manager
	gate    limiter.Gate
}

// New constructs an Orchestrator. gate may be nil, in which case
// acquisition is never throttled — callers that want spec §5's "maximum
// concurrent sandboxes" bound must supply one (internal/limiter.NewLocalGate
// or NewDistributedGate).
func New(manager sandbox.Manager, gate limiter.Gate) *Orchestrator {
	return &Orchestrator{manager: manager, gate: gate}
}

// Evaluate runs the single-submission path (spec §4.D).
func (o *Orchestrator) Evaluate(ctx context.Context, sub *judge.Submission) (v judge.Verdict, err error) {
	if validateErr := sub.Validate(); validateErr != nil {
		return judge.Verdict{}, validateErr
	}

	if o.gate != nil {
		release, gateErr := o.gate.Acquire(ctx)
		if gateErr != nil {
			return judge.Verdict{}, fmt.Errorf("orchestrator: concurrency gate: %w", gateErr)
		}
		defer release()
	}

	limits := sub.EffectiveResourceLimits()
	acquireStart := time.Now()
	h, release, acquireErr := o.manager.Acquire(ctx, sub.Language, limits)
	if acquireErr != nil {
		return judge.Verdict{}, fmt.Errorf("orchestrator: acquire sandbox: %w", acquireErr)
	}
	metrics.Get().RecordSandboxAcquire(backendLabel(o.manager), time.Since(acquireStart))
	defer func() {
		if r := recover(); r != nil {
			release()
			panic(r)
		}
	}()
	defer release()

	ext := sourceExt(sub.Language)
	doc := codec.BuildConfigDoc(sub, codec.ModeCompileAndRun)

	outcome, result, parseErr, execErr := runOnce(ctx, o.manager, h, doc, sub.Source, ext, limits)
	return verdict.Classify(outcome.ExitCode, sandboxOutcome(outcome, execErr), result, parseErr), nil
}

// EvaluateBatch runs the optimized-batch path (spec §4.D): one source
// upload, compile on the first config, reuse the compiled test_runner for
// every later config whose parameter schema hashes identically, and
// preserve verdicts[i] ↔ configs[i] ordering (spec §5, §8 "batch order
// preservation").
func (o *Orchestrator) EvaluateBatch(ctx context.Context, language judge.Language, source string, configs []*judge.Submission) ([]judge.Verdict, error) {
	if len(configs) == 0 {
		return nil, nil
	}
	if len(configs) > judge.MaxBatchSize {
		return nil, &judge.ConfigError{Reason: "batch exceeds maximum size"}
	}
	for _, c := range configs {
		if validateErr := c.Validate(); validateErr != nil {
			return nil, validateErr
		}
	}

	if o.gate != nil {
		release, gateErr := o.gate.Acquire(ctx)
		if gateErr != nil {
			return nil, fmt.Errorf("orchestrator: concurrency gate: %w", gateErr)
		}
		defer release()
	}

	limits := configs[0].EffectiveResourceLimits()
	acquireStart := time.Now()
	h, release, acquireErr := o.manager.Acquire(ctx, language, limits)
	if acquireErr != nil {
		return nil, fmt.Errorf("orchestrator: acquire sandbox: %w", acquireErr)
	}
	metrics.Get().RecordSandboxAcquire(backendLabel(o.manager), time.Since(acquireStart))
	defer func() {
		if r := recover(); r != nil {
			release()
			panic(r)
		}
	}()
	defer release()

	ext := sourceExt(language)
	if uploadErr := o.manager.Upload(ctx, h, "user"+ext, []byte(source)); uploadErr != nil {
		return nil, fmt.Errorf("orchestrator: upload source: %w", uploadErr)
	}

	verdicts := make([]judge.Verdict, len(configs))
	var sharedSchema judge.Schema
	compiled := false

	for i, sub := range configs {
		schema := judge.SchemaOf(sub)
		mode := codec.ModeRunOnly
		if !compiled || schema.Hash() != sharedSchema.Hash() {
			mode = codec.ModeCompileAndRun
		}

		doc := codec.BuildConfigDoc(sub, mode)
		outcome, result, parseErr, execErr := runOnce(ctx, o.manager, h, doc, "", ext, limits)
		v := verdict.Classify(outcome.ExitCode, sandboxOutcome(outcome, execErr), result, parseErr)
		verdicts[i] = v

		if mode == codec.ModeCompileAndRun {
			if i == 0 && v.Status == judge.StatusCompileError {
				// spec §4.D step 4: a step-2 compile failure means every
				// verdict in the batch is the same COMPILE_ERROR verdict.
				for j := range verdicts {
					verdicts[j] = v
				}
				return verdicts, nil
			}
			sharedSchema = schema
			compiled = true
		}
	}
	return verdicts, nil
}

// runOnce performs steps 2-4 of spec §4.D's single-submission sequence
// against an already-acquired sandbox: write/upload config (and source, for
// the single-submission path), exec the harness, download the result.
//
// The fourth return value is a sandbox-level failure (upload/exec/download
// breaking before the harness could even run) — distinct from parseErr,
// which is a malformed-or-missing result document after a successful exec.
// Classify (spec §4.E rule 2) collapses both to INTERNAL_ERROR; they are
// kept apart so the verdict's error detail says which of the two happened.
func runOnce(ctx context.Context, m sandbox.Manager, h sandbox.Handle, doc codec.ConfigDoc, source, ext string, limits judge.ResourceLimits) (sandbox.ExecResult, codec.ResultDoc, error, error) {
	if source != "" {
		if err := m.Upload(ctx, h, "user"+ext, []byte(source)); err != nil {
			return sandbox.ExecResult{}, codec.ResultDoc{}, nil, fmt.Errorf("orchestrator: upload source: %w", err)
		}
	}

	configBytes, err := codec.EncodeConfig(doc)
	if err != nil {
		return sandbox.ExecResult{}, codec.ResultDoc{}, nil, fmt.Errorf("orchestrator: encode config: %w", err)
	}
	if err := m.Upload(ctx, h, "config.json", configBytes); err != nil {
		return sandbox.ExecResult{}, codec.ResultDoc{}, nil, fmt.Errorf("orchestrator: upload config: %w", err)
	}

	deadline := limits.CompileTimeout + limits.ExecutionTimeout + execMargin
	outcome, err := m.Exec(ctx, h, []string{"harness", "config.json", "result.json"}, deadline)
	if err != nil {
		return sandbox.ExecResult{}, codec.ResultDoc{}, nil, fmt.Errorf("orchestrator: exec harness: %w", err)
	}
	if outcome.KilledByDeadline {
		return outcome, codec.ResultDoc{}, nil, nil
	}

	resultBytes, err := m.Download(ctx, h, "result.json")
	if err != nil {
		return outcome, codec.ResultDoc{}, nil, fmt.Errorf("orchestrator: download result: %w", err)
	}
	result, parseErr := codec.DecodeResult(resultBytes)
	return outcome, result, parseErr, nil
}

// sandboxOutcome adapts a sandbox.ExecResult and a sandbox-level error into
// the verdict.SandboxOutcome the Classifier expects.
func sandboxOutcome(outcome sandbox.ExecResult, execErr error) verdict.SandboxOutcome {
	return verdict.SandboxOutcome{
		KilledByOuterDeadline: outcome.KilledByDeadline,
		ExecError:             execErr,
	}
}

func sourceExt(lang judge.Language) string {
	if lang == judge.LanguageCpp {
		return ".cpp"
	}
	return ".c"
}

// backendLabel identifies the sandbox backend for the acquire-duration
// metric without widening the Manager interface just to expose a name.
func backendLabel(m sandbox.Manager) string {
	switch m.(type) {
	case *sandbox.DockerManager:
		return "docker"
	case *sandbox.SSHManager:
		return "ssh"
	default:
		return "unknown"
	}
}
