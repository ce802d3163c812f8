package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apex-build/internal/codec"
	"apex-build/internal/judge"
	"apex-build/internal/sandbox"
)

// fakeManager is an in-memory sandbox.Manager stand-in: Upload/Download hit a
// byte-map keyed by filename, and Exec replays a scripted sequence of
// ResultDocs rather than actually compiling or running anything. It lets the
// orchestrator's sequencing (acquire-once, compile-once, batch ordering,
// release-on-panic) be tested without a container runtime.
type fakeManager struct {
	mu sync.Mutex

	acquireCount int
	released     bool

	files map[string][]byte

	// script is consumed one entry per Exec call, in order.
	script []scriptedExec

	execCalls []execCall
}

type scriptedExec struct {
	result   codec.ResultDoc
	execErr  error
	killed   bool
	exitCode int
}

type execCall struct {
	mode string
}

func (f *fakeManager) Acquire(ctx context.Context, language judge.Language, limits judge.ResourceLimits) (sandbox.Handle, func(), error) {
	f.mu.Lock()
	f.acquireCount++
	if f.files == nil {
		f.files = make(map[string][]byte)
	}
	f.mu.Unlock()
	return sandbox.Handle{ID: "fake", Language: language}, func() {
		f.mu.Lock()
		f.released = true
		f.mu.Unlock()
	}, nil
}

func (f *fakeManager) Upload(ctx context.Context, h sandbox.Handle, name string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = content
	return nil
}

func (f *fakeManager) Exec(ctx context.Context, h sandbox.Handle, command []string, deadline time.Duration) (sandbox.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, _ := codec.DecodeConfig(f.files["config.json"])
	f.execCalls = append(f.execCalls, execCall{mode: doc.Mode})

	idx := len(f.execCalls) - 1
	if idx >= len(f.script) {
		return sandbox.ExecResult{}, fmt.Errorf("fakeManager: no scripted exec for call %d", idx)
	}
	step := f.script[idx]
	if step.execErr != nil {
		return sandbox.ExecResult{}, step.execErr
	}
	if step.killed {
		return sandbox.ExecResult{KilledByDeadline: true, ExitCode: 137}, nil
	}

	resultBytes, err := codec.EncodeResult(step.result)
	if err != nil {
		return sandbox.ExecResult{}, err
	}
	f.files["result.json"] = resultBytes
	return sandbox.ExecResult{ExitCode: step.exitCode}, nil
}

func (f *fakeManager) Download(ctx context.Context, h sandbox.Handle, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("fakeManager: no file %q", path)
	}
	return b, nil
}

func intSubmission(name string, value int) *judge.Submission {
	return &judge.Submission{
		Language: judge.LanguageC,
		Source:   "int solve(int *a) { *a = *a * 2; return 0; }",
		Parameters: []judge.Parameter{
			{Name: "a", Type: judge.TypeInt, InitialValue: float64(value)},
		},
		Expected:     map[string]interface{}{"a": float64(value * 2)},
		FunctionType: judge.TypeInt,
	}
}

func TestEvaluate_SuccessPath(t *testing.T) {
	fm := &fakeManager{
		script: []scriptedExec{
			{result: codec.ResultDoc{
				Status:   string(judge.StatusSuccess),
				Actual:   map[string]interface{}{"a": float64(6)},
				Expected: map[string]interface{}{"a": float64(6)},
			}},
		},
	}
	o := New(fm, nil)
	v, err := o.Evaluate(context.Background(), intSubmission("a", 3))
	require.NoError(t, err)
	assert.Equal(t, judge.StatusSuccess, v.Status)
	assert.Equal(t, 1, fm.acquireCount)
	assert.True(t, fm.released)
}

func TestEvaluate_ExecErrorClassifiesAsInternalErrorAndReleases(t *testing.T) {
	fm := &fakeManager{
		script: []scriptedExec{
			{execErr: fmt.Errorf("boom")},
		},
	}
	o := New(fm, nil)
	// An Exec-level error is a returned error, not a panic — this covers the
	// non-panic release path; TestEvaluate_PanicDuringExecStillReleasesAndRepanics
	// covers the actual panic/recover/release path separately.
	v, err := o.Evaluate(context.Background(), intSubmission("a", 3))
	require.NoError(t, err)
	assert.Equal(t, judge.StatusInternalError, v.Status)
	assert.True(t, fm.released)
}

func TestEvaluate_InvalidSubmissionNeverAcquiresSandbox(t *testing.T) {
	fm := &fakeManager{}
	o := New(fm, nil)
	sub := &judge.Submission{Language: judge.Language("rust"), Source: "x"}
	_, err := o.Evaluate(context.Background(), sub)
	assert.Error(t, err)
	assert.Equal(t, 0, fm.acquireCount)
}

func TestEvaluateBatch_CompileOnceAndOrderPreserved(t *testing.T) {
	configs := []*judge.Submission{
		intSubmission("a", 1), // compile_and_run
		intSubmission("a", 2), // same schema -> run_only
		intSubmission("a", 3), // same schema -> run_only
	}
	fm := &fakeManager{
		script: []scriptedExec{
			{result: codec.ResultDoc{Status: string(judge.StatusSuccess), Actual: map[string]interface{}{"a": float64(2)}, Expected: map[string]interface{}{"a": float64(2)}}},
			{result: codec.ResultDoc{Status: string(judge.StatusSuccess), Actual: map[string]interface{}{"a": float64(4)}, Expected: map[string]interface{}{"a": float64(4)}}},
			{result: codec.ResultDoc{Status: string(judge.StatusWrongAnswer), Actual: map[string]interface{}{"a": float64(999)}, Expected: map[string]interface{}{"a": float64(6)}}},
		},
	}
	o := New(fm, nil)
	verdicts, err := o.EvaluateBatch(context.Background(), judge.LanguageC, "int solve(int*a){*a=*a*2;return 0;}", configs)
	require.NoError(t, err)
	require.Len(t, verdicts, 3)

	assert.Equal(t, judge.StatusSuccess, verdicts[0].Status)
	assert.Equal(t, judge.StatusSuccess, verdicts[1].Status)
	assert.Equal(t, judge.StatusWrongAnswer, verdicts[2].Status)

	require.Len(t, fm.execCalls, 3)
	assert.Equal(t, codec.ModeCompileAndRun, fm.execCalls[0].mode)
	assert.Equal(t, codec.ModeRunOnly, fm.execCalls[1].mode)
	assert.Equal(t, codec.ModeRunOnly, fm.execCalls[2].mode)
	assert.Equal(t, 1, fm.acquireCount)
}

func TestEvaluateBatch_SchemaChangeTriggersRecompile(t *testing.T) {
	second := intSubmission("a", 2)
	second.Parameters = append(second.Parameters, judge.Parameter{Name: "b", Type: judge.TypeInt, InitialValue: float64(1)})
	configs := []*judge.Submission{
		intSubmission("a", 1),
		second,
	}
	fm := &fakeManager{
		script: []scriptedExec{
			{result: codec.ResultDoc{Status: string(judge.StatusSuccess)}},
			{result: codec.ResultDoc{Status: string(judge.StatusSuccess)}},
		},
	}
	o := New(fm, nil)
	_, err := o.EvaluateBatch(context.Background(), judge.LanguageC, "src", configs)
	require.NoError(t, err)
	assert.Equal(t, codec.ModeCompileAndRun, fm.execCalls[0].mode)
	assert.Equal(t, codec.ModeCompileAndRun, fm.execCalls[1].mode)
}

func TestEvaluateBatch_FirstCompileErrorShortCircuits(t *testing.T) {
	configs := []*judge.Submission{
		intSubmission("a", 1),
		intSubmission("a", 2),
		intSubmission("a", 3),
	}
	fm := &fakeManager{
		script: []scriptedExec{
			{result: codec.ResultDoc{Status: string(judge.StatusCompileError), Stderr: "syntax error"}},
		},
	}
	o := New(fm, nil)
	verdicts, err := o.EvaluateBatch(context.Background(), judge.LanguageC, "not valid c", configs)
	require.NoError(t, err)
	require.Len(t, verdicts, 3)
	for _, v := range verdicts {
		assert.Equal(t, judge.StatusCompileError, v.Status)
	}
	// Only one exec call was made — the batch never tried configs 2 and 3.
	assert.Len(t, fm.execCalls, 1)
}

// panicManager is a sandbox.Manager whose Exec panics instead of returning,
// letting the acquire/release pairing's panic-safety (orchestrator.go's
// recover/release/re-panic around Evaluate and EvaluateBatch) be exercised
// directly instead of only through the non-panic exec-error path.
type panicManager struct {
	released bool
}

func (p *panicManager) Acquire(ctx context.Context, language judge.Language, limits judge.ResourceLimits) (sandbox.Handle, func(), error) {
	return sandbox.Handle{ID: "panic", Language: language}, func() { p.released = true }, nil
}

func (p *panicManager) Upload(ctx context.Context, h sandbox.Handle, name string, content []byte) error {
	return nil
}

func (p *panicManager) Exec(ctx context.Context, h sandbox.Handle, command []string, deadline time.Duration) (sandbox.ExecResult, error) {
	panic("simulated sandbox exec panic")
}

func (p *panicManager) Download(ctx context.Context, h sandbox.Handle, path string) ([]byte, error) {
	return nil, fmt.Errorf("panicManager: Download should never be reached")
}

func TestEvaluate_PanicDuringExecStillReleasesAndRepanics(t *testing.T) {
	pm := &panicManager{}
	o := New(pm, nil)

	assert.Panics(t, func() {
		_, _ = o.Evaluate(context.Background(), intSubmission("a", 3))
	})
	assert.True(t, pm.released, "release() must run even when the sandbox manager panics")
}

func TestEvaluateBatch_PanicDuringExecStillReleasesAndRepanics(t *testing.T) {
	pm := &panicManager{}
	o := New(pm, nil)
	configs := []*judge.Submission{intSubmission("a", 1)}

	assert.Panics(t, func() {
		_, _ = o.EvaluateBatch(context.Background(), judge.LanguageC, "int solve(int*a){*a=*a*2;return 0;}", configs)
	})
	assert.True(t, pm.released, "release() must run even when the sandbox manager panics")
}

func TestEvaluateBatch_EmptyReturnsNil(t *testing.T) {
	fm := &fakeManager{}
	o := New(fm, nil)
	verdicts, err := o.EvaluateBatch(context.Background(), judge.LanguageC, "src", nil)
	require.NoError(t, err)
	assert.Nil(t, verdicts)
	assert.Equal(t, 0, fm.acquireCount)
}
