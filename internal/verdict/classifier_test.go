package verdict

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apex-build/internal/codec"
	"apex-build/internal/judge"
)

func TestClassify_Success(t *testing.T) {
	result := codec.ResultDoc{
		Status:   "SUCCESS",
		ExitCode: 0,
		Expected: map[string]interface{}{"a": 6.0, "b": 9.0},
		Actual:   map[string]interface{}{"a": 6.0, "b": 9.0, "return_value": 0.0},
	}
	v := Classify(0, SandboxOutcome{}, result, nil)
	assert.Equal(t, judge.StatusSuccess, v.Status)
	require.NotNil(t, v.Match)
	assert.True(t, *v.Match)
}

func TestClassify_WrongAnswer(t *testing.T) {
	result := codec.ResultDoc{
		Status:   "WRONG_ANSWER",
		ExitCode: 0,
		Expected: map[string]interface{}{"a": 3.0},
		Actual:   map[string]interface{}{"a": 2.0, "return_value": 0.0},
	}
	v := Classify(0, SandboxOutcome{}, result, nil)
	assert.Equal(t, judge.StatusWrongAnswer, v.Status)
	require.NotNil(t, v.Match)
	assert.False(t, *v.Match)
	assert.Equal(t, result.Expected, v.Expected)
	assert.Equal(t, result.Actual, v.Actual)
}

func TestClassify_EmptyExpectedNeverWrongAnswer(t *testing.T) {
	result := codec.ResultDoc{Status: "SUCCESS", ExitCode: 0}
	v := Classify(0, SandboxOutcome{}, result, nil)
	assert.Equal(t, judge.StatusSuccess, v.Status)
	assert.Nil(t, v.Match)
}

func TestClassify_CompileError(t *testing.T) {
	result := codec.ResultDoc{Status: "COMPILE_ERROR", ExitCode: 1, Stderr: "error: expected ';'"}
	v := Classify(1, SandboxOutcome{}, result, nil)
	assert.Equal(t, judge.StatusCompileError, v.Status)
	assert.Nil(t, v.Match)
}

func TestClassify_RuntimeErrorSegfault(t *testing.T) {
	result := codec.ResultDoc{Status: "RUNTIME_ERROR", ExitCode: 139}
	v := Classify(2, SandboxOutcome{}, result, nil)
	assert.Equal(t, judge.StatusRuntimeError, v.Status)
	assert.Equal(t, 139, v.ExitCode)
}

func TestClassify_OuterDeadlineDuringRun(t *testing.T) {
	result := codec.ResultDoc{CompileTimeMs: 120, Status: "RUNNING"}
	v := Classify(0, SandboxOutcome{KilledByOuterDeadline: true}, result, nil)
	assert.Equal(t, judge.StatusTimeout, v.Status)
}

func TestClassify_OuterDeadlineDuringCompile(t *testing.T) {
	result := codec.ResultDoc{CompileTimeMs: 0}
	v := Classify(0, SandboxOutcome{KilledByOuterDeadline: true}, result, nil)
	assert.Equal(t, judge.StatusCompileTimeout, v.Status)
}

func TestClassify_MalformedResultIsInternalError(t *testing.T) {
	v := Classify(0, SandboxOutcome{}, codec.ResultDoc{}, errors.New("unexpected EOF"))
	assert.Equal(t, judge.StatusInternalError, v.Status)
	assert.Contains(t, v.ErrorDetail, "unexpected EOF")
}

func TestClassify_ExecErrorIsInternalError(t *testing.T) {
	v := Classify(0, SandboxOutcome{ExecError: errors.New("container start failed")}, codec.ResultDoc{}, nil)
	assert.Equal(t, judge.StatusInternalError, v.Status)
}

func TestClassify_HighExitCodeIsInternalError(t *testing.T) {
	v := Classify(5, SandboxOutcome{}, codec.ResultDoc{Status: "SUCCESS"}, nil)
	assert.Equal(t, judge.StatusInternalError, v.Status)
}

func TestClassify_SynonymNormalization(t *testing.T) {
	v := Classify(0, SandboxOutcome{}, codec.ResultDoc{Status: "ERROR"}, nil)
	assert.Equal(t, judge.StatusInternalError, v.Status)

	v2 := Classify(2, SandboxOutcome{}, codec.ResultDoc{Status: "TIMEOUT_ERROR"}, nil)
	assert.Equal(t, judge.StatusTimeout, v2.Status)
}
