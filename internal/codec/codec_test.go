package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apex-build/internal/judge"
)

func TestBuildConfigDocRoundTrip(t *testing.T) {
	sub := &judge.Submission{
		Language: judge.LanguageC,
		Source:   "int solve(int*a,int*b){*a=*a*2;*b=*b*2+1;return 0;}",
		Parameters: []judge.Parameter{
			{Name: "a", Type: judge.TypeInt, InitialValue: float64(3)},
			{Name: "b", Type: judge.TypeInt, InitialValue: float64(4)},
		},
		Expected:     map[string]interface{}{"a": float64(6), "b": float64(9)},
		FunctionType: judge.TypeInt,
	}

	doc := BuildConfigDoc(sub, ModeCompileAndRun)
	raw, err := EncodeConfig(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "null")

	decoded, err := DecodeConfig(raw)
	require.NoError(t, err)
	require.Len(t, decoded.SolveParams, 2)
	assert.Equal(t, "a", decoded.SolveParams[0].Name)
	assert.Equal(t, "b", decoded.SolveParams[1].Name)
	assert.Equal(t, "int", decoded.SolveParams[0].Type)
	assert.Equal(t, "c99", decoded.CStandard)
	assert.Equal(t, ModeCompileAndRun, decoded.Mode)
	assert.Equal(t, float64(6), decoded.Expected["a"])

	limits := decoded.ResourceLimits()
	assert.Equal(t, judge.DefaultResourceLimits(), limits)
}

func TestBuildConfigDocCarriesOverriddenResourceLimits(t *testing.T) {
	sub := &judge.Submission{
		Language: judge.LanguageC,
		Source:   "int solve(int *a) { while(1){} return 0; }",
		ResourceLimits: &judge.ResourceLimits{
			CompileTimeout:   5 * time.Second,
			ExecutionTimeout: 1 * time.Second,
			MemoryBytes:      64 << 20,
			CPUCores:         1,
		},
	}

	doc := BuildConfigDoc(sub, ModeCompileAndRun)
	raw, err := EncodeConfig(doc)
	require.NoError(t, err)

	decoded, err := DecodeConfig(raw)
	require.NoError(t, err)
	limits := decoded.ResourceLimits()
	assert.Equal(t, 1*time.Second, limits.ExecutionTimeout)
	assert.Equal(t, 5*time.Second, limits.CompileTimeout)
	assert.Equal(t, int64(64<<20), limits.MemoryBytes)
}

func TestBuildConfigDocPreservesArrayOrder(t *testing.T) {
	sub := &judge.Submission{
		Language: judge.LanguageCpp,
		Source:   "void solve(std::vector<int>&v){}",
		Parameters: []judge.Parameter{
			{Name: "v", Type: judge.TypeVectorInt, InitialValue: []interface{}{float64(3), float64(1), float64(2)}},
		},
		FunctionType: judge.TypeVoid,
	}
	doc := BuildConfigDoc(sub, "")
	raw, err := EncodeConfig(doc)
	require.NoError(t, err)

	decoded, err := DecodeConfig(raw)
	require.NoError(t, err)
	vals := decoded.SolveParams[0].InputValue.([]interface{})
	require.Len(t, vals, 3)
	assert.Equal(t, float64(3), vals[0])
	assert.Equal(t, float64(1), vals[1])
	assert.Equal(t, float64(2), vals[2])
}

func TestDecodeResultRejectsEmpty(t *testing.T) {
	_, err := DecodeResult(nil)
	assert.Error(t, err)
}

func TestDecodeResultToSkeleton(t *testing.T) {
	raw := []byte(`{
		"status": "SUCCESS",
		"stdout": "a: 6\nb: 9\nreturn_value: 0\n",
		"stderr": "",
		"exit_code": 0,
		"compile_time_ms": 120.5,
		"time_ms": 3.2,
		"cpu_utime": 0.01,
		"cpu_stime": 0.00,
		"maxrss_mb": 1.5,
		"expected": {"a": 6, "b": 9},
		"actual": {"a": 6, "b": 9, "return_value": 0},
		"match": true
	}`)
	doc, err := DecodeResult(raw)
	require.NoError(t, err)
	v := doc.ToVerdictSkeleton()
	assert.Equal(t, judge.StatusSuccess, v.Status)
	require.NotNil(t, v.Match)
	assert.True(t, *v.Match)
	assert.Equal(t, int64(1572864), v.Metrics.MaxRSSBytes)
}
