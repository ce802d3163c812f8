package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apex-build/internal/codec"
	"apex-build/internal/judge"
)

// scenario 1 from spec §8: int solve(int*a,int*b){*a=*a*2;*b=*b*2+1;return 0;}
func cScenarioOneDoc() codec.ConfigDoc {
	return codec.ConfigDoc{
		SolveParams: []codec.ParamDoc{
			{Name: "a", Type: "int", InputValue: float64(3)},
			{Name: "b", Type: "int", InputValue: float64(4)},
		},
		Expected:     map[string]interface{}{"a": float64(6), "b": float64(9)},
		FunctionType: "int",
		CStandard:    "c99",
	}
}

func TestCGenerator_GenerateTestMain(t *testing.T) {
	gen := &CGenerator{}
	assert.Equal(t, judge.LanguageC, gen.Language())
	assert.Equal(t, ".c", gen.SourceExt())

	src, err := gen.GenerateTestMain(cScenarioOneDoc())
	require.NoError(t, err)
	assert.Contains(t, src, "int solve(int*, int*);")
	assert.Contains(t, src, "int p0_a = 3;")
	assert.Contains(t, src, "int p1_b = 4;")
	assert.Contains(t, src, "int __ret = solve(&p0_a, &p1_b);")
	assert.Contains(t, src, "__JUDGE_RESULT__ a: ")
	assert.Contains(t, src, "__JUDGE_RESULT__ return_value: ")
}

func TestCGenerator_RejectsVector(t *testing.T) {
	gen := &CGenerator{}
	doc := codec.ConfigDoc{
		SolveParams: []codec.ParamDoc{
			{Name: "v", Type: "vector<int>", InputValue: []interface{}{float64(1)}},
		},
		FunctionType: "void",
	}
	_, err := gen.GenerateTestMain(doc)
	assert.Error(t, err)
}

func TestCGenerator_CompileArgs(t *testing.T) {
	gen := &CGenerator{}
	compiler, args := gen.CompileArgs(cScenarioOneDoc(), "user.c", "test_main.c", "test_runner")
	assert.Equal(t, "gcc", compiler)
	assert.Contains(t, args, "-std=c99")
	assert.Contains(t, args, "-lm")
	assert.Contains(t, args, "test_runner")
}

func TestCGenerator_ArrayParameter(t *testing.T) {
	gen := &CGenerator{}
	doc := codec.ConfigDoc{
		SolveParams: []codec.ParamDoc{
			{Name: "xs", Type: "array_int", InputValue: []interface{}{float64(1), float64(2), float64(3)}},
		},
		FunctionType: "void",
		CStandard:    "c99",
	}
	src, err := gen.GenerateTestMain(doc)
	require.NoError(t, err)
	assert.Contains(t, src, "int p0_xs[3] = {1, 2, 3};")
	assert.Contains(t, src, "void solve(int*);")
}

func TestCppGenerator_GenerateTestMain(t *testing.T) {
	gen := &CppGenerator{}
	assert.Equal(t, judge.LanguageCpp, gen.Language())
	assert.Equal(t, ".cpp", gen.SourceExt())

	doc := codec.ConfigDoc{
		SolveParams: []codec.ParamDoc{
			{Name: "a", Type: "int", InputValue: float64(1)},
		},
		Expected:     map[string]interface{}{"a": float64(3)},
		FunctionType: "int",
		CppStandard:  "c++17",
	}
	src, err := gen.GenerateTestMain(doc)
	require.NoError(t, err)
	assert.Contains(t, src, "int solve(int&);")
	assert.Contains(t, src, "int p0_a = 1;")
	assert.Contains(t, src, "int __ret = solve(p0_a);")
	assert.Contains(t, src, "__JUDGE_RESULT__ return_value")
}

func TestCppGenerator_VectorSupport(t *testing.T) {
	gen := &CppGenerator{}
	doc := codec.ConfigDoc{
		SolveParams: []codec.ParamDoc{
			{Name: "v", Type: "vector<int>", InputValue: []interface{}{float64(3), float64(1), float64(2)}},
		},
		FunctionType: "void",
		CppStandard:  "c++17",
	}
	src, err := gen.GenerateTestMain(doc)
	require.NoError(t, err)
	assert.Contains(t, src, "std::vector<int> p0_v = {3, 1, 2};")
	assert.Contains(t, src, "void solve(std::vector<int>&);")
}

func TestCppGenerator_CompileArgs(t *testing.T) {
	gen := &CppGenerator{}
	doc := codec.ConfigDoc{CppStandard: "c++17", CompilerFlags: "-Wall -Wextra -O2"}
	compiler, args := gen.CompileArgs(doc, "user.cpp", "test_main.cpp", "test_runner")
	assert.Equal(t, "g++", compiler)
	assert.Contains(t, args, "-std=c++17")
	assert.Contains(t, args, "-O2")
}

func TestForLanguage(t *testing.T) {
	g, err := ForLanguage(judge.LanguageC)
	require.NoError(t, err)
	assert.IsType(t, &CGenerator{}, g)

	g, err = ForLanguage(judge.LanguageCpp)
	require.NoError(t, err)
	assert.IsType(t, &CppGenerator{}, g)

	_, err = ForLanguage(judge.Language("rust"))
	assert.Error(t, err)
}
