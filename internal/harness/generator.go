// Package harness implements the in-container driver contract from spec
// §4.B: given a config document it generates a language-specific test_main
// around the user's solve(), compiles both together, runs the result under
// a deadline, and writes the result document. One Generator implementation
// exists per language, mirroring the teacher's per-language Runner
// interface (internal/execution/runner.go's CRunner/CppRunner) but emitting
// a driver instead of just compiling a file.
package harness

import (
	"fmt"
	"strings"

	"apex-build/internal/codec"
	"apex-build/internal/judge"
)

// Generator produces a test_main source file around user code for one
// language, per the code-generation tie-breaks in spec §4.B.
type Generator interface {
	// Language identifies which submission language this generator serves.
	Language() judge.Language

	// SourceExt is the file extension used for both the user source and
	// the generated driver (e.g. ".c", ".cpp").
	SourceExt() string

	// GenerateTestMain renders test_main.<ext> for the given config.
	GenerateTestMain(doc codec.ConfigDoc) (string, error)

	// CompileArgs returns the compiler binary and argument list to build
	// user.<ext> and test_main.<ext> into outputBinary.
	CompileArgs(doc codec.ConfigDoc, userFile, driverFile, outputBinary string) (compiler string, args []string)
}

// ForLanguage returns the Generator for a submission language.
func ForLanguage(lang judge.Language) (Generator, error) {
	switch lang {
	case judge.LanguageC:
		return &CGenerator{}, nil
	case judge.LanguageCpp:
		return &CppGenerator{}, nil
	default:
		return nil, fmt.Errorf("harness: unsupported language %q", lang)
	}
}

// resultLinePrefix is the tag every emitted "<name>: <literal>" line uses,
// matching spec §4.B step 2 and the stdout-mixing disambiguation in §9:
// user code may also print to stdout, so each harness line carries this
// unique marker and the authoritative record is still the separate
// result.json file, never these lines alone.
const resultLinePrefix = "__JUDGE_RESULT__ "

func taggedPrintLine(name string) string {
	return resultLinePrefix + name + ": "
}

// splitParams returns the declared parameter order unchanged — kept as a
// named helper so both generators read identically at the call sites.
func splitParams(doc codec.ConfigDoc) []codec.ParamDoc {
	return doc.SolveParams
}

// joinLines joins generated source lines with a trailing newline on each.
func joinLines(lines []string) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	return sb.String()
}
