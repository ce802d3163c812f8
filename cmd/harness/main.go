// Command harness is the in-container CLI driving spec §4.B: given a config
// document and an output path, it generates a test_main around the
// submitted source, compiles, runs, and writes a result document. It is
// baked into each language's container image and invoked by the sandbox
// manager as `harness <config_path> <out_path>`.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"apex-build/internal/codec"
	"apex-build/internal/harness"
	"apex-build/internal/judge"
)

const (
	exitRunPath        = 0
	exitCompileFailure = 1
	exitRunFailure     = 2
	exitInternal       = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: harness <config_path> <out_path>")
		return exitInternal
	}
	configPath, outPath := os.Args[1], os.Args[2]

	configBytes, err := os.ReadFile(configPath)
	if err != nil {
		writeInternalError(outPath, fmt.Sprintf("read config: %v", err))
		return exitInternal
	}
	doc, err := codec.DecodeConfig(configBytes)
	if err != nil {
		writeInternalError(outPath, fmt.Sprintf("decode config: %v", err))
		return exitInternal
	}

	lang := judge.LanguageC
	if doc.CppStandard != "" {
		lang = judge.LanguageCpp
	}
	gen, err := harness.ForLanguage(lang)
	if err != nil {
		writeInternalError(outPath, err.Error())
		return exitInternal
	}

	workDir := filepath.Dir(configPath)
	userSource, err := os.ReadFile(filepath.Join(workDir, "user"+gen.SourceExt()))
	if err != nil {
		writeInternalError(outPath, fmt.Sprintf("read user source: %v", err))
		return exitInternal
	}

	binaryPath := filepath.Join(workDir, "test_runner")
	limits := doc.ResourceLimits()

	result := harness.Run(context.Background(), gen, doc, string(userSource), workDir, binaryPath, limits)

	out, err := codec.EncodeResult(result)
	if err != nil {
		writeInternalError(outPath, fmt.Sprintf("encode result: %v", err))
		return exitInternal
	}
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "harness: write result: %v\n", err)
		return exitInternal
	}

	return exitCodeFor(result.Status)
}

func exitCodeFor(status string) int {
	switch judge.Status(status) {
	case judge.StatusSuccess, judge.StatusWrongAnswer:
		return exitRunPath
	case judge.StatusCompileError, judge.StatusCompileTimeout:
		return exitCompileFailure
	case judge.StatusRuntimeError, judge.StatusTimeout:
		return exitRunFailure
	default:
		return exitInternal
	}
}

func writeInternalError(outPath, detail string) {
	doc := codec.ResultDoc{Status: string(judge.StatusInternalError), Error: detail}
	out, err := codec.EncodeResult(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "harness: %s\n", detail)
		return
	}
	_ = os.WriteFile(outPath, out, 0o644)
}
