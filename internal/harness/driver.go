package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"apex-build/internal/codec"
	"apex-build/internal/judge"
)

// Run executes the full spec §4.B sequence for one config document rooted at
// workDir: write source + generated driver, compile (unless mode is
// run_only and a cached binary already exists), run under the execution
// deadline, parse tagged stdout lines, compare against expected, and return
// the result document. It never classifies COMPILE_TIMEOUT/TIMEOUT against
// the *outer* sandbox deadline — that distinction belongs to the caller,
// which observes whether the sandbox itself was killed; Run only reports
// what happened inside the time budgets it was given.
func Run(ctx context.Context, gen Generator, doc codec.ConfigDoc, userSource string, workDir, binaryPath string, limits judge.ResourceLimits) codec.ResultDoc {
	userFile := filepath.Join(workDir, "user"+gen.SourceExt())
	driverFile := filepath.Join(workDir, "test_main"+gen.SourceExt())

	if err := os.WriteFile(userFile, []byte(userSource), 0o644); err != nil {
		return internalErrorResult(fmt.Sprintf("write user source: %v", err))
	}

	driverSrc, err := gen.GenerateTestMain(doc)
	if err != nil {
		return codec.ResultDoc{Status: string(judge.StatusCompileError), Error: err.Error()}
	}
	if err := os.WriteFile(driverFile, []byte(driverSrc), 0o644); err != nil {
		return internalErrorResult(fmt.Sprintf("write driver source: %v", err))
	}

	recompiled := false
	needsCompile := doc.Mode != codec.ModeRunOnly
	if !needsCompile {
		if _, err := os.Stat(binaryPath); err != nil {
			needsCompile = true
		}
	}

	var compileMs float64
	if needsCompile {
		compiler, args := gen.CompileArgs(doc, userFile, driverFile, binaryPath)
		out, ms, compileTimedOut, err := compile(ctx, compiler, args, workDir, limits.CompileTimeout)
		compileMs = ms
		recompiled = true
		if err != nil {
			if compileTimedOut {
				return codec.ResultDoc{
					Status:        string(judge.StatusCompileTimeout),
					Stderr:        out,
					CompileTimeMs: compileMs,
				}
			}
			return codec.ResultDoc{
				Status:        string(judge.StatusCompileError),
				Stderr:        out,
				CompileTimeMs: compileMs,
			}
		}
	}

	stdout, stderr, exitCode, wallMs, utime, stime, maxRSS, timedOut, runErr := execute(ctx, binaryPath, workDir, limits.ExecutionTimeout)
	result := codec.ResultDoc{
		CompileTimeMs: compileMs,
		TimeMs:        wallMs,
		CPUUtime:      utime,
		CPUStime:      stime,
		MaxRSSMb:      float64(maxRSS) / (1024 * 1024),
		Stdout:        stdout,
		Stderr:        stderr,
		ExitCode:      exitCode,
		Recompiled:    recompiled,
	}

	if timedOut {
		result.Status = string(judge.StatusTimeout)
		return result
	}
	if runErr != nil || exitCode != 0 {
		result.Status = string(judge.StatusRuntimeError)
		return result
	}

	actual, parseErr := parseTaggedOutput(stdout, doc)
	if parseErr != nil {
		result.Status = string(judge.StatusRuntimeError)
		result.Error = parseErr.Error()
		return result
	}

	result.Actual = actual
	result.Expected = doc.Expected
	result.Status = string(judge.StatusSuccess)
	if len(doc.Expected) > 0 {
		match := matches(doc.Expected, actual)
		result.Match = &match
		if !match {
			result.Status = string(judge.StatusWrongAnswer)
		}
	}
	return result
}

func internalErrorResult(detail string) codec.ResultDoc {
	return codec.ResultDoc{Status: string(judge.StatusInternalError), Error: detail}
}

// compile runs the compiler under its own deadline, returning combined
// stderr/stdout output and elapsed wall time in milliseconds.
func compile(ctx context.Context, compiler string, args []string, dir string, timeout time.Duration) (output string, elapsedMs float64, timedOut bool, err error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, compiler, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	runErr := cmd.Run()
	elapsedMs = float64(time.Since(start).Microseconds()) / 1000.0
	if runErr != nil && cctx.Err() == context.DeadlineExceeded {
		return out.String(), elapsedMs, true, runErr
	}
	return out.String(), elapsedMs, false, runErr
}

// execute runs the compiled binary under the execution deadline, capturing
// rusage the way the teacher's sandbox captured it for interpreted
// languages (internal/execution/sandbox.go's syscall.Rusage handling),
// generalized here to the compiled-binary case.
func execute(ctx context.Context, binaryPath, dir string, timeout time.Duration) (stdout, stderr string, exitCode int, wallMs, utimeSec, stimeSec float64, maxRSSBytes int64, timedOut bool, err error) {
	ectx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ectx, binaryPath)
	cmd.Dir = dir
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	start := time.Now()
	runErr := cmd.Run()
	wallMs = float64(time.Since(start).Microseconds()) / 1000.0
	stdout = outBuf.String()
	stderr = errBuf.String()

	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
		if rusage, ok := cmd.ProcessState.SysUsage().(*syscall.Rusage); ok {
			maxRSSBytes = rusage.Maxrss * 1024
			utimeSec = float64(rusage.Utime.Sec) + float64(rusage.Utime.Usec)/1e6
			stimeSec = float64(rusage.Stime.Sec) + float64(rusage.Stime.Usec)/1e6
		}
	}

	if runErr != nil {
		if ectx.Err() == context.DeadlineExceeded {
			return stdout, stderr, exitCode, wallMs, utimeSec, stimeSec, maxRSSBytes, true, nil
		}
		if _, ok := runErr.(*exec.ExitError); ok {
			return stdout, stderr, exitCode, wallMs, utimeSec, stimeSec, maxRSSBytes, false, nil
		}
		return stdout, stderr, exitCode, wallMs, utimeSec, stimeSec, maxRSSBytes, false, runErr
	}
	return stdout, stderr, exitCode, wallMs, utimeSec, stimeSec, maxRSSBytes, false, nil
}

// parseTaggedOutput reads the "__JUDGE_RESULT__ name: literal" lines
// generated by the test_main driver and decodes them into typed values
// keyed by parameter name, plus "return_value" when present. Lines without
// the tag are ordinary user stdout and are ignored here (but retained
// verbatim in the stdout field for diagnostics, spec §9).
func parseTaggedOutput(stdout string, doc codec.ConfigDoc) (map[string]interface{}, error) {
	types := make(map[string]judge.TypeTag, len(doc.SolveParams)+1)
	for _, p := range doc.SolveParams {
		types[p.Name] = judge.TypeTag(p.Type)
	}
	if doc.FunctionType != "" && doc.FunctionType != string(judge.TypeVoid) {
		types[judge.ReturnValueKey] = judge.TypeTag(doc.FunctionType)
	}

	actual := make(map[string]interface{})
	for _, line := range strings.Split(stdout, "\n") {
		if !strings.HasPrefix(line, resultLinePrefix) {
			continue
		}
		rest := strings.TrimPrefix(line, resultLinePrefix)
		idx := strings.Index(rest, ": ")
		if idx < 0 {
			continue
		}
		name := rest[:idx]
		literal := rest[idx+2:]
		t, known := types[name]
		if !known {
			continue
		}
		v, err := decodeLiteral(t, literal)
		if err != nil {
			return nil, fmt.Errorf("harness: parsing tagged value for %q: %w", name, err)
		}
		actual[name] = v
	}
	return actual, nil
}

func decodeLiteral(t judge.TypeTag, literal string) (interface{}, error) {
	if t.IsArray() {
		return decodeArrayLiteral(t, literal)
	}
	switch t {
	case judge.TypeInt:
		n, err := strconv.ParseInt(literal, 10, 64)
		if err != nil {
			return nil, err
		}
		return float64(n), nil
	case judge.TypeFloat, judge.TypeDouble:
		f, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return nil, err
		}
		return f, nil
	case judge.TypeBool:
		return literal == "true", nil
	case judge.TypeChar:
		if literal == "" {
			return "", nil
		}
		return string([]rune(literal)[0]), nil
	case judge.TypeString:
		return unquoteIfQuoted(literal), nil
	default:
		return literal, nil
	}
}

func decodeArrayLiteral(t judge.TypeTag, literal string) (interface{}, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(literal, "["), "]")
	elems := splitTopLevel(inner)
	elemType := elementType(t)
	out := make([]interface{}, 0, len(elems))
	for _, e := range elems {
		if e == "" {
			continue
		}
		v, err := decodeLiteral(elemType, e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// splitTopLevel splits a comma-separated element list while respecting
// double-quoted string elements that may themselves contain commas.
func splitTopLevel(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case c == ',' && !inQuotes:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	out = append(out, cur.String())
	return out
}

func unquoteIfQuoted(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		inner := s[1 : len(s)-1]
		inner = strings.ReplaceAll(inner, `\"`, `"`)
		inner = strings.ReplaceAll(inner, `\\`, `\`)
		return inner
	}
	return s
}

// matches implements spec's exact-equality comparison rule: every expected
// key must be present in actual with an equal value; extra actual keys are
// ignored (a submission may expose params beyond what the test cares about).
func matches(expected, actual map[string]interface{}) bool {
	for k, want := range expected {
		got, ok := actual[k]
		if !ok {
			return false
		}
		if !valueEqual(want, got) {
			return false
		}
	}
	return true
}

func valueEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case float64:
		bv, ok := toFloat(b)
		return ok && av == bv
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
