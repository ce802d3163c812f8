// Package sandbox implements the Sandbox Manager contract from spec §4.C:
// acquire an isolated, resource-capped, network-less execution context,
// upload files into it, exec commands under a deadline, download files back,
// and release it unconditionally. Two implementations share the Manager
// interface — DockerManager (local/remote daemon) and SSHManager (a remote
// Docker host proxied over SSH) — grounded in the teacher's sandbox-v2
// executor (internal/sandbox/v2/executor.go) but rebuilt around in-memory
// tar upload/download instead of bind mounts, per spec.
package sandbox

import (
	"context"
	"time"

	"apex-build/internal/judge"
)

// Handle identifies one acquired sandbox instance. Its zero value is never
// valid; Manager.Acquire is the only constructor.
type Handle struct {
	ID        string
	Language  judge.Language
	Container string
}

// ExecResult is the outcome of one exec call inside a sandbox.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	WallMs   float64

	// KilledByDeadline reports whether the manager's outer wall deadline
	// (the deadline passed to Exec; the orchestrator passes
	// compile_timeout + execution_timeout + margin) killed the sandbox
	// before the command returned on its own. The orchestrator's Classifier
	// (spec §4.E rule 1) depends on this bit to distinguish TIMEOUT from
	// COMPILE_TIMEOUT.
	KilledByDeadline bool
}

// OuterDeadlineMargin is the margin of the outer wall deadline, a safety net
// on top of the harness's internal deadline enforcement (spec §4.C, §8
// "margin is bounded and documented (≤ 500 ms)"). The deadline itself is
// chosen by the caller of Exec: the orchestrator adds its own execMargin,
// of the same value, to compile_timeout + execution_timeout and does not
// read this constant.
const OuterDeadlineMargin = 400 * time.Millisecond

// Manager is the contract every sandbox backend implements (spec §4.C).
// Acquire returns a release function the caller must defer immediately;
// release is idempotent and safe to call multiple times.
type Manager interface {
	// Acquire starts an isolated, network-disabled sandbox for language,
	// capped at limits.cpu_cores / limits.memory_bytes, with a writable
	// workdir. The returned release func stops and removes the sandbox; it
	// must run on every exit path, including a panic in the caller (callers
	// recover, release, and re-panic — see orchestrator.Evaluate).
	Acquire(ctx context.Context, language judge.Language, limits judge.ResourceLimits) (Handle, func(), error)

	// Upload writes bytes to name inside the sandbox's workdir using an
	// in-memory tar stream; no volume mounts are used.
	Upload(ctx context.Context, h Handle, name string, content []byte) error

	// Exec runs command inside the sandbox's workdir, enforcing deadline as
	// an outer wall-clock kill on top of whatever internal deadline the
	// command enforces on itself.
	Exec(ctx context.Context, h Handle, command []string, deadline time.Duration) (ExecResult, error)

	// Download reads path from inside the sandbox's workdir.
	Download(ctx context.Context, h Handle, path string) ([]byte, error)
}

// Registry maps a submission language to the container image tag that ships
// a preinstalled harness executable on PATH (spec §6 "Container image
// registry"). The concrete lookup is backed by internal/registry; Manager
// implementations depend only on this narrow interface so they can be
// tested against a fixed in-memory map.
type Registry interface {
	ImageFor(language judge.Language) (string, error)
}

// StaticRegistry is a fixed in-process Registry, useful for tests and as a
// fallback when the database-backed registry is unavailable.
type StaticRegistry map[judge.Language]string

func (r StaticRegistry) ImageFor(language judge.Language) (string, error) {
	img, ok := r[language]
	if !ok {
		return "", &UnsupportedLanguageError{Language: language}
	}
	return img, nil
}

// UnsupportedLanguageError is returned when no image is registered for a
// language tag.
type UnsupportedLanguageError struct {
	Language judge.Language
}

func (e *UnsupportedLanguageError) Error() string {
	return "sandbox: no image registered for language " + string(e.Language)
}
