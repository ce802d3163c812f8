package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"

	"apex-build/internal/judge"
)

// DockerConfig is the explicit construction record for DockerManager — no
// package-level globals, per the REDESIGN FLAGS item on global mutable
// configuration.
type DockerConfig struct {
	Host          string
	WorkDir       string
	PullImages    bool
	TmpfsSizeSpec string
}

// DefaultDockerConfig mirrors the teacher's sandbox-v2 defaults
// (internal/sandbox/v2/manager.go's DefaultConfig) narrowed to what the
// judge sandbox needs.
func DefaultDockerConfig() DockerConfig {
	return DockerConfig{
		Host:          "unix:///var/run/docker.sock",
		WorkDir:       "/app",
		PullImages:    false,
		TmpfsSizeSpec: "size=64m",
	}
}

// DockerManager implements Manager against a local or remote Docker daemon,
// modeled on the teacher's DockerExecutor (internal/sandbox/v2/executor.go)
// but using in-memory tar upload/download instead of bind mounts, an idle
// long-running container per acquire, and docker exec for each command
// (spec §4.C).
type DockerManager struct {
	cfg      DockerConfig
	client   *client.Client
	registry Registry
}

// NewDockerManager dials the configured Docker daemon and returns a Manager.
func NewDockerManager(cfg DockerConfig, registry Registry) (*DockerManager, error) {
	cli, err := client.NewClientWithOpts(
		client.WithHost(cfg.Host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("sandbox: docker client init: %w", err)
	}
	return &DockerManager{cfg: cfg, client: cli, registry: registry}, nil
}

func (m *DockerManager) Acquire(ctx context.Context, language judge.Language, limits judge.ResourceLimits) (Handle, func(), error) {
	imageRef, err := m.registry.ImageFor(language)
	if err != nil {
		return Handle{}, func() {}, err
	}

	if m.cfg.PullImages {
		if err := m.ensureImage(ctx, imageRef); err != nil {
			return Handle{}, func() {}, err
		}
	}

	name := "judge-sandbox-" + uuid.New().String()[:12]
	resources := container.Resources{
		Memory:   limits.MemoryBytes,
		NanoCPUs: int64(limits.CPUCores * 1e9),
	}

	created, err := m.client.ContainerCreate(ctx, &container.Config{
		Image:           imageRef,
		WorkingDir:      m.cfg.WorkDir,
		Cmd:             []string{"sleep", "infinity"},
		Tty:             false,
		NetworkDisabled: true,
	}, &container.HostConfig{
		Resources:   resources,
		Tmpfs:       map[string]string{m.cfg.WorkDir: m.cfg.TmpfsSizeSpec},
		AutoRemove:  false,
		NetworkMode: "none",
	}, nil, nil, name)
	if err != nil {
		return Handle{}, func() {}, fmt.Errorf("sandbox: container create: %w", err)
	}

	if err := m.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		_ = m.client.ContainerRemove(context.Background(), created.ID, container.RemoveOptions{Force: true})
		return Handle{}, func() {}, fmt.Errorf("sandbox: container start: %w", err)
	}

	h := Handle{ID: name, Language: language, Container: created.ID}
	release := func() {
		_ = m.client.ContainerStop(context.Background(), h.Container, container.StopOptions{})
		_ = m.client.ContainerRemove(context.Background(), h.Container, container.RemoveOptions{Force: true})
	}
	return h, release, nil
}

func (m *DockerManager) Upload(ctx context.Context, h Handle, name string, content []byte) error {
	buf, err := tarSingleFile(name, content)
	if err != nil {
		return err
	}
	return m.client.CopyToContainer(ctx, h.Container, m.cfg.WorkDir, buf, container.CopyToContainerOptions{})
}

func (m *DockerManager) Exec(ctx context.Context, h Handle, command []string, deadline time.Duration) (ExecResult, error) {
	ectx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	created, err := m.client.ContainerExecCreate(ectx, h.Container, container.ExecOptions{
		Cmd:          command,
		WorkingDir:   m.cfg.WorkDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return ExecResult{}, fmt.Errorf("sandbox: exec create: %w", err)
	}

	attach, err := m.client.ContainerExecAttach(ectx, created.ID, container.ExecStartOptions{})
	if err != nil {
		return ExecResult{}, fmt.Errorf("sandbox: exec attach: %w", err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	copyDone := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		copyDone <- copyErr
	}()

	start := time.Now()
	select {
	case <-ectx.Done():
		_ = m.client.ContainerKill(context.Background(), h.Container, "SIGKILL")
		<-copyDone
		return ExecResult{
			Stdout:           stdout.String(),
			Stderr:           stderr.String(),
			WallMs:           float64(time.Since(start).Microseconds()) / 1000.0,
			KilledByDeadline: true,
			ExitCode:         137,
		}, nil
	case copyErr := <-copyDone:
		if copyErr != nil && !errors.Is(copyErr, io.EOF) {
			return ExecResult{}, fmt.Errorf("sandbox: exec stream: %w", copyErr)
		}
	}

	inspect, err := m.client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return ExecResult{}, fmt.Errorf("sandbox: exec inspect: %w", err)
	}

	return ExecResult{
		ExitCode: inspect.ExitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		WallMs:   float64(time.Since(start).Microseconds()) / 1000.0,
	}, nil
}

func (m *DockerManager) Download(ctx context.Context, h Handle, path string) ([]byte, error) {
	rc, _, err := m.client.CopyFromContainer(ctx, h.Container, path)
	if err != nil {
		return nil, fmt.Errorf("sandbox: copy from container: %w", err)
	}
	defer rc.Close()
	return untarSingleFile(rc)
}

func (m *DockerManager) ensureImage(ctx context.Context, imageRef string) error {
	reader, err := m.client.ImagePull(ctx, imageRef, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("sandbox: image pull %s: %w", imageRef, err)
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	return err
}
