package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"apex-build/internal/judge"
)

// SSHConfig is the explicit construction record for SSHManager — a remote
// Docker host reached over SSH rather than a local daemon socket (spec §4.C
// "A remote variant accepts an SSH endpoint ... its public contract is
// identical").
type SSHConfig struct {
	Addr           string // host:port
	User           string
	Signer         ssh.Signer // nil to fall back to the running ssh-agent
	HostKeyCallback ssh.HostKeyCallback
	WorkDir        string
}

// SSHManager implements Manager by proxying acquire/upload/exec/download/
// release onto `docker` CLI invocations run over an SSH session against a
// remote Docker host. It satisfies the same Manager interface as
// DockerManager so the orchestrator is indifferent to which backend a
// submission's language routes to.
type SSHManager struct {
	cfg      SSHConfig
	client   *ssh.Client
	registry Registry
}

// NewSSHManager dials the configured remote host and returns a Manager.
func NewSSHManager(cfg SSHConfig, registry Registry) (*SSHManager, error) {
	auth, err := sshAuthMethod(cfg)
	if err != nil {
		return nil, err
	}
	hostKeyCB := cfg.HostKeyCallback
	if hostKeyCB == nil {
		return nil, fmt.Errorf("sandbox: SSHConfig.HostKeyCallback must be set")
	}

	client, err := ssh.Dial("tcp", cfg.Addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeyCB,
		Timeout:         10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("sandbox: ssh dial %s: %w", cfg.Addr, err)
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = "/app"
	}
	return &SSHManager{cfg: cfg, client: client, registry: registry}, nil
}

func sshAuthMethod(cfg SSHConfig) (ssh.AuthMethod, error) {
	if cfg.Signer != nil {
		return ssh.PublicKeys(cfg.Signer), nil
	}
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("sandbox: no ssh signer configured and SSH_AUTH_SOCK is unset")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("sandbox: connect to ssh-agent: %w", err)
	}
	agentClient := agent.NewClient(conn)
	return ssh.PublicKeysCallback(agentClient.Signers), nil
}

func (m *SSHManager) runCommand(ctx context.Context, cmd string) (stdout, stderr string, exitCode int, err error) {
	session, err := m.client.NewSession()
	if err != nil {
		return "", "", -1, fmt.Errorf("sandbox: ssh session: %w", err)
	}
	defer session.Close()

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return outBuf.String(), errBuf.String(), -1, ctx.Err()
	case runErr := <-done:
		if runErr == nil {
			return outBuf.String(), errBuf.String(), 0, nil
		}
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			return outBuf.String(), errBuf.String(), exitErr.ExitStatus(), nil
		}
		return outBuf.String(), errBuf.String(), -1, runErr
	}
}

func (m *SSHManager) Acquire(ctx context.Context, language judge.Language, limits judge.ResourceLimits) (Handle, func(), error) {
	image, err := m.registry.ImageFor(language)
	if err != nil {
		return Handle{}, func() {}, err
	}

	cmd := fmt.Sprintf(
		"docker run -d --network none --memory %d --cpus %.2f --workdir %s %s sleep infinity",
		limits.MemoryBytes, limits.CPUCores, m.cfg.WorkDir, image,
	)
	out, stderr, exitCode, err := m.runCommand(ctx, cmd)
	if err != nil {
		return Handle{}, func() {}, fmt.Errorf("sandbox: remote docker run: %w", err)
	}
	if exitCode != 0 {
		return Handle{}, func() {}, fmt.Errorf("sandbox: remote docker run failed: %s", stderr)
	}

	containerID := strings.TrimSpace(out)
	h := Handle{ID: containerID, Language: language, Container: containerID}
	release := func() {
		_, _, _, _ = m.runCommand(context.Background(), "docker rm -f "+containerID)
	}
	return h, release, nil
}

func (m *SSHManager) Upload(ctx context.Context, h Handle, name string, content []byte) error {
	tarBuf, err := tarSingleFile(name, content)
	if err != nil {
		return err
	}

	session, err := m.client.NewSession()
	if err != nil {
		return fmt.Errorf("sandbox: ssh session: %w", err)
	}
	defer session.Close()

	stdin, err := session.StdinPipe()
	if err != nil {
		return fmt.Errorf("sandbox: ssh stdin pipe: %w", err)
	}

	cmd := fmt.Sprintf("docker cp - %s:%s", h.Container, m.cfg.WorkDir)
	if err := session.Start(cmd); err != nil {
		return fmt.Errorf("sandbox: remote docker cp start: %w", err)
	}
	if _, err := stdin.Write(tarBuf.Bytes()); err != nil {
		return fmt.Errorf("sandbox: write tar stream: %w", err)
	}
	if err := stdin.Close(); err != nil {
		return fmt.Errorf("sandbox: close tar stream: %w", err)
	}
	if err := session.Wait(); err != nil {
		return fmt.Errorf("sandbox: remote docker cp: %w", err)
	}
	return nil
}

func (m *SSHManager) Exec(ctx context.Context, h Handle, command []string, deadline time.Duration) (ExecResult, error) {
	ectx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	quoted := make([]string, len(command))
	for i, c := range command {
		quoted[i] = "'" + strings.ReplaceAll(c, "'", `'\''`) + "'"
	}
	cmd := fmt.Sprintf("docker exec --workdir %s %s %s", m.cfg.WorkDir, h.Container, strings.Join(quoted, " "))

	start := time.Now()
	out, stderr, exitCode, err := m.runCommand(ectx, cmd)
	wallMs := float64(time.Since(start).Microseconds()) / 1000.0

	if err == context.DeadlineExceeded {
		_, _, _, _ = m.runCommand(context.Background(), "docker kill "+h.Container)
		return ExecResult{Stdout: out, Stderr: stderr, WallMs: wallMs, KilledByDeadline: true, ExitCode: 137}, nil
	}
	if err != nil {
		return ExecResult{}, err
	}
	return ExecResult{ExitCode: exitCode, Stdout: out, Stderr: stderr, WallMs: wallMs}, nil
}

func (m *SSHManager) Download(ctx context.Context, h Handle, path string) ([]byte, error) {
	session, err := m.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("sandbox: ssh session: %w", err)
	}
	defer session.Close()

	var outBuf bytes.Buffer
	session.Stdout = &outBuf

	cmd := fmt.Sprintf("docker cp %s:%s -", h.Container, path)
	if err := session.Run(cmd); err != nil {
		return nil, fmt.Errorf("sandbox: remote docker cp download: %w", err)
	}
	return untarSingleFile(&outBuf)
}
