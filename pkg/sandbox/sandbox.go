// Package sandbox runs submissions inside local Docker containers for
// deployments without access to a hosted judge. It implements the same
// contract as the Judge0 client: one container per test case, verdict from
// the exit code and output comparison.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codecourt/codecourt-api/pkg/judge"
)

var (
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "codecourt",
		Subsystem: "sandbox",
		Name:      "run_duration_seconds",
		Help:      "Duration of sandboxed test-case executions",
		Buckets:   prometheus.DefBuckets,
	}, []string{"image"})

	runTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codecourt",
		Subsystem: "sandbox",
		Name:      "run_timeouts_total",
		Help:      "Number of executions that hit the time limit",
	}, []string{"image"})

	runFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codecourt",
		Subsystem: "sandbox",
		Name:      "run_failures_total",
		Help:      "Number of executions that failed before producing output",
	}, []string{"image"})
)

type languageConfig struct {
	Image    string
	FileName string
	Command  string
}

// languages maps portal language tags to container run configurations. Tags
// without an entry fall back to python, matching the judge client's policy.
var languages = map[string]languageConfig{
	"python": {
		Image:    "python:3.11-alpine",
		FileName: "main.py",
		Command:  "python main.py",
	},
	"javascript": {
		Image:    "node:20-alpine",
		FileName: "main.js",
		Command:  "node main.js",
	},
	"go": {
		Image:    "golang:1.22-alpine",
		FileName: "main.go",
		Command:  "go run main.go",
	},
	"cpp": {
		Image:    "gcc:13",
		FileName: "main.cpp",
		Command:  "g++ -O2 -o main main.cpp && ./main",
	},
	"c": {
		Image:    "gcc:13",
		FileName: "main.c",
		Command:  "gcc -O2 -o main main.c && ./main",
	},
}

// Config groups sandbox executor settings.
type Config struct {
	Host          string
	WorkspaceRoot string
	CPUShares     int64
	Logger        zerolog.Logger
}

// Executor is a Docker-backed judge.Client.
type Executor struct {
	client *client.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// New constructs a sandbox executor talking to the local Docker daemon.
func New(cfg Config) (*Executor, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = os.TempDir()
	}
	if cfg.CPUShares <= 0 {
		cfg.CPUShares = 512
	}

	return &Executor{
		client: cli,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/codecourt/codecourt-api/pkg/sandbox"),
		logger: cfg.Logger.With().Str("component", "sandbox_executor").Logger(),
	}, nil
}

// RunTestCase executes one test case in a throwaway container and derives a
// verdict from the exit code, the measured memory and an exact comparison of
// trimmed output lines.
func (e *Executor) RunTestCase(parent context.Context, req judge.RunRequest) (judge.Verdict, error) {
	langCfg, ok := languages[strings.ToLower(strings.TrimSpace(req.Language))]
	if !ok {
		langCfg = languages["python"]
	}

	ctx, span := e.tracer.Start(parent, "sandbox.run_test_case", trace.WithAttributes(
		attribute.String("sandbox.image", langCfg.Image),
	))
	defer span.End()

	workspace, err := os.MkdirTemp(e.cfg.WorkspaceRoot, "case-")
	if err != nil {
		return judge.Verdict{}, fmt.Errorf("%w: create workspace: %v", judge.ErrExecutionFailed, err)
	}
	defer os.RemoveAll(workspace)

	if err := os.WriteFile(filepath.Join(workspace, langCfg.FileName), []byte(req.Source), 0o600); err != nil {
		return judge.Verdict{}, fmt.Errorf("%w: write source: %v", judge.ErrExecutionFailed, err)
	}
	if err := os.WriteFile(filepath.Join(workspace, "input.txt"), []byte(req.Stdin), 0o600); err != nil {
		return judge.Verdict{}, fmt.Errorf("%w: write input: %v", judge.ErrExecutionFailed, err)
	}

	result, runErr := e.runContainer(ctx, langCfg, workspace, req)
	if runErr != nil && !result.timedOut {
		runFailures.WithLabelValues(langCfg.Image).Inc()
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return judge.Verdict{}, fmt.Errorf("%w: %v", judge.ErrExecutionFailed, runErr)
	}

	verdict := e.verdictFrom(result, langCfg, req)
	span.SetAttributes(attribute.String("sandbox.status", string(verdict.Status)))
	return verdict, nil
}

type runResult struct {
	stdout      string
	stderr      string
	exitCode    int
	duration    time.Duration
	timedOut    bool
	memoryBytes int64
}

func (e *Executor) runContainer(ctx context.Context, langCfg languageConfig, workspace string, req judge.RunRequest) (runResult, error) {
	timeout := req.TimeLimit
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	// Compilation for the compiled languages happens inside the same
	// container run, so grant a fixed grace on top of the case limit.
	runCtx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()

	memoryBytes := int64(req.MemoryLimitKB) * 1024
	if memoryBytes <= 0 {
		memoryBytes = 256 * 1024 * 1024
	}

	hostCfg := &container.HostConfig{
		AutoRemove: false,
		Resources: container.Resources{
			Memory:    memoryBytes,
			CPUShares: e.cfg.CPUShares,
		},
		NetworkMode: "none",
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: workspace,
			Target: "/workspace",
		}},
	}

	containerCfg := &container.Config{
		Image:        langCfg.Image,
		Cmd:          []string{"sh", "-c", fmt.Sprintf("timeout %d sh -c '%s < input.txt'", int(timeout.Seconds())+1, langCfg.Command)},
		WorkingDir:   "/workspace",
		AttachStdout: true,
		AttachStderr: true,
	}

	start := time.Now()
	result := runResult{}

	resp, err := e.client.ContainerCreate(runCtx, containerCfg, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return result, fmt.Errorf("container create: %w", err)
	}

	containerID := resp.ID
	defer func() {
		removeCtx, cancelRemove := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelRemove()
		if err := e.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to remove container")
		}
	}()

	if err := e.client.ContainerStart(runCtx, containerID, container.StartOptions{}); err != nil {
		return result, fmt.Errorf("container start: %w", err)
	}

	statusCh, errCh := e.client.ContainerWait(runCtx, containerID, container.WaitConditionNextExit)

	var waitErr error
	select {
	case err := <-errCh:
		waitErr = err
	case status := <-statusCh:
		result.exitCode = int(status.StatusCode)
	case <-runCtx.Done():
		waitErr = runCtx.Err()
	}

	result.duration = time.Since(start)
	runDuration.WithLabelValues(langCfg.Image).Observe(result.duration.Seconds())

	if waitErr != nil {
		if errors.Is(waitErr, context.DeadlineExceeded) {
			result.timedOut = true
			runTimeouts.WithLabelValues(langCfg.Image).Inc()
			killCtx, cancelKill := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancelKill()
			if err := e.client.ContainerKill(killCtx, containerID, "KILL"); err != nil {
				e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to kill timed out container")
			}
		} else if !errors.Is(waitErr, context.Canceled) {
			return result, fmt.Errorf("container wait: %w", waitErr)
		}
	}

	// The GNU timeout wrapper exits 124 when the command ran past the limit.
	if result.exitCode == 124 {
		result.timedOut = true
		runTimeouts.WithLabelValues(langCfg.Image).Inc()
	}

	if logReader, err := e.client.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true}); err == nil {
		defer logReader.Close()
		stdout, stderr, splitErr := splitLogs(logReader)
		if splitErr != nil {
			e.logger.Error().Err(splitErr).Str("container_id", containerID).Msg("failed to read container logs")
		} else {
			result.stdout = stdout
			result.stderr = stderr
		}
	}

	statsCtx, cancelStats := context.WithTimeout(ctx, 2*time.Second)
	defer cancelStats()
	if stats, err := e.client.ContainerStatsOneShot(statsCtx, containerID); err == nil {
		defer stats.Body.Close()
		var data types.StatsJSON
		if decodeErr := json.NewDecoder(stats.Body).Decode(&data); decodeErr == nil {
			result.memoryBytes = int64(data.MemoryStats.Usage)
		}
	}

	return result, nil
}

func (e *Executor) verdictFrom(result runResult, langCfg languageConfig, req judge.RunRequest) judge.Verdict {
	verdict := judge.Verdict{
		Output:          result.stdout,
		Error:           strings.TrimSpace(result.stderr),
		ExecutionTimeMs: float64(result.duration) / float64(time.Millisecond),
		MemoryKB:        int(result.memoryBytes / 1024),
	}

	switch {
	case result.timedOut:
		verdict.Status = judge.StatusTimeLimitExceeded
		if verdict.Error == "" {
			verdict.Error = fmt.Sprintf("time limit of %s exceeded", req.TimeLimit)
		}
	case req.MemoryLimitKB > 0 && verdict.MemoryKB > req.MemoryLimitKB:
		verdict.Status = judge.StatusMemoryLimitExceeded
		if verdict.Error == "" {
			verdict.Error = fmt.Sprintf("memory limit of %d KB exceeded", req.MemoryLimitKB)
		}
	case result.exitCode != 0:
		if isCompiled(langCfg) && result.stdout == "" && verdict.Error != "" && !strings.Contains(verdict.Error, "Killed") {
			verdict.Status = judge.StatusCompilationError
		} else {
			verdict.Status = judge.StatusRuntimeError
		}
		if verdict.Error == "" {
			verdict.Error = fmt.Sprintf("process exited with code %d", result.exitCode)
		}
	case outputMatches(result.stdout, req.ExpectedOutput):
		verdict.Status = judge.StatusAccepted
		verdict.Passed = true
	default:
		verdict.Status = judge.StatusWrongAnswer
	}

	return verdict
}

func isCompiled(langCfg languageConfig) bool {
	return strings.Contains(langCfg.Command, "gcc") || strings.Contains(langCfg.Command, "g++")
}

// outputMatches compares outputs line by line with trailing whitespace
// stripped, the comparison Judge0 applies by default.
func outputMatches(actual, expected string) bool {
	actualLines := normalizeLines(actual)
	expectedLines := normalizeLines(expected)
	if len(actualLines) != len(expectedLines) {
		return false
	}
	for i := range actualLines {
		if actualLines[i] != expectedLines[i] {
			return false
		}
	}
	return true
}

func normalizeLines(output string) []string {
	trimmed := strings.TrimRight(strings.ReplaceAll(output, "\r\n", "\n"), " \n\t")
	if trimmed == "" {
		return nil
	}
	lines := strings.Split(trimmed, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return lines
}

func splitLogs(reader io.Reader) (string, string, error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, reader); err != nil {
		return "", "", err
	}
	return stdoutBuf.String(), stderrBuf.String(), nil
}

// Close shuts down the executor's Docker client.
func (e *Executor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}
