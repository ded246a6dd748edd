package judge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	judgeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codecourt",
		Subsystem: "judge",
		Name:      "runs_total",
		Help:      "Number of test-case executions per verdict status",
	}, []string{"status"})

	judgeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codecourt",
		Subsystem: "judge",
		Name:      "failures_total",
		Help:      "Number of executions that failed at the transport level",
	})

	judgePollExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codecourt",
		Subsystem: "judge",
		Name:      "poll_exhausted_total",
		Help:      "Number of executions that never reached a terminal judge status",
	})

	judgeRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "codecourt",
		Subsystem: "judge",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of a test-case execution including polling",
		Buckets:   prometheus.DefBuckets,
	})
)

// Judge0Config groups settings for the hosted Judge0 backend.
type Judge0Config struct {
	BaseURL      string
	APIKey       string
	APIHost      string
	PollInterval time.Duration
	MaxAttempts  int
	HTTPClient   *http.Client
	Logger       zerolog.Logger
}

// Judge0Client executes code through the Judge0 REST API: it submits a job,
// receives a token, and polls until the status leaves the in-queue/processing
// range or the attempt ceiling is hit.
type Judge0Client struct {
	cfg    Judge0Config
	http   *http.Client
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewJudge0Client constructs a Judge0-backed judge client.
func NewJudge0Client(cfg Judge0Config) (*Judge0Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("judge0 base url must not be empty")
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.APIHost == "" {
		cfg.APIHost = "judge0-ce.p.rapidapi.com"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Judge0Client{
		cfg:    cfg,
		http:   httpClient,
		tracer: otel.Tracer("github.com/codecourt/codecourt-api/pkg/judge"),
		logger: cfg.Logger.With().Str("component", "judge0_client").Logger(),
	}, nil
}

type judge0CreateRequest struct {
	SourceCode     string  `json:"source_code"`
	LanguageID     int     `json:"language_id"`
	Stdin          string  `json:"stdin"`
	ExpectedOutput string  `json:"expected_output"`
	CPUTimeLimit   float64 `json:"cpu_time_limit"`
}

type judge0CreateResponse struct {
	Token string `json:"token"`
}

type judge0Result struct {
	Status struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
	Time   string `json:"time"`
	Memory int    `json:"memory"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// RunTestCase submits one test case and polls for its verdict.
func (c *Judge0Client) RunTestCase(parent context.Context, req RunRequest) (Verdict, error) {
	ctx, span := c.tracer.Start(parent, "judge0.run_test_case", trace.WithAttributes(
		attribute.String("judge.language", req.Language),
		attribute.Int("judge.language_id", LanguageID(req.Language)),
	))
	defer span.End()

	start := time.Now()
	defer func() { judgeRunDuration.Observe(time.Since(start).Seconds()) }()

	token, err := c.createSubmission(ctx, req)
	if err != nil {
		judgeFailures.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission create failed")
		return Verdict{}, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}

	result, terminal, err := c.pollResult(ctx, token)
	if err != nil {
		judgeFailures.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "poll failed")
		return Verdict{}, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}

	if !terminal {
		// The judge never produced a verdict within the polling budget. A
		// non-terminal status must not be mistaken for a pass.
		judgePollExhausted.Inc()
		c.logger.Warn().Str("token", token).Int("last_status", result.Status.ID).
			Msg("judge0 polling exhausted before terminal status")
		verdict := Verdict{
			Passed: false,
			Status: StatusRuntimeError,
			Error:  "judge did not produce a verdict in time",
		}
		judgeRuns.WithLabelValues(string(verdict.Status)).Inc()
		return verdict, nil
	}

	verdict := verdictFromResult(result)
	judgeRuns.WithLabelValues(string(verdict.Status)).Inc()
	span.SetAttributes(attribute.String("judge.status", string(verdict.Status)))
	return verdict, nil
}

func (c *Judge0Client) createSubmission(ctx context.Context, req RunRequest) (string, error) {
	payload := judge0CreateRequest{
		SourceCode:     base64.StdEncoding.EncodeToString([]byte(req.Source)),
		LanguageID:     LanguageID(req.Language),
		Stdin:          base64.StdEncoding.EncodeToString([]byte(req.Stdin)),
		ExpectedOutput: base64.StdEncoding.EncodeToString([]byte(req.ExpectedOutput)),
		CPUTimeLimit:   req.TimeLimit.Seconds(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode submission: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/submissions?base64_encoded=true&wait=false"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("submit to judge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("judge returned status %d: %s", resp.StatusCode, string(snippet))
	}

	var created judge0CreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode judge response: %w", err)
	}
	if created.Token == "" {
		return "", fmt.Errorf("judge returned an empty token")
	}

	return created.Token, nil
}

// pollResult fetches the submission result until the status leaves the
// non-terminal range (1 in queue, 2 processing) or attempts run out. The
// second return value reports whether a terminal status was observed.
func (c *Judge0Client) pollResult(ctx context.Context, token string) (judge0Result, bool, error) {
	var result judge0Result

	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return result, false, ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}

		fetched, err := c.fetchResult(ctx, token)
		if err != nil {
			return result, false, err
		}
		result = fetched

		if result.Status.ID > 2 {
			return result, true, nil
		}
	}

	return result, false, nil
}

func (c *Judge0Client) fetchResult(ctx context.Context, token string) (judge0Result, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/submissions/" + token + "?base64_encoded=true"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return judge0Result{}, err
	}
	c.setAuthHeaders(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return judge0Result{}, fmt.Errorf("fetch judge result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return judge0Result{}, fmt.Errorf("judge returned status %d: %s", resp.StatusCode, string(snippet))
	}

	var result judge0Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return judge0Result{}, fmt.Errorf("decode judge result: %w", err)
	}

	return result, nil
}

func (c *Judge0Client) setAuthHeaders(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.cfg.APIKey)
		req.Header.Set("X-RapidAPI-Host", c.cfg.APIHost)
	}
}

func verdictFromResult(result judge0Result) Verdict {
	status := StatusFromJudge0(result.Status.ID)

	executionMs := 0.0
	if result.Time != "" {
		if seconds, err := strconv.ParseFloat(result.Time, 64); err == nil {
			executionMs = seconds * 1000
		}
	}

	return Verdict{
		Passed:          status == StatusAccepted,
		Status:          status,
		Output:          decodeBase64(result.Stdout),
		Error:           decodeBase64(result.Stderr),
		ExecutionTimeMs: executionMs,
		MemoryKB:        result.Memory,
	}
}

func decodeBase64(encoded string) string {
	if encoded == "" {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return encoded
	}
	return string(decoded)
}
