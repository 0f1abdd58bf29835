// Package ner wraps the external Tomita named-entity recognizer. Each call is
// a blocking out-of-process invocation, so results are optionally cached in
// redis keyed by probe text.
package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bankbot/internal/cache"
	"bankbot/internal/metrics"
)

const defaultResultTTL = 10 * time.Minute

// ToolError reports a failure of the external recognizer process itself,
// distinct from the recognizer finding nothing.
type ToolError struct {
	Stage string // "start", "run", "decode"
	Err   error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tomita %s: %v", e.Stage, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Config holds the recognizer bundle location.
type Config struct {
	BinaryPath string
	ConfigPath string
	WorkDir    string
}

// Tomita invokes the external recognizer binary with a grammar bundle.
type Tomita struct {
	cfg       Config
	runner    runner
	cache     *cache.Redis
	metrics   *metrics.Metrics
	logger    *slog.Logger
	resultTTL time.Duration
}

// runner abstracts process execution for tests.
type runner interface {
	run(ctx context.Context, cfg Config, input string) ([]byte, error)
}

// New creates a recognizer handle. cache and metrics may be nil.
func New(cfg Config, redis *cache.Redis, m *metrics.Metrics, logger *slog.Logger) *Tomita {
	return &Tomita{
		cfg:       cfg,
		runner:    execRunner{},
		cache:     redis,
		metrics:   m,
		logger:    logger.With("component", "tomita"),
		resultTTL: defaultResultTTL,
	}
}

// GetJSON feeds text to the recognizer and returns its parsed structured
// output. A nil result with nil error means the recognizer found nothing.
func (t *Tomita) GetJSON(ctx context.Context, text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	cacheKey := "tomita:result:" + text
	if t.cache != nil {
		var cached json.RawMessage
		ok, err := t.cache.GetJSON(ctx, cacheKey, &cached)
		if err != nil {
			t.logger.Warn("read tomita cache failed", "error", err)
		} else if ok {
			if len(cached) == 0 || string(cached) == "null" {
				return nil, nil
			}
			return cached, nil
		}
	}

	out, err := t.runner.run(ctx, t.cfg, text)
	if err != nil {
		t.countRequest("error")
		return nil, err
	}

	result, err := extractFacts(out)
	if err != nil {
		t.countRequest("decode_error")
		return nil, &ToolError{Stage: "decode", Err: err}
	}

	if t.cache != nil {
		if cacheErr := t.cache.SetJSON(ctx, cacheKey, result, t.resultTTL); cacheErr != nil {
			t.logger.Warn("set tomita cache failed", "error", cacheErr)
		}
	}

	if result == nil {
		t.countRequest("empty")
	} else {
		t.countRequest("hit")
	}
	return result, nil
}

func (t *Tomita) countRequest(status string) {
	if t.metrics != nil {
		t.metrics.TomitaRequests.WithLabelValues(status).Inc()
	}
}

// extractFacts pulls the JSON document out of recognizer stdout. The binary
// prints diagnostics before the payload, so scan for the first brace.
func extractFacts(out []byte) (json.RawMessage, error) {
	start := bytes.IndexByte(out, '{')
	if start < 0 {
		// No JSON at all means no extracted facts.
		return nil, nil
	}
	payload := bytes.TrimSpace(out[start:])

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("malformed recognizer output: %w", err)
	}
	if len(decoded) == 0 {
		return nil, nil
	}
	return json.RawMessage(payload), nil
}
