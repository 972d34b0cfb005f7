package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/luanmachadops/smartclass-telemetry/internal/config"
	"github.com/luanmachadops/smartclass-telemetry/internal/domain"
)

// Sink delivers telemetry to the backing store over HTTP. Event batches go
// to POST {endpoint}/events, finished sessions to POST {endpoint}/sessions,
// both as JSON (gzip-compressed when enabled).
type Sink struct {
	client   *http.Client
	endpoint string
	apiKey   string
	gzip     bool
	log      *zap.Logger
}

// NewSink creates a new HTTP sink
func NewSink(cfg config.Sink, log *zap.Logger) (*Sink, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("http sink requires SINK_ENDPOINT")
	}

	return &Sink{
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		gzip:     cfg.GzipEnabled,
		log:      log,
	}, nil
}

// WriteEvents delivers a batch of events
func (s *Sink) WriteEvents(ctx context.Context, events []*domain.AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}
	return s.post(ctx, s.endpoint+"/events", events)
}

// WriteSession delivers a finished session record
func (s *Sink) WriteSession(ctx context.Context, session *domain.UserSession) error {
	return s.post(ctx, s.endpoint+"/sessions", session)
}

func (s *Sink) post(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	var buf bytes.Buffer
	if s.gzip {
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(body); err != nil {
			return fmt.Errorf("failed to compress payload: %w", err)
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to finish compressing payload: %w", err)
		}
	} else {
		buf.Write(body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send payload: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("backing store rejected payload: status %d", resp.StatusCode)
	}

	return nil
}
