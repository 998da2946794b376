// Package telemetry forwards per-trial records off the experiment loop.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/config"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// Sink delivers one payload to a telemetry backend.
type Sink interface {
	Send(ctx context.Context, p models.Payload) error
	Name() string
	Close() error
}

// NewSink builds the sink selected by cfg.Driver.
func NewSink(cfg config.TelemetryConfig) (Sink, error) {
	switch cfg.Driver {
	case "http":
		return NewHTTPSink(cfg.Endpoint, cfg.Timeout), nil
	case "nats":
		return NewNATSSink(cfg.NATSURL, cfg.NATSSubject)
	case "redis":
		return NewRedisSink(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.RedisKeyPrefix), nil
	case "none", "":
		return NopSink{}, nil
	default:
		return nil, fmt.Errorf("unknown telemetry driver %q", cfg.Driver)
	}
}

// HTTPSink POSTs each payload as JSON. The response body is ignored.
type HTTPSink struct {
	endpoint string
	client   *http.Client
}

func NewHTTPSink(endpoint string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

func (s *HTTPSink) Name() string { return "http" }

func (s *HTTPSink) Send(ctx context.Context, p models.Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post telemetry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("telemetry endpoint returned %s", resp.Status)
	}
	return nil
}

func (s *HTTPSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// NATSSink publishes each payload on a core NATS subject.
type NATSSink struct {
	nc      *nats.Conn
	subject string
}

func NewNATSSink(url, subject string) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("rtexp-telemetry"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSSink{nc: nc, subject: subject}, nil
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Send(_ context.Context, p models.Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := s.nc.Publish(s.subject, data); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", s.subject, err)
	}
	return nil
}

func (s *NATSSink) Close() error {
	if s.nc != nil {
		return s.nc.Drain()
	}
	return nil
}

// RedisSink appends each payload to a per-participant list.
type RedisSink struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisSink(opts *redis.Options, prefix string) *RedisSink {
	return &RedisSink{rdb: redis.NewClient(opts), prefix: prefix}
}

func (s *RedisSink) Name() string { return "redis" }

// Key is the list holding a participant's records.
func (s *RedisSink) Key(participantID string) string {
	return s.prefix + participantID
}

func (s *RedisSink) Send(ctx context.Context, p models.Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return s.rdb.RPush(ctx, s.Key(p.ParticipantID), data).Err()
}

func (s *RedisSink) Close() error { return s.rdb.Close() }

// NopSink drops every payload.
type NopSink struct{}

func (NopSink) Name() string { return "none" }

func (NopSink) Send(context.Context, models.Payload) error { return nil }

func (NopSink) Close() error { return nil }
