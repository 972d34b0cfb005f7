package clickhouse

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/luanmachadops/smartclass-telemetry/internal/domain"
)

// Sink writes telemetry straight into ClickHouse, skipping any queue in
// between. Useful for self-hosted deployments of the backing store.
type Sink struct {
	client *Client
	log    *zap.Logger
}

// NewSink creates a new ClickHouse sink
func NewSink(client *Client, log *zap.Logger) *Sink {
	return &Sink{client: client, log: log}
}

// InitSchema creates the events and sessions tables if they don't exist
func (s *Sink) InitSchema(ctx context.Context) error {
	eventsTable := `
	CREATE TABLE IF NOT EXISTS analytics_events (
		event_id String,
		name LowCardinality(String),
		category LowCardinality(String),
		label String,
		value Float64,
		properties String,
		user_id String,
		school_id String,
		session_id String,
		url String,
		path String,
		referrer String,
		user_agent String,
		timestamp Int64,
		received_at DateTime64(3) DEFAULT now64(3)
	) ENGINE = MergeTree()
	ORDER BY (school_id, timestamp, event_id)
	PARTITION BY toYYYYMM(toDateTime(intDiv(timestamp, 1000)))
	SETTINGS index_granularity = 8192
	`

	sessionsTable := `
	CREATE TABLE IF NOT EXISTS user_sessions (
		session_id String,
		user_id String,
		school_id String,
		start_time Int64,
		end_time Int64,
		duration Int64,
		page_views Int64,
		events Int64,
		device String,
		referrer String,
		utm_source String,
		utm_medium String,
		utm_campaign String,
		received_at DateTime64(3) DEFAULT now64(3)
	) ENGINE = MergeTree()
	ORDER BY (school_id, start_time, session_id)
	SETTINGS index_granularity = 8192
	`

	if err := s.client.Conn().Exec(ctx, eventsTable); err != nil {
		return fmt.Errorf("failed to create analytics_events table: %w", err)
	}
	if err := s.client.Conn().Exec(ctx, sessionsTable); err != nil {
		return fmt.Errorf("failed to create user_sessions table: %w", err)
	}

	s.log.Info("ClickHouse telemetry schema initialized")
	return nil
}

// WriteEvents inserts a batch of events
func (s *Sink) WriteEvents(ctx context.Context, events []*domain.AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.client.Conn().PrepareBatch(ctx, "INSERT INTO analytics_events")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, event := range events {
		propsJSON := "{}"
		if len(event.Properties) > 0 {
			props, err := json.Marshal(event.Properties)
			if err != nil {
				return fmt.Errorf("failed to marshal properties for %s: %w", event.EventID, err)
			}
			propsJSON = string(props)
		}

		err := batch.Append(
			event.EventID,
			event.Name,
			string(event.Category),
			event.Label,
			event.Value,
			propsJSON,
			event.UserID,
			event.SchoolID,
			event.SessionID,
			event.URL,
			event.Path,
			event.Referrer,
			event.UserAgent,
			event.Timestamp,
			time.Now(),
		)
		if err != nil {
			return fmt.Errorf("failed to append event to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	return nil
}

// WriteSession inserts a finished session record
func (s *Sink) WriteSession(ctx context.Context, session *domain.UserSession) error {
	device, err := json.Marshal(session.Device)
	if err != nil {
		return fmt.Errorf("failed to marshal device snapshot: %w", err)
	}

	err = s.client.Conn().Exec(ctx, `
		INSERT INTO user_sessions
			(session_id, user_id, school_id, start_time, end_time, duration,
			 page_views, events, device, referrer,
			 utm_source, utm_medium, utm_campaign, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.SessionID,
		session.UserID,
		session.SchoolID,
		session.StartTime,
		session.EndTime,
		session.Duration,
		session.PageViews,
		session.Events,
		string(device),
		session.Referrer,
		session.UTM.Source,
		session.UTM.Medium,
		session.UTM.Campaign,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// Ping checks if the ClickHouse connection is alive
func (s *Sink) Ping(ctx context.Context) error {
	return s.client.Conn().Ping(ctx)
}
