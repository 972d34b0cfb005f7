package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Service holds agent-level settings
type Service struct {
	Environment string `envconfig:"SERVICE_ENVIRONMENT" default:"development"`
	APIPort     string `envconfig:"SERVICE_API_PORT" default:"8080"`
	AppVersion  string `envconfig:"SERVICE_APP_VERSION" default:"dev"`
}

// Pipeline holds collector and flusher settings
type Pipeline struct {
	Enabled          bool    `envconfig:"PIPELINE_ENABLED" default:"true"`
	SampleRate       float64 `envconfig:"PIPELINE_SAMPLE_RATE" default:"1.0"`
	BatchSize        int     `envconfig:"PIPELINE_BATCH_SIZE" default:"50"`
	FlushIntervalSec int     `envconfig:"PIPELINE_FLUSH_INTERVAL_SEC" default:"30"`
	RealtimeMode     bool    `envconfig:"PIPELINE_REALTIME_MODE" default:"false"`
	OfflineMaxEvents int     `envconfig:"PIPELINE_OFFLINE_MAX_EVENTS" default:"100"`
	DefaultCurrency  string  `envconfig:"PIPELINE_DEFAULT_CURRENCY" default:"BRL"`
}

// Store holds local durable storage settings
type Store struct {
	Path string `envconfig:"STORE_PATH" default:"telemetry.db"`
}

// Sink selects and configures the delivery backend
type Sink struct {
	Kind           string `envconfig:"SINK_KIND" default:"http"`
	Endpoint       string `envconfig:"SINK_ENDPOINT"`
	APIKey         string `envconfig:"SINK_API_KEY"`
	TimeoutSec     int    `envconfig:"SINK_TIMEOUT_SEC" default:"10"`
	GzipEnabled    bool   `envconfig:"SINK_GZIP_ENABLED" default:"true"`
	DetachedMaxSec int    `envconfig:"SINK_DETACHED_MAX_SEC" default:"2"`
}

// SQS configures the SQS sink
type SQS struct {
	Endpoint  string `envconfig:"SQS_ENDPOINT"`
	QueueURL  string `envconfig:"SQS_QUEUE_URL"`
	Region    string `envconfig:"SQS_REGION" default:"us-east-1"`
	AccessKey string `envconfig:"SQS_ACCESS_KEY"`
	SecretKey string `envconfig:"SQS_SECRET_KEY"`
}

// ClickHouse configures the direct ClickHouse sink
type ClickHouse struct {
	Host            string `envconfig:"CLICKHOUSE_HOST"`
	Port            string `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	Database        string `envconfig:"CLICKHOUSE_DB" default:"telemetry"`
	User            string `envconfig:"CLICKHOUSE_USER" default:""`
	Password        string `envconfig:"CLICKHOUSE_PASSWORD" default:""`
	UseTLS          bool   `envconfig:"CLICKHOUSE_USE_TLS" default:"false"`
	MaxOpenConns    int    `envconfig:"CLICKHOUSE_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int    `envconfig:"CLICKHOUSE_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime int    `envconfig:"CLICKHOUSE_CONN_MAX_LIFETIME_SEC" default:"3600"`
}

// Health holds monitor settings
type Health struct {
	IntervalSec          int    `envconfig:"HEALTH_INTERVAL_SEC" default:"30"`
	ProbeTimeoutSec      int    `envconfig:"HEALTH_PROBE_TIMEOUT_SEC" default:"5"`
	DegradedThresholdMs  int    `envconfig:"HEALTH_DEGRADED_THRESHOLD_MS" default:"1000"`
	AggregateThresholdMs int    `envconfig:"HEALTH_AGGREGATE_THRESHOLD_MS" default:"3000"`
	DatabaseURL          string `envconfig:"HEALTH_DATABASE_URL"`
	AuthURL              string `envconfig:"HEALTH_AUTH_URL"`
	RedisURL             string `envconfig:"HEALTH_REDIS_URL"`
	StorageBucket        string `envconfig:"HEALTH_STORAGE_BUCKET"`
	StorageRegion        string `envconfig:"HEALTH_STORAGE_REGION" default:"us-east-1"`
}

// Session holds session tracker settings
type Session struct {
	Referrer    string `envconfig:"SESSION_REFERRER"`
	UTMSource   string `envconfig:"SESSION_UTM_SOURCE"`
	UTMMedium   string `envconfig:"SESSION_UTM_MEDIUM"`
	UTMCampaign string `envconfig:"SESSION_UTM_CAMPAIGN"`
	UTMTerm     string `envconfig:"SESSION_UTM_TERM"`
	UTMContent  string `envconfig:"SESSION_UTM_CONTENT"`
}

type Config struct {
	Service    Service
	Pipeline   Pipeline
	Store      Store
	Sink       Sink
	SQS        SQS
	ClickHouse ClickHouse
	Health     Health
	Session    Session
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
