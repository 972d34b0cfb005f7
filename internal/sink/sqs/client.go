package sqs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/luanmachadops/smartclass-telemetry/internal/config"
	"github.com/luanmachadops/smartclass-telemetry/internal/domain"
)

// sendMessageBatch caps entries at 10 per call
const maxBatchEntries = 10

// Sink delivers telemetry by publishing messages to an SQS queue. Each
// event becomes one message; a finished session becomes a single message
// tagged with a record_type attribute.
type Sink struct {
	client *awssqs.Client
	config config.SQS
	log    *zap.Logger
}

// NewSink creates a new SQS sink
func NewSink(ctx context.Context, cfg config.SQS, log *zap.Logger) (*Sink, error) {
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("sqs sink requires SQS_QUEUE_URL")
	}

	configOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	var clientOpts []func(*awssqs.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *awssqs.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awssqs.NewFromConfig(awsCfg, clientOpts...)

	log.Info("SQS sink created",
		zap.String("region", cfg.Region),
		zap.String("queue_url", cfg.QueueURL))

	return &Sink{client: client, config: cfg, log: log}, nil
}

// WriteEvents publishes a batch of events. The whole batch fails if any
// chunk fails or any entry comes back in the Failed set.
func (s *Sink) WriteEvents(ctx context.Context, events []*domain.AnalyticsEvent) error {
	for start := 0; start < len(events); start += maxBatchEntries {
		end := start + maxBatchEntries
		if end > len(events) {
			end = len(events)
		}

		entries := make([]types.SendMessageBatchRequestEntry, 0, end-start)
		for i, event := range events[start:end] {
			body, err := json.Marshal(event)
			if err != nil {
				return fmt.Errorf("failed to marshal event %s: %w", event.EventID, err)
			}

			entries = append(entries, types.SendMessageBatchRequestEntry{
				Id:          aws.String(strconv.Itoa(i)),
				MessageBody: aws.String(string(body)),
				MessageAttributes: map[string]types.MessageAttributeValue{
					"record_type": {
						DataType:    aws.String("String"),
						StringValue: aws.String("event"),
					},
					"category": {
						DataType:    aws.String("String"),
						StringValue: aws.String(string(event.Category)),
					},
				},
			})
		}

		out, err := s.client.SendMessageBatch(ctx, &awssqs.SendMessageBatchInput{
			QueueUrl: aws.String(s.config.QueueURL),
			Entries:  entries,
		})
		if err != nil {
			return fmt.Errorf("failed to send message batch to SQS: %w", err)
		}
		if len(out.Failed) > 0 {
			return fmt.Errorf("SQS rejected %d of %d messages in batch", len(out.Failed), len(entries))
		}
	}

	return nil
}

// WriteSession publishes a finished session record
func (s *Sink) WriteSession(ctx context.Context, session *domain.UserSession) error {
	body, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", session.SessionID, err)
	}

	_, err = s.client.SendMessage(ctx, &awssqs.SendMessageInput{
		QueueUrl:    aws.String(s.config.QueueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"record_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String("session"),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send session to SQS: %w", err)
	}

	s.log.Info("Session published to SQS",
		zap.String("session_id", session.SessionID))

	return nil
}
