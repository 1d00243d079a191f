// Package queue publishes upgrade opportunities to SQS for the sales and
// lifecycle tooling that consumes them.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"licensegate/internal/config"
	"licensegate/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// UpgradeMessage is the queue payload. MessageID lets consumers deduplicate
// redeliveries.
type UpgradeMessage struct {
	MessageID string `json:"message_id"`
	types.UpgradeOpportunity
}

// UpgradeNotifier sends one message per upgrade opportunity.
type UpgradeNotifier struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewUpgradeNotifier returns nil when no queue URL is configured; callers
// treat a nil notifier as "not wired".
func NewUpgradeNotifier(client SQSSender, cfg config.QueueConfig, logger *slog.Logger) *UpgradeNotifier {
	if cfg.UpgradeOpportunitiesURL == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UpgradeNotifier{
		client:   client,
		queueURL: cfg.UpgradeOpportunitiesURL,
		logger:   logger,
	}
}

// NotifyUpgradeOpportunity serializes opp and sends it to the queue.
func (n *UpgradeNotifier) NotifyUpgradeOpportunity(ctx context.Context, opp types.UpgradeOpportunity) error {
	msg := UpgradeMessage{
		MessageID:          uuid.New().String(),
		UpgradeOpportunity: opp,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal UpgradeMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"recommended_tier": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(opp.RecommendedTier)),
			},
		},
	}
	if _, err := n.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send UpgradeMessage to %s: %w", n.queueURL, err)
	}

	n.logger.InfoContext(ctx, "upgrade opportunity published",
		"message_id", msg.MessageID,
		"tenant_id", opp.TenantID,
		"current_plan", string(opp.CurrentPlan),
		"recommended_tier", string(opp.RecommendedTier),
		"reason", opp.Reason,
	)
	return nil
}
