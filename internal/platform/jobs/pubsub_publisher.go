package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
)

// ReportEventMessage describes a completed attribution report run.
type ReportEventMessage struct {
	RunID         string    `json:"run_id"`
	UserID        string    `json:"user_id"`
	AdAccountID   string    `json:"fb_ad_account_id"`
	ReportDate    string    `json:"report_date"`
	ReportID      string    `json:"report_id"`
	CampaignCount int       `json:"campaign_count"`
	AdsetCount    int       `json:"adset_count"`
	AdCount       int       `json:"ad_count"`
	CustomerCount int       `json:"customer_count"`
	CompletedAt   time.Time `json:"completed_at"`
}

// PubSubReportPublisher publishes report lifecycle events to a Pub/Sub topic.
type PubSubReportPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubReportPublisher constructs a Pub/Sub backed report event publisher.
func NewPubSubReportPublisher(topic *pubsub.Topic) (*PubSubReportPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub report publisher: topic is required")
	}
	return &PubSubReportPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishReportCompleted enqueues a report completion message on the configured topic.
func (p *PubSubReportPublisher) PublishReportCompleted(ctx context.Context, message ReportEventMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub report publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal report event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "runId", message.RunID)
	setAttr(attrs, "userId", message.UserID)
	setAttr(attrs, "adAccountId", message.AdAccountID)
	setAttr(attrs, "reportDate", message.ReportDate)
	setAttr(attrs, "reportId", message.ReportID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish report event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
