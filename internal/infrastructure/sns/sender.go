package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/scanpay-verify/internal/config"
	"github.com/scanpay-verify/internal/domain"
	"github.com/scanpay-verify/internal/pkg/logging"
)

// EventPublisher publishes payment events to an SNS topic.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.PaymentEvent)
}

// PublishAPI is the subset of the SNS client the publisher calls.
type PublishAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type publisher struct {
	client   PublishAPI
	topicARN string
}

// Nop discards every event; used when no topic is configured.
type Nop struct{}

func (Nop) Publish(context.Context, domain.PaymentEvent) {}

// NewPublisher returns an SNS-backed publisher, or Nop when cfg has no topic.
func NewPublisher(cfg *config.Config) (EventPublisher, error) {
	if cfg.SNSTopicARN == "" {
		return Nop{}, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.SNSRegion)}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, err
	}
	clientOpts := []func(*sns.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return NewPublisherWithClient(sns.NewFromConfig(awsCfg, clientOpts...), cfg.SNSTopicARN), nil
}

func NewPublisherWithClient(client PublishAPI, topicARN string) EventPublisher {
	return &publisher{client: client, topicARN: topicARN}
}

// Publish sends ev as JSON. Failures are logged and never returned.
func (p *publisher) Publish(ctx context.Context, ev domain.PaymentEvent) {
	if err := p.publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("payment event publish failed", "type", ev.Type, "order_id", ev.OrderID, "error", err)
	}
}

func (p *publisher) publish(ctx context.Context, ev domain.PaymentEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		Subject:  aws.String(ev.Type),
	})
	if err == nil {
		slog.Debug("payment event published", "type", ev.Type, "order_id", ev.OrderID)
	}
	return err
}
