// internal/common/aws/sns.go
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSPublisher is the subset of *sns.Client the alerter calls.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSAlerter publishes unauthorized-access reports to a topic.
type SNSAlerter struct {
	client   SNSPublisher
	topicARN string
}

func NewSNSClient(ctx context.Context, region string) (*sns.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return sns.NewFromConfig(cfg), nil
}

func NewSNSAlerter(client SNSPublisher, topicARN string) *SNSAlerter {
	return &SNSAlerter{client: client, topicARN: topicARN}
}

func (a *SNSAlerter) ReportUnauthorized(ctx context.Context, operatorID int64, text string) error {
	_, err := a.client.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(a.topicARN),
		Subject:  awssdk.String(alertSubject),
		Message:  awssdk.String(alertBody(operatorID, text)),
	})
	if err != nil {
		return fmt.Errorf("publish unauthorized alert: %w", err)
	}
	return nil
}
