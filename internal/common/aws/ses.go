// internal/common/aws/ses.go
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

const alertSubject = "Unauthorized lookup attempt"

func alertBody(operatorID int64, text string) string {
	return fmt.Sprintf("Operator %d is not in the permission directory.\nMessage: %q", operatorID, text)
}

// SESSender is the subset of *ses.Client the alerter calls.
type SESSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESAlerter mails unauthorized-access reports to an administrator.
type SESAlerter struct {
	client SESSender
	from   string
	to     string
}

func NewSESClient(ctx context.Context, region string) (*ses.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return ses.NewFromConfig(cfg), nil
}

func NewSESAlerter(client SESSender, from, to string) *SESAlerter {
	return &SESAlerter{client: client, from: from, to: to}
}

func (a *SESAlerter) ReportUnauthorized(ctx context.Context, operatorID int64, text string) error {
	_, err := a.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      awssdk.String(a.from),
		Destination: &types.Destination{ToAddresses: []string{a.to}},
		Message: &types.Message{
			Subject: &types.Content{Data: awssdk.String(alertSubject), Charset: awssdk.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: awssdk.String(alertBody(operatorID, text)), Charset: awssdk.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send unauthorized alert: %w", err)
	}
	return nil
}
