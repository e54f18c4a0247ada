// Package mail delivers transactional email: verification and password
// reset messages. Delivery is best-effort and never blocks a request.
package mail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/dmitrijs2005/pgfinder/internal/logging"
	"github.com/dmitrijs2005/pgfinder/internal/server/awsx"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of sending them. Used in
// development where no mail transport is configured.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(log logging.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.log.Info(ctx, "mail (log transport)", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}

type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

var newSESClientFromConfig = func(cfg aws.Config, optFns ...func(*sesv2.Options)) sesAPI {
	return sesv2.NewFromConfig(cfg, optFns...)
}

// SESSender sends through Amazon SES v2.
type SESSender struct {
	client sesAPI
	from   string
}

// NewSESSender builds an SES client from the shared AWS settings.
func NewSESSender(ctx context.Context, settings awsx.Settings, from string) (*SESSender, error) {
	cfg, err := awsx.LoadConfig(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newSESClientFromConfig(cfg, func(o *sesv2.Options) {
		if ep := settings.BaseEndpoint(); ep != nil {
			o.BaseEndpoint = ep
		}
	})

	return &SESSender{client: client, from: from}, nil
}

func (s *SESSender) Send(ctx context.Context, msg Message) error {
	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
