// Package awsx builds AWS SDK configuration shared by the SES mail sender
// and the Secrets Manager loader.
package awsx

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Settings selects region, optional static credentials and an optional
// endpoint override (LocalStack, MinIO-style gateways).
type Settings struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// loadDefaultAWSConfig is a seam for tests.
var loadDefaultAWSConfig = config.LoadDefaultConfig

// LoadConfig resolves an aws.Config. Without static keys the default
// credential chain (env, shared profile, instance role) is used.
func LoadConfig(ctx context.Context, s Settings) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(s.Region),
	}
	if s.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, ""),
		))
	}
	return loadDefaultAWSConfig(ctx, opts...)
}

// BaseEndpoint returns the endpoint override for client options, or nil.
func (s Settings) BaseEndpoint() *string {
	if s.Endpoint == "" {
		return nil
	}
	return aws.String(s.Endpoint)
}
