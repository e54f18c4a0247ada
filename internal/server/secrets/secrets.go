// Package secrets loads deployment secrets from AWS Secrets Manager and
// applies them over the server configuration.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/dmitrijs2005/pgfinder/internal/server/awsx"
	"github.com/dmitrijs2005/pgfinder/internal/server/config"
)

// Values is the JSON document stored in the secret.
type Values struct {
	SecretKey     string `json:"secret_key"`
	DatabaseDSN   string `json:"database_dsn"`
	AdminPassword string `json:"admin_password"`
}

type secretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

var newSecretsClientFromConfig = func(cfg aws.Config, optFns ...func(*secretsmanager.Options)) secretsAPI {
	return secretsmanager.NewFromConfig(cfg, optFns...)
}

// Fetch reads the current version of secretID.
func Fetch(ctx context.Context, settings awsx.Settings, secretID string) (*Values, error) {
	cfg, err := awsx.LoadConfig(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newSecretsClientFromConfig(cfg, func(o *secretsmanager.Options) {
		if ep := settings.BaseEndpoint(); ep != nil {
			o.BaseEndpoint = ep
		}
	})

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return nil, fmt.Errorf("get secret %s: %w", secretID, err)
	}
	if out.SecretString == nil {
		return nil, errors.New("secret has no string value")
	}

	var v Values
	if err := json.Unmarshal([]byte(*out.SecretString), &v); err != nil {
		return nil, fmt.Errorf("decode secret %s: %w", secretID, err)
	}
	return &v, nil
}

// Apply overrides cfg with the non-empty values.
func (v *Values) Apply(cfg *config.Config) {
	if v.SecretKey != "" {
		cfg.SecretKey = v.SecretKey
	}
	if v.DatabaseDSN != "" {
		cfg.DatabaseDSN = v.DatabaseDSN
	}
	if v.AdminPassword != "" {
		cfg.AdminPassword = v.AdminPassword
	}
}

// Load fetches the configured secret and applies it. It is a no-op when
// no secret id is configured.
func Load(ctx context.Context, cfg *config.Config) error {
	if cfg.SecretsManagerSecretID == "" {
		return nil
	}

	v, err := Fetch(ctx, awsx.Settings{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		Endpoint:        cfg.AWSEndpoint,
	}, cfg.SecretsManagerSecretID)
	if err != nil {
		return err
	}

	v.Apply(cfg)
	return nil
}
