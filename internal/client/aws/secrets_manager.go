package aws

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"

	"github.com/cyphera/cyphera-wallet/internal/logger"
)

// SecretsAPI is the subset of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerClient wraps the AWS Secrets Manager client.
type SecretsManagerClient struct {
	svc SecretsAPI
}

// NewSecretsManagerClient loads credentials from the default AWS chain.
func NewSecretsManagerClient(ctx context.Context) (*SecretsManagerClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSecretsManagerClientWithAPI(secretsmanager.NewFromConfig(cfg)), nil
}

// NewSecretsManagerClientWithAPI wraps an existing API implementation.
func NewSecretsManagerClientWithAPI(svc SecretsAPI) *SecretsManagerClient {
	return &SecretsManagerClient{svc: svc}
}

func (c *SecretsManagerClient) fetch(ctx context.Context, secretArn string) (string, error) {
	result, err := c.svc.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretArn),
	})
	if err != nil {
		return "", err
	}
	if result.SecretString == nil || *result.SecretString == "" {
		return "", fmt.Errorf("secret %s has no string value", secretArn)
	}
	return *result.SecretString, nil
}

// GetSecretString resolves a secret named by two environment variables. When
// secretArnEnvVar is set its ARN is read from Secrets Manager; if that is unset
// or the read fails, the literal value of fallbackEnvVar is used instead.
func (c *SecretsManagerClient) GetSecretString(ctx context.Context, secretArnEnvVar string, fallbackEnvVar string) (string, error) {
	log := logger.Named("secrets").With(zap.String("arn_env", secretArnEnvVar), zap.String("fallback_env", fallbackEnvVar))

	if arn := os.Getenv(secretArnEnvVar); arn != "" {
		value, err := c.fetch(ctx, arn)
		if err == nil {
			log.Info("Loaded secret from Secrets Manager")
			return value, nil
		}
		log.Warn("Secrets Manager read failed, trying fallback variable", zap.Error(err))
	}

	if value := os.Getenv(fallbackEnvVar); value != "" {
		log.Info("Loaded secret from environment")
		return value, nil
	}
	return "", fmt.Errorf("secret not found: neither %s nor %s is usable", secretArnEnvVar, fallbackEnvVar)
}
