package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// ParameterStore is the subset of the SSM client used to read secrets.
type ParameterStore interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// NewSSMClient builds an SSM client from the default AWS configuration chain.
func NewSSMClient(ctx context.Context) (*ssm.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return ssm.NewFromConfig(awsCfg), nil
}

// ApplySecrets overwrites secret values with SecureString parameters found
// under cfg.SSMPrefix. Parameters that do not exist leave the current value.
func ApplySecrets(ctx context.Context, cfg *Config, store ParameterStore) error {
	prefix := strings.TrimRight(cfg.SSMPrefix, "/")
	secrets := []struct {
		name   string
		target *string
	}{
		{"identity-secret", &cfg.IdentitySecret},
		{"smtp-password", &cfg.Mail.SMTPPassword},
	}

	for _, secret := range secrets {
		name := prefix + "/" + secret.name
		value, found, err := getParameter(ctx, store, name)
		if err != nil {
			return err
		}
		if found {
			*secret.target = value
		}
	}
	return nil
}

func getParameter(ctx context.Context, store ParameterStore, name string) (string, bool, error) {
	output, err := store.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get parameter %s: %w", name, err)
	}
	if output.Parameter == nil || output.Parameter.Value == nil || *output.Parameter.Value == "" {
		return "", false, fmt.Errorf("parameter %s is empty", name)
	}
	return *output.Parameter.Value, true, nil
}
