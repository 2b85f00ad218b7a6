package repositories

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// AWSSettings holds the client configuration shared by the AWS-backed
// repositories.
type AWSSettings struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	AssumeRole      string
	Endpoint        string // Optional custom endpoint for LocalStack or testing
}

// awsSettingsFromMap extracts AWS client settings from an inline store config.
func awsSettingsFromMap(configMap map[string]interface{}) AWSSettings {
	var s AWSSettings
	if region, ok := configMap["region"].(string); ok {
		s.Region = region
	}
	if profile, ok := configMap["profile"].(string); ok {
		s.Profile = profile
	}
	if ak, ok := configMap["access_key_id"].(string); ok {
		s.AccessKeyID = ak
	}
	if sk, ok := configMap["secret_access_key"].(string); ok {
		s.SecretAccessKey = sk
	}
	if role, ok := configMap["assume_role"].(string); ok {
		s.AssumeRole = role
	}
	if endpoint, ok := configMap["endpoint"].(string); ok {
		s.Endpoint = endpoint
	}
	return s
}

// loadAWSConfig builds an AWS SDK config from the shared settings.
// SSO-backed profiles resolve through the shared config loader; assumed
// roles are layered on top via STS.
func loadAWSConfig(ctx context.Context, s AWSSettings) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if s.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.Region))
	}
	if s.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(s.Profile))
	}

	// Static credentials are mainly for LocalStack and CI
	if s.AccessKeyID != "" && s.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if s.AssumeRole != "" {
		stsClient := sts.NewFromConfig(cfg)
		cfg.Credentials = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(stsClient, s.AssumeRole))
	}

	return cfg, nil
}
