package awsauth

import (
	"context"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	log "github.com/sirupsen/logrus"

	"github.com/ginthi/scraper-deploy/common"
)

// RequireCredentials rejects a run before any AWS call is made. The access
// key pair must be present; the session token stays optional.
func RequireCredentials() error {
	var errorMessage strings.Builder
	if accessKey := os.Getenv("AWS_ACCESS_KEY_ID"); common.TrimAndCheckEmptyString(&accessKey) {
		errorMessage.WriteString("AWS_ACCESS_KEY_ID cannot be null.\n")
	}
	if secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY"); common.TrimAndCheckEmptyString(&secretKey) {
		errorMessage.WriteString("AWS_SECRET_ACCESS_KEY cannot be null.\n")
	}
	if len(errorMessage.String()) > 0 {
		return &common.InputError{
			Message: errorMessage.String(),
		}
	}
	return nil
}

// Config builds the shared client configuration. Explicit credentials from
// the environment win over the default chain so a CI runner does not pick up
// an instance profile by accident.
func Config(ctx context.Context, region string) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if !common.TrimAndCheckEmptyString(&accessKey) && !common.TrimAndCheckEmptyString(&secretKey) {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, os.Getenv("AWS_SESSION_TOKEN")),
		))
	}
	return config.LoadDefaultConfig(ctx, opts...)
}

func Client(cfg aws.Config) *sts.Client {
	return sts.NewFromConfig(cfg)
}

// VerifyIdentity makes a cheap call with the loaded credentials so a bad key
// pair fails here instead of halfway through a push.
func (wrapper ServiceWrapper) VerifyIdentity(ctx context.Context) (string, error) {
	resp, err := wrapper.Client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", err
	}
	account := aws.ToString(resp.Account)
	log.WithFields(log.Fields{
		"account": account,
		"arn":     aws.ToString(resp.Arn),
	}).Info("Using AWS identity")
	return account, nil
}
