package awsauth

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginthi/scraper-deploy/common"
)

type mockIdentityApi struct {
	err error
}

func (m *mockIdentityApi) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String("123456789012"),
		Arn:     aws.String("arn:aws:iam::123456789012:user/deployer"),
	}, nil
}

func TestRequireCredentials(t *testing.T) {
	t.Run("both present", func(t *testing.T) {
		t.Setenv("AWS_ACCESS_KEY_ID", "AKIAEXAMPLE")
		t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
		assert.NoError(t, RequireCredentials())
	})

	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("AWS_ACCESS_KEY_ID", "AKIAEXAMPLE")
		t.Setenv("AWS_SECRET_ACCESS_KEY", "")
		err := RequireCredentials()
		var inputErr *common.InputError
		assert.ErrorAs(t, err, &inputErr)
		assert.Contains(t, err.Error(), "AWS_SECRET_ACCESS_KEY")
	})

	t.Run("both missing", func(t *testing.T) {
		t.Setenv("AWS_ACCESS_KEY_ID", "")
		t.Setenv("AWS_SECRET_ACCESS_KEY", "")
		err := RequireCredentials()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "AWS_ACCESS_KEY_ID")
		assert.Contains(t, err.Error(), "AWS_SECRET_ACCESS_KEY")
	})
}

func TestConfigUsesExplicitCredentials(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIAEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_SESSION_TOKEN", "token")

	cfg, err := Config(context.TODO(), "ap-south-1")
	require.NoError(t, err)
	assert.Equal(t, "ap-south-1", cfg.Region)

	creds, err := cfg.Credentials.Retrieve(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, "AKIAEXAMPLE", creds.AccessKeyID)
	assert.Equal(t, "token", creds.SessionToken)
}

func TestVerifyIdentity(t *testing.T) {
	wrapper := ServiceWrapper{Client: &mockIdentityApi{}}
	account, err := wrapper.VerifyIdentity(context.TODO())
	assert.NoError(t, err)
	assert.Equal(t, "123456789012", account)
}

func TestVerifyIdentityFails(t *testing.T) {
	wrapper := ServiceWrapper{Client: &mockIdentityApi{err: errors.New("invalid client token")}}
	_, err := wrapper.VerifyIdentity(context.TODO())
	assert.Error(t, err)
}
