package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
)

type mockBucketApi struct {
	err        error
	lastBucket string
}

func (m *mockBucketApi) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	m.lastBucket = *params.Bucket
	if m.err != nil {
		return nil, m.err
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestEnsureBucketExists(t *testing.T) {
	mock := &mockBucketApi{}
	wrapper := ServiceWrapper{Client: mock}

	err := wrapper.EnsureBucketExists(context.TODO(), "scraper-reports")
	assert.NoError(t, err)
	assert.Equal(t, "scraper-reports", mock.lastBucket)
}

func TestEnsureBucketExistsWrapsFailure(t *testing.T) {
	mock := &mockBucketApi{err: errors.New("forbidden")}
	wrapper := ServiceWrapper{Client: mock}

	err := wrapper.EnsureBucketExists(context.TODO(), "scraper-reports")
	assert.ErrorContains(t, err, "scraper-reports")
	assert.ErrorContains(t, err, "forbidden")
}
