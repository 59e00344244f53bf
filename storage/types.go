package storage

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type BucketApi interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type ServiceWrapper struct {
	Client BucketApi
}
