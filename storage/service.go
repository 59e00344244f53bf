package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	log "github.com/sirupsen/logrus"
)

func Client(cfg aws.Config) *s3.Client {
	return s3.NewFromConfig(cfg)
}

// EnsureBucketExists verifies the artifact bucket handed to the function is
// reachable with the active credentials before anything gets deployed.
func (wrapper ServiceWrapper) EnsureBucketExists(ctx context.Context, name string) error {
	_, err := wrapper.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("artifact bucket %q is not reachable: %w", name, err)
	}
	log.WithField("bucket", name).Info("Artifact bucket reachable")
	return nil
}
