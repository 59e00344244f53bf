package registry

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
)

// EngineApi is the slice of the container engine client the deployer uses.
type EngineApi interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error)
	ImageTag(ctx context.Context, source, target string) error
	ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error)
}

type TokenApi interface {
	GetAuthorizationToken(ctx context.Context, params *ecr.GetAuthorizationTokenInput, optFns ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error)
}

type ServiceWrapper struct {
	Engine EngineApi
	Tokens TokenApi
}
