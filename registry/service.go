package registry

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
	registrytypes "github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	log "github.com/sirupsen/logrus"

	"github.com/ginthi/scraper-deploy/common"
)

// Functions run on x86_64, whatever the build host is.
const targetPlatform = "linux/amd64"

func NewEngineClient() (EngineApi, error) {
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

func TokenClient(cfg aws.Config) *ecr.Client {
	return ecr.NewFromConfig(cfg)
}

// BuildImage tars the build context and builds the local image tag.
func (wrapper ServiceWrapper) BuildImage(ctx context.Context, deployParams common.DeployParams) error {
	buildContext, err := tarBuildContext(deployParams.ContextDir)
	if err != nil {
		return fmt.Errorf("taring the build context: %w", err)
	}
	log.WithFields(log.Fields{
		"image":    deployParams.LocalImageRef(),
		"context":  deployParams.ContextDir,
		"platform": targetPlatform,
	}).Info("Building image")
	resp, err := wrapper.Engine.ImageBuild(ctx, buildContext, build.ImageBuildOptions{
		Dockerfile: deployParams.Dockerfile,
		Tags:       []string{deployParams.LocalImageRef()},
		Platform:   targetPlatform,
		Remove:     true,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// The engine reports build failures in-band; the stream decoder
	// surfaces them as an error.
	return jsonmessage.DisplayJSONMessagesStream(resp.Body, os.Stderr, 0, false, nil)
}

// Login exchanges an ECR authorization token for the encoded auth config the
// engine expects on push.
func (wrapper ServiceWrapper) Login(ctx context.Context) (string, error) {
	resp, err := wrapper.Tokens.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return "", err
	}
	if len(resp.AuthorizationData) == 0 {
		return "", fmt.Errorf("registry returned no authorization data")
	}
	token := aws.ToString(resp.AuthorizationData[0].AuthorizationToken)
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("decoding authorization token: %w", err)
	}
	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", fmt.Errorf("authorization token is not user:password")
	}
	log.WithField("endpoint", aws.ToString(resp.AuthorizationData[0].ProxyEndpoint)).Info("Logged in to registry")
	return registrytypes.EncodeAuthConfig(registrytypes.AuthConfig{
		Username:      username,
		Password:      password,
		ServerAddress: aws.ToString(resp.AuthorizationData[0].ProxyEndpoint),
	})
}

// PushImage retags the local image against the registry and pushes it.
func (wrapper ServiceWrapper) PushImage(ctx context.Context, deployParams common.DeployParams, encodedAuth string) error {
	if err := wrapper.Engine.ImageTag(ctx, deployParams.LocalImageRef(), deployParams.RemoteImageRef()); err != nil {
		return err
	}
	log.WithField("image", deployParams.RemoteImageRef()).Info("Pushing image")
	pushResponse, err := wrapper.Engine.ImagePush(ctx, deployParams.RemoteImageRef(), image.PushOptions{
		RegistryAuth: encodedAuth,
	})
	if err != nil {
		return err
	}
	defer pushResponse.Close()
	return jsonmessage.DisplayJSONMessagesStream(pushResponse, os.Stderr, 0, false, nil)
}
