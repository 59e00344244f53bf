package lambda

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"
	log "github.com/sirupsen/logrus"

	"github.com/ginthi/scraper-deploy/common"
)

var configUpdateRetryInterval = 2 * time.Second

func Client(cfg aws.Config) *lambda.Client {
	return lambda.NewFromConfig(cfg)
}

// GetFunctionDetails probes for the function. A missing function is not an
// error here; it selects the create branch upstream.
func (wrapper ServiceWrapper) GetFunctionDetails(ctx context.Context, name string) (*lambda.GetFunctionOutput, error) {
	resp, err := wrapper.Client.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: &name,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.(type) {
			case *types.ResourceNotFoundException:
				return nil, nil
			}
		}
		return nil, err
	}
	return resp, nil
}

func ValidateInputParams(deployParams common.DeployParams, createFlag bool) error {
	var errorMessage strings.Builder
	if common.TrimAndCheckEmptyString(&deployParams.FunctionName) {
		errorMessage.WriteString("Function Name cannot be null.\n")
	}
	if common.TrimAndCheckEmptyString(&deployParams.RegistryURI) {
		errorMessage.WriteString("Registry URI cannot be null.\n")
	}
	if common.TrimAndCheckEmptyString(&deployParams.ImageTag) {
		errorMessage.WriteString("Image tag cannot be null.\n")
	}
	if createFlag {
		if common.TrimAndCheckEmptyString(&deployParams.RoleArn) && !deployParams.AutogenerateRole {
			errorMessage.WriteString("Role ARN must be supplied to create the function.\n")
		}
	}
	if len(errorMessage.String()) > 0 {
		return &common.InputError{
			Message: errorMessage.String(),
		}
	}
	return nil
}

// New creates the function from the pushed container image.
func (wrapper ServiceWrapper) New(ctx context.Context, deployParams common.DeployParams, imageURI string, roleArn string) (*lambda.CreateFunctionOutput, error) {
	memory := int32(deployParams.Memory)
	timeout := int32(deployParams.Timeout)
	functionInput := &lambda.CreateFunctionInput{
		FunctionName: &deployParams.FunctionName,
		Role:         &roleArn,
		PackageType:  types.PackageTypeImage,
		Code: &types.FunctionCode{
			ImageUri: &imageURI,
		},
		Architectures: []types.Architecture{types.ArchitectureX8664},
	}
	if memory > 0 {
		functionInput.MemorySize = &memory
	}
	if timeout > 0 {
		functionInput.Timeout = &timeout
	}
	log.WithFields(log.Fields{
		"function": deployParams.FunctionName,
		"image":    imageURI,
	}).Info("Creating function")
	output, err := wrapper.Client.CreateFunction(ctx, functionInput)
	if err != nil {
		return nil, err
	}
	return output, nil
}

// UpdateCode points the existing function at the pushed image.
func (wrapper ServiceWrapper) UpdateCode(ctx context.Context, name string, imageURI string) error {
	log.WithFields(log.Fields{
		"function": name,
		"image":    imageURI,
	}).Info("Updating function code")
	_, err := wrapper.Client.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
		FunctionName: &name,
		ImageUri:     &imageURI,
	})
	return err
}

// WaitActive blocks until a freshly created function leaves Pending.
func (wrapper ServiceWrapper) WaitActive(ctx context.Context, name string, maxWait time.Duration) error {
	waiter := lambda.NewFunctionActiveV2Waiter(wrapper.Client)
	return waiter.Wait(ctx, &lambda.GetFunctionInput{FunctionName: &name}, maxWait)
}

// WaitUpdated blocks until the last code or configuration update settles.
func (wrapper ServiceWrapper) WaitUpdated(ctx context.Context, name string, maxWait time.Duration) error {
	waiter := lambda.NewFunctionUpdatedV2Waiter(wrapper.Client)
	return waiter.Wait(ctx, &lambda.GetFunctionInput{FunctionName: &name}, maxWait)
}

// UpdateEnvironment pushes the variables into the function configuration.
// A configuration update racing the code update yields ResourceConflict, so
// keep retrying that case until the context gives up.
func (wrapper ServiceWrapper) UpdateEnvironment(ctx context.Context, name string, vars map[string]string) error {
	configInput := &lambda.UpdateFunctionConfigurationInput{
		FunctionName: &name,
		Environment: &types.Environment{
			Variables: vars,
		},
	}
	for {
		_, err := wrapper.Client.UpdateFunctionConfiguration(ctx, configInput)
		if err == nil {
			log.WithField("function", name).Info("Function configuration updated")
			return nil
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.(type) {
			case *types.ResourceConflictException:
				log.WithField("function", name).Warn("Update still in progress, retrying configuration update")
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(configUpdateRetryInterval):
				}
				continue
			}
		}
		return err
	}
}

// Delete removes the function and returns its last known details so the
// caller can tear down the execution role as well.
func (wrapper ServiceWrapper) Delete(ctx context.Context, name string) (*lambda.GetFunctionOutput, error) {
	functionDetails, err := wrapper.Client.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: &name,
	})
	if err != nil {
		log.WithField("function", name).WithError(err).Error("Not able to delete the function")
		return nil, err
	}
	_, err = wrapper.Client.DeleteFunction(ctx, &lambda.DeleteFunctionInput{
		FunctionName: &name,
	})
	if err != nil {
		log.WithField("function", name).WithError(err).Error("Not able to delete the function")
		return nil, err
	}
	log.WithField("function", name).Info("Function deleted")
	return functionDetails, nil
}
