package iam

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/smithy-go"
	log "github.com/sirupsen/logrus"
)

// BasicExecutionPolicyArn grants the CloudWatch Logs permissions every
// function needs; scraper functions carry no custom inline policy.
const BasicExecutionPolicyArn = "arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"

func Client(cfg aws.Config) *iam.Client {
	return iam.NewFromConfig(cfg)
}

func lambdaTrustPolicy() PolicyDocument {
	return PolicyDocument{
		Version: "2012-10-17",
		Statement: []PolicyStatement{{
			Effect:    "Allow",
			Principal: map[string]string{"Service": "lambda.amazonaws.com"},
			Action:    []string{"sts:AssumeRole"},
		}},
	}
}

// ExecutionRoleName derives the autogenerated role name for a function.
func ExecutionRoleName(functionName string) string {
	return functionName + "-execution-role"
}

// RoleNameFromArn extracts the role name from a role ARN.
func RoleNameFromArn(arn string) string {
	parts := strings.Split(arn, "/")
	return parts[len(parts)-1]
}

// CheckRoleExists resolves the role ARN. Only a missing role reports nil;
// lookup failures like AccessDenied must not trigger a create attempt.
func (wrapper ServiceWrapper) CheckRoleExists(ctx context.Context, roleName string) (*string, error) {
	result, err := wrapper.Client.GetRole(ctx, &iam.GetRoleInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.(type) {
			case *types.NoSuchEntityException:
				return nil, nil
			}
		}
		return nil, err
	}
	return result.Role.Arn, nil
}

func (wrapper ServiceWrapper) NewRole(ctx context.Context, roleName string, trustPolicy PolicyDocument) (*string, error) {
	policyBytes, err := json.Marshal(trustPolicy)
	if err != nil {
		return nil, err
	}
	result, err := wrapper.Client.CreateRole(ctx, &iam.CreateRoleInput{
		AssumeRolePolicyDocument: aws.String(string(policyBytes)),
		RoleName:                 aws.String(roleName),
	})
	if err != nil {
		return nil, err
	}
	return result.Role.Arn, nil
}

func (wrapper ServiceWrapper) AttachRolePolicy(ctx context.Context, policyArn string, roleName string) error {
	_, err := wrapper.Client.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		PolicyArn: aws.String(policyArn),
		RoleName:  aws.String(roleName),
	})
	return err
}

// EnsureExecutionRole returns the ARN of the function's execution role,
// creating it with the Lambda trust policy and the basic execution policy
// when it does not exist yet.
func (wrapper ServiceWrapper) EnsureExecutionRole(ctx context.Context, functionName string) (*string, error) {
	roleName := ExecutionRoleName(functionName)
	roleArn, err := wrapper.CheckRoleExists(ctx, roleName)
	if err != nil {
		return nil, err
	}
	if roleArn != nil {
		log.WithField("role", roleName).Info("Reusing existing execution role")
		return roleArn, nil
	}
	log.WithField("role", roleName).Info("Creating execution role")
	roleArn, err = wrapper.NewRole(ctx, roleName, lambdaTrustPolicy())
	if err != nil {
		return nil, err
	}
	if err := wrapper.AttachRolePolicy(ctx, BasicExecutionPolicyArn, roleName); err != nil {
		return nil, err
	}
	return roleArn, nil
}

// DeleteRole detaches the basic execution policy and removes the role.
func (wrapper ServiceWrapper) DeleteRole(ctx context.Context, roleName string) error {
	_, err := wrapper.Client.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
		PolicyArn: aws.String(BasicExecutionPolicyArn),
		RoleName:  aws.String(roleName),
	})
	if err != nil {
		log.WithField("role", roleName).WithError(err).Warn("Not able to detach execution policy")
	}
	_, err = wrapper.Client.DeleteRole(ctx, &iam.DeleteRoleInput{
		RoleName: aws.String(roleName),
	})
	return err
}
