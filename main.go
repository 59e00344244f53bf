package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"

	"github.com/ginthi/scraper-deploy/awsauth"
	"github.com/ginthi/scraper-deploy/common"
	"github.com/ginthi/scraper-deploy/iam"
	"github.com/ginthi/scraper-deploy/lambda"
	"github.com/ginthi/scraper-deploy/registry"
	"github.com/ginthi/scraper-deploy/storage"
)

const (
	defaultRegion  = "ap-south-1"
	updateMaxWait  = 5 * time.Minute
	envPushMaxWait = 2 * time.Minute
)

func main() {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "yaml config file name",
		},
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				EnvVars: []string{"LAMBDA_NAME"},
				Usage:   "Name of the Lambda function",
			},
		),
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:    "registry_uri",
				Aliases: []string{"ru"},
				EnvVars: []string{"ECR_URI"},
				Usage:   "URI of the ECR repository",
			},
		),
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:    "region",
				Aliases: []string{"r"},
				EnvVars: []string{"AWS_REGION"},
				Value:   defaultRegion,
				Usage:   "Region",
			},
		),
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:    "image_tag",
				Aliases: []string{"it"},
				EnvVars: []string{"IMAGE_TAG"},
				Value:   "latest",
				Usage:   "Tag of the container image",
			},
		),
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:    "image_name",
				Aliases: []string{"in"},
				EnvVars: []string{"DOCKER_IMAGE_NAME"},
				Usage:   "Local name of the container image; defaults to the function name",
			},
		),
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:    "role_arn",
				Aliases: []string{"ra"},
				EnvVars: []string{"LAMBDA_ROLE_ARN"},
				Usage:   "Role ARN",
			},
		),
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:    "context_dir",
				Aliases: []string{"cd"},
				Value:   ".",
				Usage:   "Docker build context directory",
			},
		),
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:    "dockerfile",
				Aliases: []string{"df"},
				Value:   "Dockerfile",
				Usage:   "Dockerfile path relative to the build context",
			},
		),
		altsrc.NewIntFlag(
			&cli.IntFlag{
				Name:    "memory",
				Aliases: []string{"mem"},
				Value:   512,
				Usage:   "Memory of the Lambda function",
			},
		),
		altsrc.NewIntFlag(
			&cli.IntFlag{
				Name:    "time_out",
				Aliases: []string{"to"},
				Value:   300,
				Usage:   "Timeout of the Lambda function",
			},
		),
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:    "s3_bucket",
				Aliases: []string{"s3"},
				EnvVars: []string{"S3_BUCKET"},
				Usage:   "Artifact bucket exported to the function",
			},
		),
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:    "scraper_email",
				EnvVars: []string{"SUPPLYNOTE_EMAIL"},
				Usage:   "Scraper portal login email",
			},
		),
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:    "scraper_password",
				EnvVars: []string{"SUPPLYNOTE_PASSWORD"},
				Usage:   "Scraper portal login password",
			},
		),
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:    "scraper_base_url",
				EnvVars: []string{"SUPPLYNOTE_BASE_URL"},
				Usage:   "Scraper portal base URL",
			},
		),
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:    "environment_variables",
				Aliases: []string{"ev"},
				Usage:   "Extra environment variables of the Lambda function, as JSON",
			},
		),
		altsrc.NewBoolFlag(
			&cli.BoolFlag{
				Name:    "autogenerate_execution_role",
				Aliases: []string{"der"},
				Value:   false,
				Usage:   "Create an execution role when no role ARN is supplied",
			},
		),
		altsrc.NewBoolFlag(
			&cli.BoolFlag{
				Name:    "skip_build",
				Aliases: []string{"sb"},
				Value:   false,
				Usage:   "Skip build and push, reuse the image already in the registry",
			},
		),
	}
	commands := []*cli.Command{
		{
			Name:    "deploy",
			Before:  altsrc.InitInputSourceWithContext(flags, altsrc.NewYamlSourceFromFlagFunc("config")),
			Aliases: []string{"d"},
			Flags:   flags,
			Usage:   "Builds and pushes the scraper image, then creates or updates the Lambda",

			Action: Deploy,
		},

		{
			Name:    "delete_function",
			Aliases: []string{"dl"},
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "name",
					EnvVars: []string{"LAMBDA_NAME"},
					Usage:   "Name of the Lambda function",
				},
				&cli.StringFlag{
					Name:        "delete_role",
					Usage:       "Flag to indicate whether the execution role should also be deleted - Possible values Y and N",
					DefaultText: "N",
				},
				&cli.StringFlag{
					Name:    "region",
					Aliases: []string{"r"},
					EnvVars: []string{"AWS_REGION"},
					Value:   defaultRegion,
					Usage:   "Region",
				},
			},
			Usage: "Deletes the Lambda",

			Action: DeleteFunction,
		},
	}

	app := &cli.App{
		Name:  "scraper-deploy",
		Usage: "Releases the SupplyNote scraper as a container-image Lambda",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env_file",
				Aliases: []string{"ef"},
				Value:   ".env",
				Usage:   "Local key=value file loaded into the environment before flags are read",
			},
		},
		// Loading here, before the command parses its flags, lets the
		// file feed the flags' environment variable bindings.
		Before: func(cCtx *cli.Context) error {
			return loadEnvFromFile(cCtx.String("env_file"))
		},
		Commands: commands,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Not able to run the command. The reason is %s", err.Error())
	}
}

// loadEnvFromFile loads the optional local key=value file. A missing file is
// fine; a file that is present but does not parse aborts the run.
func loadEnvFromFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	log.WithField("file", path).Debug("Loaded local env file")
	return nil
}

func SetDeployParams(cCtx *cli.Context) (*common.DeployParams, error) {
	deployParams := common.DeployParams{
		FunctionName:     cCtx.String("name"),
		RegistryURI:      cCtx.String("registry_uri"),
		Region:           cCtx.String("region"),
		ImageTag:         cCtx.String("image_tag"),
		ImageName:        cCtx.String("image_name"),
		RoleArn:          cCtx.String("role_arn"),
		ContextDir:       cCtx.String("context_dir"),
		Dockerfile:       cCtx.String("dockerfile"),
		Memory:           cCtx.Int("memory"),
		Timeout:          cCtx.Int("time_out"),
		BucketName:       cCtx.String("s3_bucket"),
		ScraperEmail:     cCtx.String("scraper_email"),
		ScraperPassword:  cCtx.String("scraper_password"),
		ScraperBaseURL:   cCtx.String("scraper_base_url"),
		AutogenerateRole: cCtx.Bool("autogenerate_execution_role"),
		SkipBuild:        cCtx.Bool("skip_build"),
	}
	if common.TrimAndCheckEmptyString(&deployParams.ImageName) {
		deployParams.ImageName = deployParams.FunctionName
	}
	envVariables := cCtx.String("environment_variables")
	if !common.TrimAndCheckEmptyString(&envVariables) {
		result := make(map[string]string)
		if err := json.Unmarshal([]byte(envVariables), &result); err != nil {
			return nil, err
		}
		deployParams.EnvironmentVariables = result
	}
	return &deployParams, nil
}

func Deploy(cCtx *cli.Context) error {
	deployParams, err := SetDeployParams(cCtx)
	if err != nil {
		return err
	}
	if err := lambda.ValidateInputParams(*deployParams, false); err != nil {
		return err
	}
	if err := awsauth.RequireCredentials(); err != nil {
		return err
	}

	ctx := context.Background()
	cfg, err := awsauth.Config(ctx, deployParams.Region)
	if err != nil {
		return err
	}
	authWrapper := awsauth.ServiceWrapper{Client: awsauth.Client(cfg)}
	if _, err := authWrapper.VerifyIdentity(ctx); err != nil {
		return err
	}

	if !common.TrimAndCheckEmptyString(&deployParams.BucketName) {
		storageWrapper := storage.ServiceWrapper{Client: storage.Client(cfg)}
		if err := storageWrapper.EnsureBucketExists(ctx, deployParams.BucketName); err != nil {
			return err
		}
	}

	if !deployParams.SkipBuild {
		engine, err := registry.NewEngineClient()
		if err != nil {
			return err
		}
		registryWrapper := registry.ServiceWrapper{
			Engine: engine,
			Tokens: registry.TokenClient(cfg),
		}
		if err := registryWrapper.BuildImage(ctx, *deployParams); err != nil {
			return err
		}
		encodedAuth, err := registryWrapper.Login(ctx)
		if err != nil {
			return err
		}
		if err := registryWrapper.PushImage(ctx, *deployParams, encodedAuth); err != nil {
			return err
		}
	}

	lambdaWrapper := lambda.ServiceWrapper{Client: lambda.Client(cfg)}
	imageURI := deployParams.RemoteImageRef()

	functionDetails, err := lambdaWrapper.GetFunctionDetails(ctx, deployParams.FunctionName)
	if err != nil {
		return err
	}

	if functionDetails == nil {
		if err := lambda.ValidateInputParams(*deployParams, true); err != nil {
			return err
		}
		roleArn := deployParams.RoleArn
		if common.TrimAndCheckEmptyString(&roleArn) {
			iamWrapper := iam.ServiceWrapper{Client: iam.Client(cfg)}
			generated, err := iamWrapper.EnsureExecutionRole(ctx, deployParams.FunctionName)
			if err != nil {
				return err
			}
			roleArn = *generated
		}
		if _, err := lambdaWrapper.New(ctx, *deployParams, imageURI, roleArn); err != nil {
			return err
		}
		if err := lambdaWrapper.WaitActive(ctx, deployParams.FunctionName, updateMaxWait); err != nil {
			return err
		}
	} else {
		if err := lambdaWrapper.UpdateCode(ctx, deployParams.FunctionName, imageURI); err != nil {
			return err
		}
		if err := lambdaWrapper.WaitUpdated(ctx, deployParams.FunctionName, updateMaxWait); err != nil {
			return err
		}
	}

	if vars := deployParams.ScraperEnvironment(); vars != nil {
		envCtx, cancel := context.WithTimeout(ctx, envPushMaxWait)
		defer cancel()
		if err := lambdaWrapper.UpdateEnvironment(envCtx, deployParams.FunctionName, vars); err != nil {
			return err
		}
		if err := lambdaWrapper.WaitUpdated(ctx, deployParams.FunctionName, updateMaxWait); err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{
		"function": deployParams.FunctionName,
		"image":    imageURI,
	}).Info("Deploy finished")
	return nil
}

func DeleteFunction(cCtx *cli.Context) error {
	name := cCtx.String("name")
	deleteRole := cCtx.String("delete_role")
	if common.TrimAndCheckEmptyString(&name) {
		return &common.InputError{
			Message: "Function Name cannot be null",
		}
	}

	ctx := context.Background()
	cfg, err := awsauth.Config(ctx, cCtx.String("region"))
	if err != nil {
		return err
	}
	lambdaWrapper := lambda.ServiceWrapper{Client: lambda.Client(cfg)}

	functionDetails, err := lambdaWrapper.Delete(ctx, name)
	if err != nil {
		return err
	}
	if deleteRole == "Y" && functionDetails.Configuration != nil && functionDetails.Configuration.Role != nil {
		iamWrapper := iam.ServiceWrapper{Client: iam.Client(cfg)}
		roleName := iam.RoleNameFromArn(*functionDetails.Configuration.Role)
		if err := iamWrapper.DeleteRole(ctx, roleName); err != nil {
			return err
		}
	}
	return nil
}
