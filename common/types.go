package common

import "fmt"

type DeployParams struct {
	FunctionName         string
	RegistryURI          string
	Region               string
	ImageTag             string
	ImageName            string
	RoleArn              string
	ContextDir           string
	Dockerfile           string
	Memory               int
	Timeout              int
	BucketName           string
	ScraperEmail         string
	ScraperPassword      string
	ScraperBaseURL       string
	AutogenerateRole     bool
	SkipBuild            bool
	EnvironmentVariables map[string]string
}

// LocalImageRef is the tag given to the image at build time, before it is
// retagged against the registry.
func (p DeployParams) LocalImageRef() string {
	return fmt.Sprintf("%s:%s", p.ImageName, p.ImageTag)
}

// RemoteImageRef is the fully qualified reference pushed to the registry and
// handed to the function as its code location.
func (p DeployParams) RemoteImageRef() string {
	return fmt.Sprintf("%s:%s", p.RegistryURI, p.ImageTag)
}

// ScraperEnvironment collects the variables pushed into the function
// configuration. The scraper credentials and their companions are included
// only when email and password are both present; extra variables are always
// included. Returns nil when there is nothing to push.
func (p DeployParams) ScraperEnvironment() map[string]string {
	vars := map[string]string{}
	email := p.ScraperEmail
	password := p.ScraperPassword
	if !TrimAndCheckEmptyString(&email) && !TrimAndCheckEmptyString(&password) {
		vars["SUPPLYNOTE_EMAIL"] = email
		vars["SUPPLYNOTE_PASSWORD"] = password
		if !TrimAndCheckEmptyString(&p.ScraperBaseURL) {
			vars["SUPPLYNOTE_BASE_URL"] = p.ScraperBaseURL
		}
		if !TrimAndCheckEmptyString(&p.BucketName) {
			vars["S3_BUCKET"] = p.BucketName
		}
	}
	for k, v := range p.EnvironmentVariables {
		vars[k] = v
	}
	if len(vars) == 0 {
		return nil
	}
	return vars
}
