package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimAndCheckEmptyString(t *testing.T) {
	s := "  value  "
	assert.False(t, TrimAndCheckEmptyString(&s))
	assert.Equal(t, "value", s)

	empty := "   "
	assert.True(t, TrimAndCheckEmptyString(&empty))
}

func TestImageRefs(t *testing.T) {
	deployParams := DeployParams{
		RegistryURI: "123456789012.dkr.ecr.ap-south-1.amazonaws.com/po-scraper",
		ImageName:   "po-scraper",
		ImageTag:    "v3",
	}
	assert.Equal(t, "po-scraper:v3", deployParams.LocalImageRef())
	assert.Equal(t, "123456789012.dkr.ecr.ap-south-1.amazonaws.com/po-scraper:v3", deployParams.RemoteImageRef())
}

func TestScraperEnvironment(t *testing.T) {
	t.Run("credentials require each other", func(t *testing.T) {
		deployParams := DeployParams{ScraperEmail: "ops@example.com"}
		assert.Nil(t, deployParams.ScraperEnvironment())

		deployParams = DeployParams{ScraperPassword: "hunter2"}
		assert.Nil(t, deployParams.ScraperEnvironment())
	})

	t.Run("extra variables survive without credentials", func(t *testing.T) {
		deployParams := DeployParams{
			ScraperEmail: "ops@example.com",
			EnvironmentVariables: map[string]string{
				"LOG_LEVEL": "debug",
			},
		}
		vars := deployParams.ScraperEnvironment()
		assert.Equal(t, map[string]string{"LOG_LEVEL": "debug"}, vars)
	})

	t.Run("includes optional values when set", func(t *testing.T) {
		deployParams := DeployParams{
			ScraperEmail:    "ops@example.com",
			ScraperPassword: "hunter2",
			ScraperBaseURL:  "https://portal.example.com",
			BucketName:      "scraper-reports",
			EnvironmentVariables: map[string]string{
				"LOG_LEVEL": "debug",
			},
		}
		vars := deployParams.ScraperEnvironment()
		assert.Equal(t, "ops@example.com", vars["SUPPLYNOTE_EMAIL"])
		assert.Equal(t, "hunter2", vars["SUPPLYNOTE_PASSWORD"])
		assert.Equal(t, "https://portal.example.com", vars["SUPPLYNOTE_BASE_URL"])
		assert.Equal(t, "scraper-reports", vars["S3_BUCKET"])
		assert.Equal(t, "debug", vars["LOG_LEVEL"])
	})

	t.Run("omits unset optional values", func(t *testing.T) {
		deployParams := DeployParams{
			ScraperEmail:    "ops@example.com",
			ScraperPassword: "hunter2",
		}
		vars := deployParams.ScraperEnvironment()
		assert.Len(t, vars, 2)
	})
}
