package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, 10, cfg.JobTimeoutMinutes)
	assert.Equal(t, 60, cfg.CacheWindowMinutes)
	assert.Equal(t, 7, cfg.RetentionDays)
	assert.Equal(t, "0 9 * * *", cfg.ScheduleCron)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("DATABASE_DSN", "host=db user=postgres dbname=recommender")
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("JOB_TIMEOUT_MINUTES", "5")
	t.Setenv("RETENTION_DAYS", "30")

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, "prod", cfg.AppEnv)
	assert.Equal(t, "host=db user=postgres dbname=recommender", cfg.DatabaseDSN)
	assert.Equal(t, "ghp_test", cfg.GitHubToken)
	assert.Equal(t, 5, cfg.JobTimeoutMinutes)
	assert.Equal(t, 30, cfg.RetentionDays)
}
