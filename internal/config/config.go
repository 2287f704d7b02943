package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	Env  string `validate:"required,oneof=dev prod"`
	Jobs struct {
		Workers      int    `validate:"min=1,max=1024"`
		WorkerPrefix string `validate:"required"`
		// HeartbeatSchedule is a cron expression; empty disables the heartbeat job.
		HeartbeatSchedule string
	}
	Admin struct {
		Addr string `validate:"required"`
	}
	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
}

var validate = validator.New()

// Load reads configuration from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	c.Env = getenv("ENV", "prod")
	workers, err := strconv.Atoi(getenv("JOBS_WORKERS", "10"))
	if err != nil {
		return Config{}, fmt.Errorf("JOBS_WORKERS: %w", err)
	}
	c.Jobs.Workers = workers
	c.Jobs.WorkerPrefix = getenv("JOBS_WORKER_PREFIX", "jobs-worker")
	c.Jobs.HeartbeatSchedule = os.Getenv("HEARTBEAT_SCHEDULE")
	c.Admin.Addr = getenv("ADMIN_ADDR", ":8080")
	c.Log.ConsoleLevel = strings.ToLower(getenv("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(getenv("LOG_FILE_LEVEL", "debug"))
	c.Log.File = getenv("LOG_FILE", "data/logs/jobsd.log")

	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
