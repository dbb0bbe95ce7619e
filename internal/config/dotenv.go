package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when no env file is named.
const DefaultEnvFile = ".env"

// LoadDotEnv exports the variables of an env file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// LoadConfig reads the optional env file, then the environment, and returns
// the validated configuration.
func LoadConfig(envPath string) (AppConfig, error) {
	if err := LoadDotEnv(envPath); err != nil {
		return AppConfig{}, fmt.Errorf("load env file %s: %w", envPath, err)
	}
	env, err := LoadFromEnv()
	if err != nil {
		return AppConfig{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := env.Validate(); err != nil {
		return AppConfig{}, err
	}
	return env.ToAppConfig(), nil
}
