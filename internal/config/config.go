package config

import (
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config interface {
	EnvConfig
	SessionConfig
	RoutesConfig
	StoreConfig
	MockAPIConfig
}

type EnvConfig interface {
	GetAppName() string
	GetAPIBaseURL() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	Session
	Routes
	Store
	MockAPI
}

func New() Config {
	return mainConfig{}
}

// Load reads an optional .env file and an optional YAML file before returning the
// config. Environment variables always win over file values.
func Load(envFile, yamlFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !isNotExist(err) {
			return nil, errors.Wrap(err, "[config.Load] godotenv.Load")
		}
	}
	if yamlFile != "" {
		if err := LoadYAML(yamlFile); err != nil {
			return nil, errors.Wrap(err, "[config.Load] LoadYAML")
		}
	}
	return New(), nil
}
