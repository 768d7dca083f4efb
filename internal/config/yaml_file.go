package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the environment variables as a YAML document, e.g.
//
//	api:
//	  base_url: https://api.example.com
//	session:
//	  safety_margin: 45s
type fileConfig struct {
	App struct {
		Name     string `yaml:"name"`
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`
	API struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"api"`
	Session struct {
		SafetyMargin       string `yaml:"safety_margin"`
		RequestTimeout     string `yaml:"request_timeout"`
		HydrationGrace     string `yaml:"hydration_grace"`
		MaxRefreshTimeouts int    `yaml:"max_refresh_timeouts"`
	} `yaml:"session"`
	Routes struct {
		Login           string `yaml:"login"`
		DefaultLanding  string `yaml:"default_landing"`
		ProviderLanding string `yaml:"provider_landing"`
	} `yaml:"routes"`
	Store struct {
		Backend     string `yaml:"backend"`
		Path        string `yaml:"path"`
		RedisAddr   string `yaml:"redis_addr"`
		RedisPrefix string `yaml:"redis_prefix"`
		RedisDB     int    `yaml:"redis_db"`
	} `yaml:"store"`
	MockAPI struct {
		Port            string `yaml:"port"`
		JWTSecret       string `yaml:"jwt_secret"`
		AccessTokenTTL  string `yaml:"access_token_ttl"`
		RefreshTokenTTL string `yaml:"refresh_token_ttl"`
	} `yaml:"mock_api"`
}

var (
	fileValuesLock sync.RWMutex
	fileValues     = map[string]string{}
)

// LoadYAML reads a YAML config file into the fallback layer consulted by GetEnv.
// A missing file is not an error.
func LoadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	values := map[string]string{
		appNameVar:                fc.App.Name,
		envVar:                    fc.App.Env,
		logLevelVar:               fc.App.LogLevel,
		apiBaseURLVar:             fc.API.BaseURL,
		"SESSION_SAFETY_MARGIN":   fc.Session.SafetyMargin,
		"SESSION_REQUEST_TIMEOUT": fc.Session.RequestTimeout,
		"SESSION_HYDRATION_GRACE": fc.Session.HydrationGrace,
		"ROUTE_LOGIN":             fc.Routes.Login,
		"ROUTE_DEFAULT_LANDING":   fc.Routes.DefaultLanding,
		"ROUTE_PROVIDER_LANDING":  fc.Routes.ProviderLanding,
		"STORE_BACKEND":           fc.Store.Backend,
		"STORE_PATH":              fc.Store.Path,
		"REDIS_ADDR":              fc.Store.RedisAddr,
		"REDIS_PREFIX":            fc.Store.RedisPrefix,
		"PORT":                    fc.MockAPI.Port,
		"JWT_SECRET":              fc.MockAPI.JWTSecret,
		"JWT_ACCESS_EXPIRY":       fc.MockAPI.AccessTokenTTL,
		"JWT_REFRESH_EXPIRY":      fc.MockAPI.RefreshTokenTTL,
	}
	if fc.Session.MaxRefreshTimeouts != 0 {
		values["SESSION_MAX_REFRESH_TIMEOUTS"] = strconv.Itoa(fc.Session.MaxRefreshTimeouts)
	}
	if fc.Store.RedisDB != 0 {
		values["REDIS_DB"] = strconv.Itoa(fc.Store.RedisDB)
	}

	fileValuesLock.Lock()
	defer fileValuesLock.Unlock()
	fileValues = map[string]string{}
	for k, v := range values {
		if v != "" {
			fileValues[k] = v
		}
	}
	return nil
}

// ResetFileValues drops any values loaded by LoadYAML.
func ResetFileValues() {
	fileValuesLock.Lock()
	defer fileValuesLock.Unlock()
	fileValues = map[string]string{}
}

func fileValue(key string) (string, bool) {
	fileValuesLock.RLock()
	defer fileValuesLock.RUnlock()
	v, ok := fileValues[key]
	return v, ok
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
