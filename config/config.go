// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config reads the settings used to reach a driver.
package config

import (
	"os"
	"time"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	"github.com/juju/driverrpc/transport"
)

const (
	// DefaultSDKLanguage is reported to the driver by initialize.
	DefaultSDKLanguage = "go"

	// DefaultTimeout bounds calls that set no timeout of their own.
	DefaultTimeout = 30 * time.Second

	// DefaultShutdownGrace is how long a driver process is given to
	// exit after its input closes before it is killed.
	DefaultShutdownGrace = 5 * time.Second

	// DefaultLoggingConfig is applied when none is configured.
	DefaultLoggingConfig = "<root>=WARNING"

	// DefaultLogFileMaxSize is the size in megabytes at which the log
	// file is rotated.
	DefaultLogFileMaxSize = 100
)

// Driver describes how to start a driver process.
type Driver struct {
	// Path is the driver executable.
	Path string `yaml:"path"`

	// Args are passed to the executable.
	Args []string `yaml:"args,omitempty"`

	// Env is added to the environment of the process.
	Env map[string]string `yaml:"env,omitempty"`

	// ShutdownGrace overrides DefaultShutdownGrace.
	ShutdownGrace time.Duration `yaml:"shutdown-grace,omitempty"`
}

// Config holds the settings for a connection to a driver. Exactly one
// of Driver.Path and Endpoint must be set.
type Config struct {
	Driver Driver `yaml:"driver,omitempty"`

	// Endpoint is the websocket URL of an already running driver.
	Endpoint string `yaml:"endpoint,omitempty"`

	// DialAttempts is the number of times Endpoint is dialled.
	DialAttempts int `yaml:"dial-attempts,omitempty"`

	SDKLanguage    string        `yaml:"sdk-language,omitempty"`
	DefaultTimeout time.Duration `yaml:"default-timeout,omitempty"`
	MaxFrameSize   uint32        `yaml:"max-frame-size,omitempty"`

	// MaxInFlight bounds the calls awaiting a response; zero means
	// no bound.
	MaxInFlight int `yaml:"max-in-flight,omitempty"`

	LoggingConfig string `yaml:"logging-config,omitempty"`

	// LogFile, if set, receives log output in addition to stderr. It
	// is rotated once it reaches LogFileMaxSize megabytes.
	LogFile        string `yaml:"log-file,omitempty"`
	LogFileMaxSize int    `yaml:"log-file-max-size,omitempty"`

	// TraceEndpoint, if set, is the OTLP gRPC collector that call
	// spans are exported to.
	TraceEndpoint string `yaml:"trace-endpoint,omitempty"`

	// TraceInsecure disables TLS for TraceEndpoint.
	TraceInsecure bool `yaml:"trace-insecure,omitempty"`
}

// Default returns a config holding the default values, with neither a
// driver nor an endpoint set.
func Default() Config {
	return Config{
		Driver:         Driver{ShutdownGrace: DefaultShutdownGrace},
		DialAttempts:   1,
		SDKLanguage:    DefaultSDKLanguage,
		DefaultTimeout: DefaultTimeout,
		MaxFrameSize:   transport.DefaultMaxFrameSize,
		LoggingConfig:  DefaultLoggingConfig,
		LogFileMaxSize: DefaultLogFileMaxSize,
	}
}

// Parse reads a YAML config. Unset fields take their default values.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Annotate(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Trace(err)
	}
	return cfg, nil
}

// ReadFile reads and parses the config file at path.
func ReadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Trace(err)
	}
	cfg, err := Parse(data)
	return cfg, errors.Annotatef(err, "reading %s", path)
}

// Validate returns an error satisfying errors.NotValid if the config
// cannot be used.
func (cfg Config) Validate() error {
	switch {
	case cfg.Driver.Path == "" && cfg.Endpoint == "":
		return errors.NotValidf("config without driver path or endpoint")
	case cfg.Driver.Path != "" && cfg.Endpoint != "":
		return errors.NotValidf("config with both driver path and endpoint")
	case cfg.DefaultTimeout < 0:
		return errors.NotValidf("negative default-timeout")
	case cfg.Driver.ShutdownGrace < 0:
		return errors.NotValidf("negative shutdown-grace")
	case cfg.DialAttempts < 0:
		return errors.NotValidf("negative dial-attempts")
	case cfg.MaxInFlight < 0:
		return errors.NotValidf("negative max-in-flight")
	case cfg.LogFileMaxSize < 0:
		return errors.NotValidf("negative log-file-max-size")
	case cfg.SDKLanguage == "":
		return errors.NotValidf("empty sdk-language")
	}
	return nil
}

// Marshal returns the config as YAML.
func (cfg Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	return data, errors.Trace(err)
}
