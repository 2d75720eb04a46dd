// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package config_test

import (
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/driverrpc/config"
	"github.com/juju/driverrpc/transport"
)

type configSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&configSuite{})

const fullConfig = `
driver:
  path: /usr/lib/driver/run-driver
  args: [run-driver]
  env:
    DEBUG: pw:protocol
  shutdown-grace: 2s
sdk-language: csharp
default-timeout: 45s
max-frame-size: 1048576
max-in-flight: 16
logging-config: "<root>=WARNING;driverrpc=DEBUG"
log-file: /var/log/driverctl.log
log-file-max-size: 10
trace-endpoint: localhost:4317
trace-insecure: true
`

func (s *configSuite) TestParse(c *gc.C) {
	cfg, err := config.Parse([]byte(fullConfig))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(cfg, jc.DeepEquals, config.Config{
		Driver: config.Driver{
			Path:          "/usr/lib/driver/run-driver",
			Args:          []string{"run-driver"},
			Env:           map[string]string{"DEBUG": "pw:protocol"},
			ShutdownGrace: 2 * time.Second,
		},
		DialAttempts:   1,
		SDKLanguage:    "csharp",
		DefaultTimeout: 45 * time.Second,
		MaxFrameSize:   1 << 20,
		MaxInFlight:    16,
		LoggingConfig:  "<root>=WARNING;driverrpc=DEBUG",
		LogFile:        "/var/log/driverctl.log",
		LogFileMaxSize: 10,
		TraceEndpoint:  "localhost:4317",
		TraceInsecure:  true,
	})
}

func (s *configSuite) TestParseDefaults(c *gc.C) {
	cfg, err := config.Parse([]byte("endpoint: ws://localhost:9222/driver\n"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(cfg.Endpoint, gc.Equals, "ws://localhost:9222/driver")
	c.Check(cfg.SDKLanguage, gc.Equals, config.DefaultSDKLanguage)
	c.Check(cfg.DefaultTimeout, gc.Equals, config.DefaultTimeout)
	c.Check(cfg.Driver.ShutdownGrace, gc.Equals, config.DefaultShutdownGrace)
	c.Check(cfg.MaxFrameSize, gc.Equals, uint32(transport.DefaultMaxFrameSize))
	c.Check(cfg.LoggingConfig, gc.Equals, config.DefaultLoggingConfig)
	c.Check(cfg.DialAttempts, gc.Equals, 1)
	c.Check(cfg.MaxInFlight, gc.Equals, 0)
	c.Check(cfg.LogFileMaxSize, gc.Equals, config.DefaultLogFileMaxSize)
	c.Check(cfg.TraceEndpoint, gc.Equals, "")
}

func (s *configSuite) TestParseInvalid(c *gc.C) {
	for _, test := range []struct {
		yaml   string
		expect string
	}{{
		yaml:   "sdk-language: go\n",
		expect: "config without driver path or endpoint not valid",
	}, {
		yaml:   "driver: {path: /bin/driver}\nendpoint: ws://x\n",
		expect: "config with both driver path and endpoint not valid",
	}, {
		yaml:   "endpoint: ws://x\ndefault-timeout: -1s\n",
		expect: "negative default-timeout not valid",
	}, {
		yaml:   "driver: {path: /bin/driver, shutdown-grace: -1s}\n",
		expect: "negative shutdown-grace not valid",
	}, {
		yaml:   "endpoint: ws://x\ndial-attempts: -2\n",
		expect: "negative dial-attempts not valid",
	}, {
		yaml:   "endpoint: ws://x\nsdk-language: \"\"\n",
		expect: "empty sdk-language not valid",
	}, {
		yaml:   "endpoint: ws://x\nmax-in-flight: -1\n",
		expect: "negative max-in-flight not valid",
	}, {
		yaml:   "endpoint: ws://x\nlog-file-max-size: -1\n",
		expect: "negative log-file-max-size not valid",
	}} {
		c.Logf("yaml: %s", test.yaml)
		_, err := config.Parse([]byte(test.yaml))
		c.Check(err, gc.ErrorMatches, test.expect)
		c.Check(err, jc.ErrorIs, errors.NotValid)
	}
}

func (s *configSuite) TestParseBadYAML(c *gc.C) {
	_, err := config.Parse([]byte("driver: [\n"))
	c.Assert(err, gc.ErrorMatches, "parsing config: .*")
}

func (s *configSuite) TestReadFile(c *gc.C) {
	path := filepath.Join(c.MkDir(), "driver.yaml")
	err := os.WriteFile(path, []byte(fullConfig), 0600)
	c.Assert(err, jc.ErrorIsNil)

	cfg, err := config.ReadFile(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(cfg.Driver.Path, gc.Equals, "/usr/lib/driver/run-driver")

	_, err = config.ReadFile(filepath.Join(c.MkDir(), "missing.yaml"))
	c.Check(err, jc.ErrorIs, os.ErrNotExist)
}

func (s *configSuite) TestMarshalRoundTrip(c *gc.C) {
	cfg, err := config.Parse([]byte(fullConfig))
	c.Assert(err, jc.ErrorIsNil)
	data, err := cfg.Marshal()
	c.Assert(err, jc.ErrorIsNil)

	again, err := config.Parse(data)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(again, jc.DeepEquals, cfg)
}
