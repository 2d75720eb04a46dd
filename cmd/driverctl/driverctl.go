// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo"
	"github.com/juju/worker/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.opentelemetry.io/otel/trace"

	"github.com/juju/driverrpc/cmd"
	"github.com/juju/driverrpc/config"
	"github.com/juju/driverrpc/driver"
	"github.com/juju/driverrpc/metrics"
	"github.com/juju/driverrpc/rpc"
	"github.com/juju/driverrpc/rpc/jsoncodec"
	"github.com/juju/driverrpc/transport"
)

var logger = loggo.GetLogger("driverrpc.cmd.driverctl")

const driverctlDoc = `
driverctl connects to a driver, performs the initialize handshake and
prints the tree of objects the driver has created.

The driver is either started from --driver, or reached through the
websocket --endpoint of one already running. Settings may also be read
from a YAML --config file; flags override it.

With a guid and method, driverctl also calls that method on the object
and prints the result. Params are given as a JSON object.

Examples:

    driverctl --driver ./run-driver
    driverctl --endpoint ws://localhost:9323/ "" ping
    driverctl --config driver.yaml "browser@1" newContext '{"viewport":null}'
    driverctl --endpoint ws://localhost:9323/ --format tabular
    driverctl --driver ./run-driver --trace-endpoint localhost:4317 --trace-insecure
`

// traceShutdownTimeout bounds the flush of spans on exit.
const traceShutdownTimeout = 5 * time.Second

// objectInfo describes one remote object in the printed tree.
type objectInfo struct {
	GUID     string       `yaml:"guid" json:"guid"`
	Type     string       `yaml:"type" json:"type"`
	Children []objectInfo `yaml:"children,omitempty" json:"children,omitempty"`
}

// output is what driverctl prints.
type output struct {
	Objects objectInfo `yaml:"objects" json:"objects"`
	Result  any        `yaml:"result,omitempty" json:"result,omitempty"`
}

type driverctlCommand struct {
	out cmd.Output

	configPath    string
	driverPath    string
	endpoint      string
	sdkLanguage   string
	timeout       time.Duration
	loggingConfig string
	logFile       string
	maxInFlight   int
	traceEndpoint string
	traceInsecure bool
	showMetrics   bool

	guid   string
	method string
	params json.RawMessage

	cfg config.Config
}

func newDriverctlCommand() *driverctlCommand {
	return &driverctlCommand{}
}

// Info is part of the cmd.Command interface.
func (c *driverctlCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "driverctl",
		Args:    "[<guid> <method> [<params>]]",
		Purpose: "Connect to a driver and inspect its objects.",
		Doc:     driverctlDoc,
	}
}

// SetFlags is part of the cmd.Command interface.
func (c *driverctlCommand) SetFlags(f *gnuflag.FlagSet) {
	c.out.AddFlags(f, "yaml", formatters)
	f.StringVar(&c.configPath, "config", "", "Read settings from this YAML file")
	f.StringVar(&c.driverPath, "driver", "", "Start the driver executable at this path")
	f.StringVar(&c.endpoint, "endpoint", "", "Connect to a running driver at this websocket URL")
	f.StringVar(&c.sdkLanguage, "sdk-language", "", "Language reported in the initialize handshake")
	f.DurationVar(&c.timeout, "timeout", 0, "Timeout for each call")
	f.StringVar(&c.loggingConfig, "logging-config", "", "Specify log levels for modules")
	f.StringVar(&c.logFile, "log-file", "", "Also write log output to this file")
	f.IntVar(&c.maxInFlight, "max-in-flight", 0, "Limit the calls awaiting a response")
	f.StringVar(&c.traceEndpoint, "trace-endpoint", "", "Export call spans to this OTLP gRPC collector")
	f.BoolVar(&c.traceInsecure, "trace-insecure", false, "Do not use TLS for the trace collector")
	f.BoolVar(&c.showMetrics, "metrics", false, "Print connection metrics on exit")
}

// Init is part of the cmd.Command interface.
func (c *driverctlCommand) Init(args []string) error {
	switch len(args) {
	case 0:
	case 2, 3:
		c.guid, c.method = args[0], args[1]
		if len(args) == 3 {
			if !json.Valid([]byte(args[2])) {
				return errors.NotValidf("params %q", args[2])
			}
			c.params = json.RawMessage(args[2])
		}
	default:
		return errors.New("expected a guid and a method")
	}
	return nil
}

// loadConfig merges the config file, if any, with the flags.
func (c *driverctlCommand) loadConfig(ctx *cmd.Context) (config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.ReadFile(ctx.AbsPath(c.configPath)); err != nil {
			return config.Config{}, errors.Trace(err)
		}
	}
	if c.driverPath != "" {
		cfg.Driver.Path = ctx.AbsPath(c.driverPath)
		cfg.Endpoint = ""
	}
	if c.endpoint != "" {
		cfg.Endpoint = c.endpoint
		cfg.Driver.Path = ""
	}
	if c.sdkLanguage != "" {
		cfg.SDKLanguage = c.sdkLanguage
	}
	if c.timeout != 0 {
		cfg.DefaultTimeout = c.timeout
	}
	if c.loggingConfig != "" {
		cfg.LoggingConfig = c.loggingConfig
	}
	if c.logFile != "" {
		cfg.LogFile = c.logFile
	}
	if c.maxInFlight != 0 {
		cfg.MaxInFlight = c.maxInFlight
	}
	if c.traceEndpoint != "" {
		cfg.TraceEndpoint = c.traceEndpoint
	}
	if c.traceInsecure {
		cfg.TraceInsecure = true
	}
	return cfg, errors.Trace(cfg.Validate())
}

// Run is part of the cmd.Command interface.
func (c *driverctlCommand) Run(ctx *cmd.Context) error {
	cfg, err := c.loadConfig(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if err := loggo.ConfigureLoggers(cfg.LoggingConfig); err != nil {
		return errors.Annotate(err, "configuring logging")
	}
	if cfg.LogFile != "" {
		closeLog, err := addLogFile(ctx.AbsPath(cfg.LogFile), cfg.LogFileMaxSize)
		if err != nil {
			return errors.Trace(err)
		}
		defer closeLog()
	}

	var tracer trace.Tracer
	if cfg.TraceEndpoint != "" {
		provider, err := newTracerProvider(ctx, cfg.TraceEndpoint, cfg.TraceInsecure)
		if err != nil {
			return errors.Trace(err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), traceShutdownTimeout)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Warningf("exporting spans: %v", err)
			}
		}()
		tracer = provider.Tracer("driverrpc")
	}

	collector := metrics.NewCollector()
	conn, cleanup, err := connect(ctx, cfg, collector, tracer)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			logger.Warningf("closing connection: %v", err)
		}
	}()

	top, err := conn.Initialize(ctx, cfg.SDKLanguage)
	if err != nil {
		return errors.Annotate(err, "initializing")
	}
	logger.Debugf("initialized %s %q", top.Type(), top.GUID())

	var result output
	if c.method != "" {
		ch, ok := conn.Object(c.guid)
		if !ok {
			return errors.NotFoundf("object %q", c.guid)
		}
		var raw json.RawMessage
		if err := ch.Call(ctx, c.method, c.params, &raw); err != nil {
			return errors.Trace(err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &result.Result); err != nil {
				return errors.Trace(err)
			}
		}
	}
	result.Objects = describe(conn.Root())
	if err := c.out.Write(ctx, result); err != nil {
		return errors.Trace(err)
	}
	if c.showMetrics {
		return errors.Trace(writeMetrics(ctx.Stderr, collector))
	}
	return nil
}

// connect starts or dials the configured driver and returns a started
// connection to it, with a function that tears both down.
func connect(ctx *cmd.Context, cfg config.Config, observer rpc.Observer, tracer trace.Tracer) (*rpc.Conn, func() error, error) {
	var (
		t    transport.Transport
		proc *driver.Process
	)
	if cfg.Driver.Path != "" {
		var err error
		proc, err = driver.Start(driver.Config{
			Path:          cfg.Driver.Path,
			Args:          cfg.Driver.Args,
			Env:           cfg.Driver.Env,
			ShutdownGrace: cfg.Driver.ShutdownGrace,
			MaxFrameSize:  cfg.MaxFrameSize,
			Stderr:        ctx.Stderr,
			Clock:         clock.WallClock,
		})
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		t = proc.Transport()
	} else {
		ws, err := transport.DialWebsocket(ctx, transport.DialConfig{
			URL:      cfg.Endpoint,
			Attempts: cfg.DialAttempts,
			Clock:    clock.WallClock,
		})
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		ws.SetReadLimit(int64(cfg.MaxFrameSize))
		t = ws
	}

	conn, err := rpc.NewConn(rpc.Config{
		Codec:          jsoncodec.New(t),
		Clock:          clock.WallClock,
		Observer:       observer,
		Tracer:         tracer,
		DefaultTimeout: cfg.DefaultTimeout,
		MaxInFlight:    cfg.MaxInFlight,
	})
	if err != nil {
		_ = t.Close()
		if proc != nil {
			_ = worker.Stop(proc)
		}
		return nil, nil, errors.Trace(err)
	}
	conn.Start()

	cleanup := func() error {
		err := conn.Close()
		if proc != nil {
			if perr := worker.Stop(proc); err == nil {
				err = perr
			}
		}
		return errors.Trace(err)
	}
	return conn, cleanup, nil
}

func describe(ch *rpc.Channel) objectInfo {
	info := objectInfo{GUID: ch.GUID(), Type: ch.Type()}
	for _, child := range ch.Children() {
		info.Children = append(info.Children, describe(child))
	}
	return info
}

func writeMetrics(w io.Writer, collector prometheus.Collector) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collector); err != nil {
		return errors.Trace(err)
	}
	families, err := registry.Gather()
	if err != nil {
		return errors.Trace(err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
