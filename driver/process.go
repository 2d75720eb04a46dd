// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package driver runs a driver executable and connects to it over its
// standard input and output.
package driver

import (
	"io"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/worker/v4"
	"gopkg.in/tomb.v2"

	"github.com/juju/driverrpc/transport"
)

var logger = loggo.GetLogger("driverrpc.driver")

// Config describes the driver process to run.
type Config struct {
	// Path is the driver executable.
	Path string

	// Args are passed to the executable after its name.
	Args []string

	// Env is added to the environment inherited from this process.
	Env map[string]string

	// ShutdownGrace is how long the process has to exit once its
	// input is closed before it is killed. Zero kills it at once.
	ShutdownGrace time.Duration

	// MaxFrameSize bounds inbound frames; zero means the transport
	// default.
	MaxFrameSize uint32

	// Stderr receives the driver's diagnostic output. Defaults to
	// os.Stderr.
	Stderr io.Writer

	Clock clock.Clock
}

// Validate returns an error if the config cannot be used to start a
// process.
func (cfg Config) Validate() error {
	if cfg.Path == "" {
		return errors.NotValidf("empty Path")
	}
	if cfg.ShutdownGrace < 0 {
		return errors.NotValidf("negative ShutdownGrace")
	}
	if cfg.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	return nil
}

// Process is a running driver. It is a worker: killing it closes the
// driver's input, which asks it to exit, and kills the process if it
// has not exited within the grace period.
type Process struct {
	tomb   tomb.Tomb
	cmd    *exec.Cmd
	stream *transport.Stream
	stdin  io.Closer
	clock  clock.Clock
	grace  time.Duration
	exited chan error
}

var _ worker.Worker = (*Process)(nil)

// Start starts the driver process described by cfg.
func Start(cfg Config) (*Process, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}

	// The pipes are created here rather than by exec so that Wait
	// never closes the read side while frames are still being read.
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, errors.Trace(err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, errors.Trace(err)
	}

	cmd := exec.Command(cfg.Path, cfg.Args...)
	cmd.Env = environ(cfg.Env)
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = cfg.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	err = cmd.Start()
	// The child holds its own copies of these ends.
	stdinR.Close()
	stdoutW.Close()
	if err != nil {
		stdinW.Close()
		stdoutR.Close()
		return nil, errors.Annotatef(err, "starting driver %s", cfg.Path)
	}
	logger.Debugf("started driver %s (pid %d)", cfg.Path, cmd.Process.Pid)

	stream := transport.NewStream(stdoutR, stdinW, pipeCloser{stdinW, stdoutR})
	stream.SetMaxFrameSize(cfg.MaxFrameSize)

	p := &Process{
		cmd:    cmd,
		stream: stream,
		stdin:  stdinW,
		clock:  cfg.Clock,
		grace:  cfg.ShutdownGrace,
		exited: make(chan error, 1),
	}
	go func() {
		p.exited <- cmd.Wait()
	}()
	p.tomb.Go(p.loop)
	return p, nil
}

// Transport returns the framed stream connected to the driver.
// Closing it closes the driver's input.
func (p *Process) Transport() *transport.Stream {
	return p.stream
}

// Pid returns the process id of the driver.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Kill implements worker.Worker.
func (p *Process) Kill() {
	p.tomb.Kill(nil)
}

// Wait implements worker.Worker. It returns an error if the driver
// exited unsuccessfully without being asked to stop.
func (p *Process) Wait() error {
	return p.tomb.Wait()
}

func (p *Process) loop() error {
	select {
	case err := <-p.exited:
		if err != nil {
			return errors.Annotate(err, "driver exited")
		}
		logger.Debugf("driver exited")
		return nil
	case <-p.tomb.Dying():
	}

	// Closing the driver's input is the request to exit. Its output
	// stays open so that anything still in flight can be read.
	if err := p.stdin.Close(); err != nil {
		logger.Debugf("closing driver input: %v", err)
	}
	select {
	case err := <-p.exited:
		if err != nil {
			logger.Debugf("driver exited after close: %v", err)
		}
		return tomb.ErrDying
	case <-p.clock.After(p.grace):
	}

	logger.Warningf("driver did not exit within %v, killing pid %d", p.grace, p.cmd.Process.Pid)
	if err := p.cmd.Process.Kill(); err != nil {
		logger.Debugf("killing driver: %v", err)
	}
	<-p.exited
	return tomb.ErrDying
}

// environ returns the inherited environment with extra appended in a
// stable order.
func environ(extra map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// pipeCloser closes both of our ends of the driver's stdio.
type pipeCloser struct {
	stdin  io.Closer
	stdout io.Closer
}

func (c pipeCloser) Close() error {
	err := c.stdin.Close()
	if cerr := c.stdout.Close(); err == nil {
		err = cerr
	}
	return err
}
