// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/lumberjack/v2"
)

const logFileWriter = "file"

// addLogFile sends log output to a rotated file as well as the default
// writer. The returned function removes the writer and closes the file.
func addLogFile(path string, maxSize int) (func(), error) {
	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize, // megabytes
		MaxBackups: 2,
		Compress:   true,
	}
	if err := loggo.RegisterWriter(logFileWriter, loggo.NewSimpleWriter(writer, loggo.DefaultFormatter)); err != nil {
		return nil, errors.Annotatef(err, "logging to %s", path)
	}
	return func() {
		_, _ = loggo.RemoveWriter(logFileWriter)
		if err := writer.Close(); err != nil {
			logger.Debugf("closing log file: %v", err)
		}
	}, nil
}
