// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"os"

	"github.com/juju/loggo"

	"github.com/juju/driverrpc/cmd"
)

func main() {
	ctx, err := cmd.DefaultContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
		os.Exit(2)
	}
	writer := loggo.NewSimpleWriter(ctx.Stderr, loggo.DefaultFormatter)
	if _, err := loggo.ReplaceDefaultWriter(writer); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
	}
	os.Exit(cmd.Main(newDriverctlCommand(), ctx, os.Args[1:]))
}
