// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/juju/ansiterm"
	"github.com/juju/errors"

	"github.com/juju/driverrpc/cmd"
)

// formatters are the output formats driverctl supports.
var formatters = map[string]cmd.Formatter{
	"yaml":    cmd.DefaultFormatters["yaml"],
	"json":    cmd.DefaultFormatters["json"],
	"tabular": formatTabular,
}

// formatTabular prints the object tree as an indented table, followed
// by the call result if there is one.
func formatTabular(value any) ([]byte, error) {
	out, ok := value.(output)
	if !ok {
		return nil, errors.Errorf("expected value of type %T, got %T", out, value)
	}
	var buf bytes.Buffer
	tw := ansiterm.NewTabWriter(&buf, 0, 1, 2, ' ', 0)
	fmt.Fprintln(tw, "Type\tGUID")
	var walk func(info objectInfo, depth int)
	walk = func(info objectInfo, depth int) {
		guid := info.GUID
		if guid == "" {
			guid = "-"
		}
		fmt.Fprintf(tw, "%s%s\t%s\n", strings.Repeat("  ", depth), info.Type, guid)
		for _, child := range info.Children {
			walk(child, depth+1)
		}
	}
	walk(out.Objects, 0)
	if err := tw.Flush(); err != nil {
		return nil, errors.Trace(err)
	}
	if out.Result != nil {
		data, err := json.Marshal(out.Result)
		if err != nil {
			return nil, errors.Trace(err)
		}
		fmt.Fprintf(&buf, "\nResult: %s\n", data)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
