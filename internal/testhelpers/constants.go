// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package testhelpers holds values and helpers shared by the test
// suites of the connection packages.
package testhelpers

import (
	"context"
	"time"
)

// ShortWait is how long a test blocks waiting for something that
// should not happen, such as a dropped event being delivered.
const ShortWait = 50 * time.Millisecond

// LongWait bounds waits for things that should already have happened.
// It is long so that a loaded machine does not cause spurious
// failures; passing tests never wait this long.
const LongWait = 10 * time.Second

// Context returns a context that expires after LongWait, so a call
// whose response never arrives fails the test rather than hanging it.
func Context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), LongWait)
}
