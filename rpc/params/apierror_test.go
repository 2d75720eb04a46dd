// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package params_test

import (
	"encoding/json"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/driverrpc/rpc/params"
)

type errorSuite struct{}

var _ = gc.Suite(&errorSuite{})

func (*errorSuite) TestUnmarshalFlat(c *gc.C) {
	var info params.ErrorInfo
	err := json.Unmarshal([]byte(`{"message":"boom","name":"Error","stack":"at x"}`), &info)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info, jc.DeepEquals, params.ErrorInfo{
		Message: "boom",
		Name:    "Error",
		Stack:   "at x",
	})
}

func (*errorSuite) TestUnmarshalNested(c *gc.C) {
	var info params.ErrorInfo
	err := json.Unmarshal([]byte(`{"error":{"message":"waiting for selector","name":"TimeoutError"}}`), &info)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info.Message, gc.Equals, "waiting for selector")
	c.Check(info.Name, gc.Equals, "TimeoutError")
	c.Check(info.Stack, gc.Equals, "")
}

func (*errorSuite) TestUnmarshalInvalid(c *gc.C) {
	var info params.ErrorInfo
	err := json.Unmarshal([]byte(`{"message":1}`), &info)
	c.Assert(err, gc.NotNil)
}

func (*errorSuite) TestErrorString(c *gc.C) {
	info := &params.ErrorInfo{Message: "selector not found"}
	c.Check(info.Error(), gc.Equals, "selector not found")
}
