// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package params_test

import (
	"encoding/json"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/driverrpc/rpc/params"
)

type paramsSuite struct{}

var _ = gc.Suite(&paramsSuite{})

func (*paramsSuite) TestRequestWireShape(c *gc.C) {
	data, err := json.Marshal(params.Request{
		ID:     7,
		GUID:   "",
		Method: "initialize",
		Params: json.RawMessage(`{"sdkLanguage":"go"}`),
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(data), gc.Equals, `{"id":7,"guid":"","method":"initialize","params":{"sdkLanguage":"go"}}`)
}

func (*paramsSuite) TestMessageShapes(c *gc.C) {
	var resp params.Message
	err := json.Unmarshal([]byte(`{"id":1,"result":{"pong":true}}`), &resp)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(resp.IsResponse(), jc.IsTrue)
	c.Check(string(resp.Result), gc.Equals, `{"pong":true}`)

	var event params.Message
	err = json.Unmarshal([]byte(`{"guid":"page@1","method":"close","params":{}}`), &event)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(event.IsResponse(), jc.IsFalse)
	c.Check(event.IsLifecycle(), jc.IsFalse)

	var create params.Message
	err = json.Unmarshal([]byte(`{"guid":"","method":"__create__","params":{"type":"Page","guid":"page@1"}}`), &create)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(create.IsLifecycle(), jc.IsTrue)
}

func (*paramsSuite) TestCreateParent(c *gc.C) {
	var p params.CreateParams
	err := json.Unmarshal([]byte(`{"guid":"A","type":"Frame","initializer":{"url":"about:blank"}}`), &p)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(p.Parent, gc.IsNil)
	c.Check(string(p.Initializer), gc.Equals, `{"url":"about:blank"}`)

	err = json.Unmarshal([]byte(`{"guid":"A","type":"Frame","parent":""}`), &p)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(p.Parent, gc.NotNil)
	c.Check(*p.Parent, gc.Equals, "")
}
