package simgraph

import (
	"github.com/katalvlaran/dataflowgraph/handle"
	"github.com/katalvlaran/dataflowgraph/port"
)

// publishForward is shared by initContext's InitContext implementation:
// record that originPort is really replacementPort on the node at
// replacementIndex (spec.md §3 "Forwarding table").
func (s *Set) publishForward(self handle.NodeHandle, originPort uint16, isInput bool, replacementIndex uint32, replacementPort uint16) {
	rec, ok := s.nodeArena.Get(self)
	if !ok {
		return
	}
	entry := port.ForwardEntry[uint32]{
		OriginPort:      port.ID(originPort),
		OriginIsInput:   isInput,
		Replacement:     replacementIndex,
		ReplacementPort: port.ID(replacementPort),
	}
	if isInput {
		rec.forwardIn.Insert(entry)
	} else {
		rec.forwardOut.Insert(entry)
	}
}

// initContext implements ndef.InitContext, handed to InitFunc once at
// node creation.
type initContext struct {
	set  *Set
	self handle.NodeHandle
}

func (c *initContext) Logf(format string, args ...interface{}) { c.set.logf(format, args...) }

func (c *initContext) Data() interface{} {
	rec, ok := c.set.nodeArena.Get(c.self)
	if !ok {
		return nil
	}

	return rec.data
}

func (c *initContext) PublishForward(originPort uint16, isInput bool, replacementIndex uint32, replacementPort uint16) {
	c.set.publishForward(c.self, originPort, isInput, replacementIndex, replacementPort)
}

// destroyContext implements ndef.DestroyContext, handed to DestroyFunc.
type destroyContext struct {
	set  *Set
	self handle.NodeHandle
}

func (c *destroyContext) Logf(format string, args ...interface{}) { c.set.logf(format, args...) }

func (c *destroyContext) Data() interface{} {
	rec, ok := c.set.nodeArena.Get(c.self)
	if !ok {
		return nil
	}

	return rec.data
}

// updateContext implements ndef.UpdateContext, handed to UpdateFunc once
// per frame for every node on the update list (spec.md §4.7).
type updateContext struct {
	set  *Set
	self handle.NodeHandle
}

func (c *updateContext) Logf(format string, args ...interface{}) { c.set.logf(format, args...) }

func (c *updateContext) Data() interface{} {
	rec, ok := c.set.nodeArena.Get(c.self)
	if !ok {
		return nil
	}

	return rec.data
}

func (c *updateContext) EmitMessage(p uint16, value interface{}) {
	_ = c.set.emitMessage(c.self, port.ID(p), port.NoIndex, value)
}

func (c *updateContext) RegisterForUpdate() { _ = c.set.updates.register(c.self.Index) }

func (c *updateContext) RemoveFromUpdate() { _ = c.set.updates.unregister(c.self.Index) }

// messageContext implements ndef.MessageContext, handed to MessageFunc
// on an inbound message (spec.md §4.6).
type messageContext struct {
	set  *Set
	self handle.NodeHandle
}

func (c *messageContext) Logf(format string, args ...interface{}) { c.set.logf(format, args...) }

func (c *messageContext) Data() interface{} {
	rec, ok := c.set.nodeArena.Get(c.self)
	if !ok {
		return nil
	}

	return rec.data
}

func (c *messageContext) EmitMessage(p uint16, value interface{}) {
	_ = c.set.emitMessage(c.self, port.ID(p), port.NoIndex, value)
}
