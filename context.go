// Package oclgrind includes the notification hub of a simulated OpenCL device.
//
// The interpreter reports every execution event to a Context, which forwards it synchronously to each registered
// api.Plugin, in registration order. The Context also owns global memory and formats runtime errors with the
// work-item, work-group, kernel and source line current when they occurred.
package oclgrind

import (
	"github.com/inconshreveable/log15"

	"github.com/oclgrind/oclgrind/api"
	"github.com/oclgrind/oclgrind/internal/memory"
	"github.com/oclgrind/oclgrind/message"
)

// Context is the notification hub. It is not safe for concurrent use.
//
// Note: Close releases global memory and plugins. A Context must not be used after Close.
type Context struct {
	config *ContextConfig
	log    log15.Logger

	globalMemory *memory.Memory

	plugins   []pluginRecord
	libraries []loadedLibrary

	// kernelInvocation is the current invocation, or nil between NotifyKernelBegin and NotifyKernelEnd.
	kernelInvocation api.KernelInvocation
	closed           bool
}

// NewContext returns a Context configured from OCLGRIND_ environment variables. See NewContextConfigFromEnv.
func NewContext() *Context {
	return NewContextWithConfig(NewContextConfigFromEnv())
}

// NewContextWithConfig returns a Context with the given configuration. Enabled built-in plugins are registered first,
// then plugin libraries are loaded in order.
func NewContextWithConfig(config *ContextConfig) *Context {
	if config == nil {
		config = NewContextConfig()
	}
	config = config.clone()
	c := &Context{config: config, log: config.newLogger()}
	c.globalMemory = memory.New(api.AddressSpaceGlobal, c)
	c.loadPlugins()
	return c
}

// Close releases global memory, then unloads plugin libraries and closes plugins created by the Context. Errors
// closing plugins are logged and returned joined. Subsequent calls return nil.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.globalMemory.Release()
	return c.unloadPlugins()
}

// GlobalMemory returns the global memory region, whose accesses notify plugins.
func (c *Context) GlobalMemory() api.DeviceMemory {
	return c.globalMemory
}

// CurrentInvocation returns the kernel invocation in progress, or nil if none is.
func (c *Context) CurrentInvocation() api.KernelInvocation {
	return c.kernelInvocation
}

// NewMessage returns a message bound to this Context and the current kernel invocation.
//
// Note: The invocation is captured now, so context tokens appended after the kernel ends still describe it.
func (c *Context) NewMessage(messageType api.MessageType) *message.Message {
	return message.New(messageType, c, c.kernelInvocation)
}

// NotifyInstructionExecuted notifies plugins that workItem executed instruction, producing result.
func (c *Context) NotifyInstructionExecuted(workItem api.WorkItem, instruction api.Instruction, result api.TypedValue) {
	for _, r := range c.plugins {
		r.plugin.InstructionExecuted(workItem, instruction, result)
	}
}

// NotifyKernelBegin makes invocation current, then notifies plugins.
//
// Note: This panics if another invocation is current.
func (c *Context) NotifyKernelBegin(invocation api.KernelInvocation) {
	if c.kernelInvocation != nil {
		panic("BUG: kernel invocation began while another is in progress")
	}
	c.kernelInvocation = invocation
	for _, r := range c.plugins {
		r.plugin.KernelBegin(invocation)
	}
}

// NotifyKernelEnd notifies plugins, then clears the current invocation.
//
// Note: This panics if invocation is not the current one.
func (c *Context) NotifyKernelEnd(invocation api.KernelInvocation) {
	for _, r := range c.plugins {
		r.plugin.KernelEnd(invocation)
	}
	if c.kernelInvocation != invocation {
		panic("BUG: kernel invocation ended but is not in progress")
	}
	c.kernelInvocation = nil
}

// NotifyMemoryAllocated notifies plugins that size bytes were allocated at address.
func (c *Context) NotifyMemoryAllocated(memory api.Memory, address, size uint64) {
	for _, r := range c.plugins {
		r.plugin.MemoryAllocated(memory, address, size)
	}
}

// NotifyMemoryDeallocated notifies plugins that the allocation at address was released.
func (c *Context) NotifyMemoryDeallocated(memory api.Memory, address uint64) {
	for _, r := range c.plugins {
		r.plugin.MemoryDeallocated(memory, address)
	}
}

// NotifyMemoryAtomic notifies plugins of an atomic access of size bytes at address.
func (c *Context) NotifyMemoryAtomic(memory api.Memory, address, size uint64) {
	for _, r := range c.plugins {
		r.plugin.MemoryAtomic(memory, address, size)
	}
}

// NotifyMemoryLoad notifies plugins of a load of size bytes at address.
func (c *Context) NotifyMemoryLoad(memory api.Memory, address, size uint64) {
	for _, r := range c.plugins {
		r.plugin.MemoryLoad(memory, address, size)
	}
}

// NotifyMemoryStore notifies plugins that data is about to be stored at address.
func (c *Context) NotifyMemoryStore(memory api.Memory, address, size uint64, data []byte) {
	for _, r := range c.plugins {
		r.plugin.MemoryStore(memory, address, size, data)
	}
}

// NotifyMessage implements message.Notifier by passing a formatted message to each plugin's Log.
func (c *Context) NotifyMessage(messageType api.MessageType, msg string) {
	for _, r := range c.plugins {
		r.plugin.Log(messageType, msg)
	}
}

// NotifyWorkGroupBarrier notifies plugins that every work-item of workGroup reached a barrier.
func (c *Context) NotifyWorkGroupBarrier(workGroup api.WorkGroup, flags uint32) {
	for _, r := range c.plugins {
		r.plugin.WorkGroupBarrier(workGroup, flags)
	}
}

var (
	_ message.Factory  = (*Context)(nil)
	_ message.Notifier = (*Context)(nil)
	_ memory.Observer  = (*Context)(nil)
)
