package oclgrind

import (
	"github.com/oclgrind/oclgrind/api"
	"github.com/oclgrind/oclgrind/message"
)

// LogError sends an error message with the text err, followed by the execution context and info, if not empty.
//
// The execution context lists the current work-item, work-group and kernel, then the current instruction and its
// source location. Entries that are not current are omitted. Execution is not interrupted.
func (c *Context) LogError(err, info string) {
	msg := c.NewMessage(api.MessageTypeError)
	msg.Append(err, message.Endl, message.Indent)
	c.appendErrorContext(msg)
	if info != "" {
		msg.Append(info, message.Endl)
	}
	msg.Append(message.Unindent)
	msg.Send()
}

// LogMemoryError sends an error message describing an invalid access, followed by the execution context.
//
// Note: This panics if space is not a known address space.
func (c *Context) LogMemoryError(read bool, space api.AddressSpace, address, size uint64) {
	name, ok := api.AddressSpaceName(space)
	if !ok {
		panic("BUG: memory error in unsupported address space")
	}
	access := "write"
	if read {
		access = "read"
	}

	msg := c.NewMessage(api.MessageTypeError)
	msg.Append("Invalid ", access, " of size ", size, " at ", name, " memory address 0x",
		message.Hex, address, message.Dec, message.Endl, message.Indent)
	c.appendErrorContext(msg)
	msg.Append(message.Unindent)
	msg.Send()
}

func (c *Context) appendErrorContext(msg *message.Message) {
	invocation := c.kernelInvocation
	if invocation == nil {
		return
	}

	workItem := invocation.CurrentWorkItem()
	if workItem != nil {
		msg.Append("Work-item:  Global", workItem.GlobalID(), " Local", workItem.LocalID(), message.Endl)
	}
	if workGroup := invocation.CurrentWorkGroup(); workGroup != nil {
		msg.Append("Work-group: ", workGroup.GroupID(), message.Endl)
	}
	if kernel := invocation.Kernel(); kernel != nil {
		msg.Append("Kernel:     ", kernel.Name(), message.Endl)
	}
	if workItem != nil {
		msg.Append(message.CurrentLocation, message.Endl)
	}
}
