// Package instcount implements the built-in plugin which counts executed instructions per opcode.
package instcount

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/oclgrind/oclgrind/api"
	"github.com/oclgrind/oclgrind/message"
)

// Count is the number of times an opcode executed.
type Count struct {
	Opcode string
	Count  uint64
}

// Counter implements api.Plugin. At the end of each kernel it sends an info message listing the opcodes executed,
// most frequent first.
type Counter struct {
	api.PluginBase

	messages message.Factory
	counts   map[string]uint64
	total    uint64
}

// New returns a Counter which sends its summary through messages.
func New(messages message.Factory) *Counter {
	return &Counter{messages: messages, counts: map[string]uint64{}}
}

// KernelBegin implements api.Plugin KernelBegin
func (c *Counter) KernelBegin(api.KernelInvocation) {
	clear(c.counts)
}

// InstructionExecuted implements api.Plugin InstructionExecuted
func (c *Counter) InstructionExecuted(_ api.WorkItem, instruction api.Instruction, _ api.TypedValue) {
	c.counts[instruction.Opcode()]++
	c.total++
}

// KernelEnd implements api.Plugin KernelEnd
func (c *Counter) KernelEnd(invocation api.KernelInvocation) {
	msg := c.messages.NewMessage(api.MessageTypeInfo)
	msg.Append("Instructions executed for kernel '", message.KernelName(invocation), "':", message.Endl, message.Indent)
	for _, count := range c.Counts() {
		msg.Append(fmt.Sprintf("%16d - %s", count.Count, count.Opcode), message.Endl)
	}
	msg.Append(message.Unindent)
	msg.Send()
}

// Counts returns the opcodes executed by the current or last kernel, sorted by descending count then opcode.
func (c *Counter) Counts() []Count {
	counts := make([]Count, 0, len(c.counts))
	for _, op := range slices.Sorted(maps.Keys(c.counts)) {
		counts = append(counts, Count{Opcode: op, Count: c.counts[op]})
	}
	slices.SortStableFunc(counts, func(a, b Count) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return counts
}

// Total returns the count of instructions executed across all kernels.
func (c *Counter) Total() uint64 {
	return c.total
}
