// Package simtest includes fakes of the simulated device collaborators, for use in tests.
package simtest

import (
	"fmt"

	"github.com/oclgrind/oclgrind/api"
)

// Instruction implements api.Instruction.
type Instruction struct {
	Text, Op string
	// Line is zero when there is no debug metadata.
	Line uint32
	File string
}

func (i *Instruction) String() string { return i.Text }
func (i *Instruction) Opcode() string { return i.Op }

func (i *Instruction) DebugLocation() (api.DebugLocation, bool) {
	if i.Line == 0 {
		return api.DebugLocation{}, false
	}
	return api.DebugLocation{Line: i.Line, File: i.File}, true
}

// Program implements api.Program over in-memory source lines.
type Program struct {
	Lines []string
}

func (p *Program) NumSourceLines() int { return len(p.Lines) }

func (p *Program) SourceLine(line int) (string, bool) {
	if line < 1 || line > len(p.Lines) {
		return "", false
	}
	return p.Lines[line-1], true
}

// Kernel implements api.Kernel.
type Kernel struct {
	KernelName string
	// Prog is nil unless a test needs source lines.
	Prog *Program
}

func (k *Kernel) Name() string { return k.KernelName }

func (k *Kernel) Program() api.Program {
	if k.Prog == nil {
		return nil
	}
	return k.Prog
}

// WorkItem implements api.WorkItem.
type WorkItem struct {
	Global, Local api.Size3
	Instruction   *Instruction
}

func (w *WorkItem) GlobalID() api.Size3 { return w.Global }
func (w *WorkItem) LocalID() api.Size3  { return w.Local }

func (w *WorkItem) CurrentInstruction() api.Instruction {
	if w.Instruction == nil {
		return nil
	}
	return w.Instruction
}

// WorkGroup implements api.WorkGroup.
type WorkGroup struct {
	ID api.Size3
}

func (w *WorkGroup) GroupID() api.Size3 { return w.ID }

// Invocation implements api.KernelInvocation. Tests mutate WorkItem and WorkGroup to simulate scheduling.
type Invocation struct {
	K         *Kernel
	WorkItem  *WorkItem
	WorkGroup *WorkGroup
}

// NewInvocation returns an invocation of a kernel with the given name, with nothing scheduled.
func NewInvocation(kernelName string) *Invocation {
	return &Invocation{K: &Kernel{KernelName: kernelName}}
}

func (i *Invocation) Kernel() api.Kernel {
	if i.K == nil {
		return nil
	}
	return i.K
}

// CurrentWorkItem returns a nil interface, not a typed nil, when no work-item is set.
func (i *Invocation) CurrentWorkItem() api.WorkItem {
	if i.WorkItem == nil {
		return nil
	}
	return i.WorkItem
}

func (i *Invocation) CurrentWorkGroup() api.WorkGroup {
	if i.WorkGroup == nil {
		return nil
	}
	return i.WorkGroup
}

// Schedule sets the current work-item and work-group.
func (i *Invocation) Schedule(wi *WorkItem, wg *WorkGroup) {
	i.WorkItem, i.WorkGroup = wi, wg
}

// Memory implements api.Memory.
type Memory struct {
	Space api.AddressSpace
}

func (m *Memory) AddressSpace() api.AddressSpace { return m.Space }

// Recorder is a plugin which appends a line per observed event to Events, prefixed with Name.
//
// Multiple recorders can share the same Events slice to assert fan-out order.
type Recorder struct {
	Name   string
	Events *[]string
}

// NewRecorder returns a Recorder appending to events.
func NewRecorder(name string, events *[]string) *Recorder {
	return &Recorder{Name: name, Events: events}
}

func (r *Recorder) record(format string, args ...interface{}) {
	*r.Events = append(*r.Events, r.Name+":"+fmt.Sprintf(format, args...))
}

func (r *Recorder) InstructionExecuted(_ api.WorkItem, instruction api.Instruction, result api.TypedValue) {
	r.record("InstructionExecuted(%s,%d)", instruction.Opcode(), len(result.Data))
}

func (r *Recorder) KernelBegin(invocation api.KernelInvocation) {
	r.record("KernelBegin(%s)", kernelName(invocation))
}

func (r *Recorder) KernelEnd(invocation api.KernelInvocation) {
	r.record("KernelEnd(%s)", kernelName(invocation))
}

func (r *Recorder) MemoryAllocated(_ api.Memory, address, size uint64) {
	r.record("MemoryAllocated(%#x,%d)", address, size)
}

func (r *Recorder) MemoryDeallocated(_ api.Memory, address uint64) {
	r.record("MemoryDeallocated(%#x)", address)
}

func (r *Recorder) MemoryAtomic(_ api.Memory, address, size uint64) {
	r.record("MemoryAtomic(%#x,%d)", address, size)
}

func (r *Recorder) MemoryLoad(_ api.Memory, address, size uint64) {
	r.record("MemoryLoad(%#x,%d)", address, size)
}

func (r *Recorder) MemoryStore(_ api.Memory, address, size uint64, data []byte) {
	r.record("MemoryStore(%#x,%d,%x)", address, size, data)
}

func (r *Recorder) WorkGroupBarrier(workGroup api.WorkGroup, flags uint32) {
	r.record("WorkGroupBarrier(%s,%d)", workGroup.GroupID(), flags)
}

func (r *Recorder) Log(messageType api.MessageType, message string) {
	r.record("Log(%s,%q)", messageType, message)
}

func kernelName(invocation api.KernelInvocation) string {
	if k := invocation.Kernel(); k != nil {
		return k.Name()
	}
	return "<nil>"
}

var _ api.Plugin = (*Recorder)(nil)
