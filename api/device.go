// Package api includes constants and interfaces used by both plugin authors and the simulated device.
//
// The interpreter, memory subsystem and scheduler are implemented elsewhere. This package only declares the narrow
// query surface the notification hub and its plugins rely on.
package api

import (
	"fmt"
	"strconv"
)

// MessageType classifies a diagnostic message sent through the hub.
type MessageType uint8

const (
	MessageTypeDebug MessageType = iota
	MessageTypeInfo
	MessageTypeWarning
	MessageTypeError
)

// String implements fmt.Stringer.
func (t MessageType) String() string {
	switch t {
	case MessageTypeDebug:
		return "debug"
	case MessageTypeInfo:
		return "info"
	case MessageTypeWarning:
		return "warning"
	case MessageTypeError:
		return "error"
	}
	return fmt.Sprintf("<unknown=%d>", t)
}

// AddressSpace is an OpenCL address space tag.
type AddressSpace uint32

const (
	AddressSpacePrivate  AddressSpace = 0
	AddressSpaceGlobal   AddressSpace = 1
	AddressSpaceConstant AddressSpace = 2
	AddressSpaceLocal    AddressSpace = 3
)

// AddressSpaceName returns the human label of the address space and false if the tag is not recognized.
func AddressSpaceName(s AddressSpace) (string, bool) {
	switch s {
	case AddressSpacePrivate:
		return "private", true
	case AddressSpaceGlobal:
		return "global", true
	case AddressSpaceConstant:
		return "constant", true
	case AddressSpaceLocal:
		return "local", true
	}
	return "", false
}

// Barrier fence flags passed to Plugin.WorkGroupBarrier. These match CLK_LOCAL_MEM_FENCE and CLK_GLOBAL_MEM_FENCE.
const (
	FenceLocal  uint32 = 1 << 0
	FenceGlobal uint32 = 1 << 1
)

// Size3 is a three-dimensional index or size, such as a work-item global ID.
type Size3 struct {
	X, Y, Z uint64
}

// String implements fmt.Stringer, formatting as "(x,y,z)".
func (s Size3) String() string {
	b := make([]byte, 0, 16)
	b = append(b, '(')
	b = strconv.AppendUint(b, s.X, 10)
	b = append(b, ',')
	b = strconv.AppendUint(b, s.Y, 10)
	b = append(b, ',')
	b = strconv.AppendUint(b, s.Z, 10)
	b = append(b, ')')
	return string(b)
}

// TypedValue is the result of an executed instruction.
//
// Size is the byte width of one element and Num the element count, so len(Data) == Size*Num.
type TypedValue struct {
	Size, Num uint32
	Data      []byte
}

// DebugLocation is the source position attached to an instruction through debug metadata.
type DebugLocation struct {
	Line uint32
	File string
}

// Instruction is an interpreted IR instruction.
type Instruction interface {
	// String returns the textual form of the instruction, as printed in diagnostics.
	String() string

	// Opcode returns the opcode name, e.g. "add" or "load".
	Opcode() string

	// DebugLocation returns the source location and true if debug metadata is attached.
	DebugLocation() (DebugLocation, bool)
}

// Program is the compiled program a kernel belongs to.
type Program interface {
	// NumSourceLines returns the count of lines in the program source, or zero if the source is unknown.
	NumSourceLines() int

	// SourceLine returns the 1-based source line and false if out of range.
	SourceLine(line int) (string, bool)
}

// Kernel is a kernel function of a Program.
type Kernel interface {
	Name() string

	// Program returns the owning program, or nil if it was not retained.
	Program() Program
}

// WorkItem is a single work-item of a kernel invocation.
type WorkItem interface {
	GlobalID() Size3
	LocalID() Size3

	// CurrentInstruction returns the instruction being executed, or nil before the first instruction.
	CurrentInstruction() Instruction
}

// WorkGroup is a work-group of a kernel invocation.
type WorkGroup interface {
	GroupID() Size3
}

// KernelInvocation is a single enqueue of a Kernel. At most one is current on a hub at any time.
type KernelInvocation interface {
	// Kernel returns the kernel being executed, or nil if it is not known.
	Kernel() Kernel

	// CurrentWorkItem returns the work-item being executed, or nil if none is.
	CurrentWorkItem() WorkItem

	// CurrentWorkGroup returns the work-group being executed, or nil if none is.
	CurrentWorkGroup() WorkGroup
}

// Memory is a region of simulated device memory.
type Memory interface {
	AddressSpace() AddressSpace
}

// DeviceMemory is the global memory region owned by the hub. Every access notifies the registered plugins, and
// invalid accesses are reported as errors.
type DeviceMemory interface {
	Memory

	// Allocate returns the address of a new zeroed buffer of size bytes.
	Allocate(size uint64) (uint64, error)

	// Deallocate releases the buffer starting at address.
	Deallocate(address uint64) error

	// Load returns a copy of size bytes at address, or false if the range is not within one buffer.
	Load(address, size uint64) ([]byte, bool)

	// Store writes data at address, or returns false if the range is not within one buffer.
	Store(address uint64, data []byte) bool

	// AtomicAdd32 adds v to the little-endian uint32 at address, returning the previous value.
	AtomicAdd32(address uint64, v uint32) (uint32, bool)

	// TotalAllocated returns the sum of sizes of live buffers.
	TotalAllocated() uint64
}
