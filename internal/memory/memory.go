// Package memory implements the simulated global memory region owned by the notification hub.
package memory

import (
	"encoding/binary"
	"errors"

	"github.com/oclgrind/oclgrind/api"
)

var (
	ErrInvalidSize    = errors.New("invalid allocation size")
	ErrOutOfMemory    = errors.New("out of memory")
	ErrInvalidAddress = errors.New("invalid address")
)

const (
	// NumBufferBits is the count of high address bits selecting a buffer. The remaining bits are the offset.
	NumBufferBits = 16
	// MaxBufferSize is the largest size a single allocation can have.
	MaxBufferSize = uint64(1) << (64 - NumBufferBits)

	offsetBits = 64 - NumBufferBits
	offsetMask = MaxBufferSize - 1
	maxBuffers = 1 << NumBufferBits
)

// Observer is notified of every access. The hub implements this.
type Observer interface {
	NotifyMemoryAllocated(memory api.Memory, address, size uint64)
	NotifyMemoryDeallocated(memory api.Memory, address uint64)
	NotifyMemoryAtomic(memory api.Memory, address, size uint64)
	NotifyMemoryLoad(memory api.Memory, address, size uint64)
	NotifyMemoryStore(memory api.Memory, address, size uint64, data []byte)
	LogMemoryError(read bool, space api.AddressSpace, address, size uint64)
}

// Memory is a set of independently allocated buffers, addressed by buffer index in the high bits and offset in the
// low bits. Buffer index zero is never allocated, so zero is never a valid address.
//
// Memory implements api.Memory.
type Memory struct {
	space    api.AddressSpace
	observer Observer

	buffers [][]byte
	// free holds released buffer indexes for reuse, most recent last.
	free []int

	totalAllocated uint64
}

// New returns an empty Memory in the given address space, reporting to observer.
func New(space api.AddressSpace, observer Observer) *Memory {
	return &Memory{space: space, observer: observer, buffers: [][]byte{nil}}
}

// AddressSpace implements api.Memory AddressSpace
func (m *Memory) AddressSpace() api.AddressSpace {
	return m.space
}

// TotalAllocated returns the sum of sizes of live buffers.
func (m *Memory) TotalAllocated() uint64 {
	return m.totalAllocated
}

// Allocate returns the address of a new zeroed buffer of the given size.
func (m *Memory) Allocate(size uint64) (uint64, error) {
	if size == 0 {
		return 0, ErrInvalidSize
	}
	if size > MaxBufferSize {
		return 0, ErrOutOfMemory
	}

	var idx int
	if n := len(m.free); n > 0 {
		idx = m.free[n-1]
		m.free = m.free[:n-1]
	} else if len(m.buffers) < maxBuffers {
		idx = len(m.buffers)
		m.buffers = append(m.buffers, nil)
	} else {
		return 0, ErrOutOfMemory
	}

	m.buffers[idx] = make([]byte, size)
	m.totalAllocated += size

	address := uint64(idx) << offsetBits
	m.observer.NotifyMemoryAllocated(m, address, size)
	return address, nil
}

// Deallocate releases the buffer starting at address.
func (m *Memory) Deallocate(address uint64) error {
	idx := int(address >> offsetBits)
	if address&offsetMask != 0 || idx == 0 || idx >= len(m.buffers) || m.buffers[idx] == nil {
		return ErrInvalidAddress
	}
	m.release(idx)
	return nil
}

func (m *Memory) release(idx int) {
	m.totalAllocated -= uint64(len(m.buffers[idx]))
	m.buffers[idx] = nil
	m.free = append(m.free, idx)
	m.observer.NotifyMemoryDeallocated(m, uint64(idx)<<offsetBits)
}

// Release deallocates every live buffer, in address order.
func (m *Memory) Release() {
	for idx := 1; idx < len(m.buffers); idx++ {
		if m.buffers[idx] != nil {
			m.release(idx)
		}
	}
}

// buffer returns the bytes at [address, address+size) or false if any byte is outside a live buffer.
func (m *Memory) buffer(address, size uint64) ([]byte, bool) {
	idx := address >> offsetBits
	if idx == 0 || idx >= uint64(len(m.buffers)) {
		return nil, false
	}
	buf := m.buffers[idx]
	offset := address & offsetMask
	if buf == nil || size > uint64(len(buf)) || offset > uint64(len(buf))-size {
		return nil, false
	}
	return buf[offset : offset+size : offset+size], true
}

// Load returns a copy of size bytes at address. An invalid access is reported as a memory error and returns false.
func (m *Memory) Load(address, size uint64) ([]byte, bool) {
	buf, ok := m.buffer(address, size)
	if !ok {
		m.observer.LogMemoryError(true, m.space, address, size)
		return nil, false
	}
	m.observer.NotifyMemoryLoad(m, address, size)
	ret := make([]byte, size)
	copy(ret, buf)
	return ret, true
}

// Store writes data at address. An invalid access is reported as a memory error and returns false.
func (m *Memory) Store(address uint64, data []byte) bool {
	size := uint64(len(data))
	buf, ok := m.buffer(address, size)
	if !ok {
		m.observer.LogMemoryError(false, m.space, address, size)
		return false
	}
	m.observer.NotifyMemoryStore(m, address, size, data)
	copy(buf, data)
	return true
}

// AtomicAdd32 adds v to the little-endian uint32 at address, returning the previous value.
func (m *Memory) AtomicAdd32(address uint64, v uint32) (uint32, bool) {
	buf, ok := m.buffer(address, 4)
	if !ok {
		m.observer.LogMemoryError(false, m.space, address, 4)
		return 0, false
	}
	m.observer.NotifyMemoryAtomic(m, address, 4)
	old := binary.LittleEndian.Uint32(buf)
	binary.LittleEndian.PutUint32(buf, old+v)
	return old, true
}
