// Package racedetect implements the built-in plugin which reports data races between work-items.
//
// Every byte of global and local memory accessed during a kernel invocation is tracked with the last work-item that
// wrote it and the work-items that read it or accessed it atomically. An access conflicts with a previous one when
// they come from different work-items and at least one is a write, unless both are atomic. Barriers forget state that
// the barrier synchronized.
package racedetect

import (
	"github.com/oclgrind/oclgrind/api"
	"github.com/oclgrind/oclgrind/message"
)

// Race kinds, as printed in diagnostics.
const (
	ReadWrite  = "Read-write"
	WriteWrite = "Write-write"
)

type byteKey struct {
	memory  api.Memory
	address uint64
}

type accessKind uint8

const (
	accessLoad accessKind = iota
	accessStore
	accessAtomic
)

type accessor struct {
	global api.Size3
	entity string
}

// otherThan returns true if a is set and made by a different work-item than self.
func (a *accessor) otherThan(self *accessor) bool {
	return a != nil && a.global != self.global
}

type byteState struct {
	writer, reader *accessor
	// otherReader is a reader distinct from reader, kept once two work-items read the byte.
	otherReader *accessor
	// atomic and otherAtomic track atomic accesses the same way as reader and otherReader.
	atomic, otherAtomic *accessor

	group      api.Size3
	multiGroup bool
}

// Detector implements api.Plugin.
type Detector struct {
	api.PluginBase

	messages   message.Factory
	invocation api.KernelInvocation

	state    map[byteKey]*byteState
	reported map[byteKey]struct{}
	races    int
}

// New returns a Detector which reports races through messages.
func New(messages message.Factory) *Detector {
	return &Detector{
		messages: messages,
		state:    map[byteKey]*byteState{},
		reported: map[byteKey]struct{}{},
	}
}

// Races returns the count of races reported since creation.
func (d *Detector) Races() int {
	return d.races
}

// KernelBegin implements api.Plugin KernelBegin
func (d *Detector) KernelBegin(invocation api.KernelInvocation) {
	d.invocation = invocation
	clear(d.state)
	clear(d.reported)
}

// KernelEnd implements api.Plugin KernelEnd
func (d *Detector) KernelEnd(api.KernelInvocation) {
	d.invocation = nil
	clear(d.state)
	clear(d.reported)
}

// MemoryLoad implements api.Plugin MemoryLoad
func (d *Detector) MemoryLoad(memory api.Memory, address, size uint64) {
	d.access(memory, address, size, accessLoad)
}

// MemoryStore implements api.Plugin MemoryStore
func (d *Detector) MemoryStore(memory api.Memory, address, size uint64, _ []byte) {
	d.access(memory, address, size, accessStore)
}

// MemoryAtomic implements api.Plugin MemoryAtomic
func (d *Detector) MemoryAtomic(memory api.Memory, address, size uint64) {
	d.access(memory, address, size, accessAtomic)
}

// WorkGroupBarrier implements api.Plugin WorkGroupBarrier
func (d *Detector) WorkGroupBarrier(workGroup api.WorkGroup, flags uint32) {
	group := workGroup.GroupID()
	for key, s := range d.state {
		if s.group != group {
			continue
		}
		switch key.memory.AddressSpace() {
		case api.AddressSpaceLocal:
			if flags&api.FenceLocal != 0 {
				delete(d.state, key)
			}
		case api.AddressSpaceGlobal:
			if flags&api.FenceGlobal != 0 && !s.multiGroup {
				delete(d.state, key)
			}
		}
	}
}

func tracked(memory api.Memory) bool {
	switch memory.AddressSpace() {
	case api.AddressSpaceGlobal, api.AddressSpaceLocal:
		return true
	}
	return false
}

func (d *Detector) access(memory api.Memory, address, size uint64, kind accessKind) {
	if d.invocation == nil || !tracked(memory) {
		return
	}
	workItem := d.invocation.CurrentWorkItem()
	if workItem == nil {
		return // host-side access
	}
	workGroup := d.invocation.CurrentWorkGroup()
	var group api.Size3
	if workGroup != nil {
		group = workGroup.GroupID()
	}

	self := &accessor{global: workItem.GlobalID(), entity: message.Entity(workItem, workGroup)}

	var race string
	var first *accessor
	for a := address; a < address+size; a++ {
		key := byteKey{memory: memory, address: a}
		s, ok := d.state[key]
		if !ok {
			s = &byteState{group: group}
			d.state[key] = s
		} else if s.group != group {
			s.multiGroup = true
		}

		if race == "" {
			race, first = conflict(s, self, kind)
		}

		switch kind {
		case accessStore:
			s.writer = self
		case accessLoad:
			s.reader, s.otherReader = record(s.reader, s.otherReader, self)
		case accessAtomic:
			s.atomic, s.otherAtomic = record(s.atomic, s.otherAtomic, self)
		}
	}

	if race == "" {
		return
	}
	key := byteKey{memory: memory, address: address}
	if _, ok := d.reported[key]; ok {
		return
	}
	d.reported[key] = struct{}{}
	d.report(race, memory, address, first)
}

// record returns the new last and other accessors after self, keeping other distinct from last.
func record(last, other, self *accessor) (*accessor, *accessor) {
	if last == nil || last.global == self.global {
		return self, other
	}
	return self, last
}

// conflict returns the race kind and the earlier accessor if an access by self conflicts with s. Atomic accesses
// write, but never conflict with each other.
func conflict(s *byteState, self *accessor, kind accessKind) (string, *accessor) {
	writeKind := func() string {
		if kind == accessLoad {
			return ReadWrite
		}
		return WriteWrite
	}

	if s.writer.otherThan(self) {
		return writeKind(), s.writer
	}
	if kind != accessLoad {
		for _, r := range [...]*accessor{s.reader, s.otherReader} {
			if r.otherThan(self) {
				return ReadWrite, r
			}
		}
	}
	if kind != accessAtomic {
		for _, a := range [...]*accessor{s.atomic, s.otherAtomic} {
			if a.otherThan(self) {
				return writeKind(), a
			}
		}
	}
	return "", nil
}

func (d *Detector) report(race string, memory api.Memory, address uint64, first *accessor) {
	d.races++
	space, _ := api.AddressSpaceName(memory.AddressSpace())

	msg := d.messages.NewMessage(api.MessageTypeError)
	msg.Append(race, " data race at ", space, " memory address 0x", message.Hex, address, message.Dec, message.Endl,
		message.Indent,
		"Kernel:        ", message.CurrentKernel, message.Endl,
		"First entity:  ", first.entity, message.Endl,
		"Second entity: ", message.CurrentEntity, message.Endl,
		message.CurrentLocation, message.Endl,
		message.Unindent)
	msg.Send()
}
