package api

// Plugin observes execution events fanned out by the hub.
//
// Each hook is invoked synchronously, in registration order, for every event. Embed PluginBase to implement only the
// hooks of interest.
//
// Note: Plugins are compared by identity on unregistration, so implementations must be comparable. Use pointer
// receivers.
type Plugin interface {
	// InstructionExecuted is invoked after workItem executed instruction, producing result.
	InstructionExecuted(workItem WorkItem, instruction Instruction, result TypedValue)

	// KernelBegin is invoked once the invocation became current on the hub.
	KernelBegin(invocation KernelInvocation)

	// KernelEnd is invoked before the invocation stops being current on the hub.
	KernelEnd(invocation KernelInvocation)

	MemoryAllocated(memory Memory, address, size uint64)
	MemoryDeallocated(memory Memory, address uint64)
	MemoryAtomic(memory Memory, address, size uint64)
	MemoryLoad(memory Memory, address, size uint64)

	// MemoryStore is invoked before data is written. data must not be retained.
	MemoryStore(memory Memory, address, size uint64, data []byte)

	// WorkGroupBarrier is invoked when every work-item of workGroup reached a barrier. flags is a mask of FenceLocal
	// and FenceGlobal.
	WorkGroupBarrier(workGroup WorkGroup, flags uint32)

	// Log is invoked with each finished diagnostic message.
	Log(messageType MessageType, message string)
}

// PluginBase implements every Plugin hook as a no-op.
type PluginBase struct{}

func (PluginBase) InstructionExecuted(WorkItem, Instruction, TypedValue) {}
func (PluginBase) KernelBegin(KernelInvocation)                          {}
func (PluginBase) KernelEnd(KernelInvocation)                            {}
func (PluginBase) MemoryAllocated(Memory, uint64, uint64)                {}
func (PluginBase) MemoryDeallocated(Memory, uint64)                      {}
func (PluginBase) MemoryAtomic(Memory, uint64, uint64)                   {}
func (PluginBase) MemoryLoad(Memory, uint64, uint64)                     {}
func (PluginBase) MemoryStore(Memory, uint64, uint64, []byte)            {}
func (PluginBase) WorkGroupBarrier(WorkGroup, uint32)                    {}
func (PluginBase) Log(MessageType, string)                               {}
