package oclgrind

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oclgrind/oclgrind/api"
	"github.com/oclgrind/oclgrind/internal/testing/simtest"
)

func TestContext_LogError(t *testing.T) {
	store := &simtest.Instruction{Text: "store i32 %v, i32* %p", Op: "store", Line: 12, File: "vecadd.cl"}
	wi := &simtest.WorkItem{Global: api.Size3{X: 5}, Local: api.Size3{X: 1}, Instruction: store}
	wg := &simtest.WorkGroup{ID: api.Size3{X: 2}}

	tests := []struct {
		name       string
		invocation *simtest.Invocation
		info       string
		expected   string
	}{
		{
			name:     "no invocation",
			expected: "Division by zero\n",
		},
		{
			name:     "no invocation with info",
			info:     "check the divisor",
			expected: "Division by zero\n\tcheck the divisor\n",
		},
		{
			name:       "full context",
			invocation: &simtest.Invocation{K: &simtest.Kernel{KernelName: "vecadd"}, WorkItem: wi, WorkGroup: wg},
			info:       "check the divisor",
			expected: "Division by zero\n" +
				"\tWork-item:  Global(5,0,0) Local(1,0,0)\n" +
				"\tWork-group: (2,0,0)\n" +
				"\tKernel:     vecadd\n" +
				"\tstore i32 %v, i32* %p\n" +
				"\tAt line 12 of vecadd.cl\n" +
				"\tcheck the divisor\n",
		},
		{
			name:       "no work-item",
			invocation: &simtest.Invocation{K: &simtest.Kernel{KernelName: "vecadd"}, WorkGroup: wg},
			expected: "Division by zero\n" +
				"\tWork-group: (2,0,0)\n" +
				"\tKernel:     vecadd\n",
		},
		{
			name: "no debug information",
			invocation: &simtest.Invocation{
				K:        &simtest.Kernel{KernelName: "vecadd"},
				WorkItem: &simtest.WorkItem{Instruction: &simtest.Instruction{Text: "udiv", Op: "udiv"}},
			},
			expected: "Division by zero\n" +
				"\tWork-item:  Global(0,0,0) Local(0,0,0)\n" +
				"\tKernel:     vecadd\n" +
				"\tudiv\n" +
				"\tDebugging information not available.\n",
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			ctx, _, _ := newTestContext(t, nil)
			var events []string
			ctx.RegisterPlugin(simtest.NewRecorder("r", &events))

			if tc.invocation != nil {
				ctx.NotifyKernelBegin(tc.invocation)
				events = events[:0]
			}
			ctx.LogError("Division by zero", tc.info)

			require.Equal(t, []string{"r:Log(error," + strconv.Quote(tc.expected) + ")"}, events)
		})
	}
}

func TestContext_LogMemoryError(t *testing.T) {
	load := &simtest.Instruction{Text: "%v = load i32* %p", Op: "load", Line: 3, File: "k.cl"}
	inv := &simtest.Invocation{
		K:         &simtest.Kernel{KernelName: "k"},
		WorkItem:  &simtest.WorkItem{Global: api.Size3{X: 3, Y: 1}, Local: api.Size3{X: 3}, Instruction: load},
		WorkGroup: &simtest.WorkGroup{ID: api.Size3{Y: 1}},
	}

	tests := []struct {
		name     string
		read     bool
		space    api.AddressSpace
		expected string
	}{
		{
			name:     "read private",
			read:     true,
			space:    api.AddressSpacePrivate,
			expected: "Invalid read of size 4 at private memory address 0xff",
		},
		{
			name:     "write global",
			space:    api.AddressSpaceGlobal,
			expected: "Invalid write of size 4 at global memory address 0xff",
		},
		{
			name:     "read constant",
			read:     true,
			space:    api.AddressSpaceConstant,
			expected: "Invalid read of size 4 at constant memory address 0xff",
		},
		{
			name:     "write local",
			space:    api.AddressSpaceLocal,
			expected: "Invalid write of size 4 at local memory address 0xff",
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			ctx, stderr, _ := newTestContext(t, nil)
			ctx.NotifyKernelBegin(inv)

			ctx.LogMemoryError(tc.read, tc.space, 0xff, 4)
			require.Equal(t, "\n"+tc.expected+"\n"+
				"\tWork-item:  Global(3,1,0) Local(3,0,0)\n"+
				"\tWork-group: (0,1,0)\n"+
				"\tKernel:     k\n"+
				"\t%v = load i32* %p\n"+
				"\tAt line 3 of k.cl\n\n", stderr.String())
		})
	}
}

func TestContext_LogMemoryError_UnknownAddressSpace(t *testing.T) {
	ctx, stderr, _ := newTestContext(t, nil)

	require.PanicsWithValue(t, "BUG: memory error in unsupported address space", func() {
		ctx.LogMemoryError(true, api.AddressSpace(7), 0, 4)
	})
	require.Empty(t, stderr.String())
}
