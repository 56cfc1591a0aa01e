// Package debugger implements the built-in interactive debugger plugin.
//
// The debugger stops at the start of each kernel and whenever execution reaches a source line with a breakpoint, or
// any new source line while stepping. While stopped, it reads one command per line from its input.
package debugger

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/oclgrind/oclgrind/api"
	"github.com/oclgrind/oclgrind/message"
)

const (
	prompt = "(oclgrind) "
	// listContext is the count of lines printed either side of the current line by "list".
	listContext = 5
)

type breakpoint struct {
	id   int
	line uint32
}

// Debugger implements api.Plugin.
type Debugger struct {
	api.PluginBase

	in  *bufio.Scanner
	out io.Writer

	invocation  api.KernelInvocation
	breakpoints []breakpoint
	nextID      int

	stepping bool
	// detached is set by "quit" or end of input, after which the debugger no longer stops.
	detached bool
	lastLine uint32
}

// New returns a Debugger reading commands from in and writing to out.
func New(in io.Reader, out io.Writer) *Debugger {
	return &Debugger{in: bufio.NewScanner(in), out: out, nextID: 1}
}

// KernelBegin implements api.Plugin KernelBegin
func (d *Debugger) KernelBegin(invocation api.KernelInvocation) {
	d.invocation = invocation
	d.lastLine = 0
	d.stepping = false
	if d.detached {
		return
	}
	fmt.Fprintf(d.out, "Running kernel '%s'\n", message.KernelName(invocation))
	d.prompt()
}

// KernelEnd implements api.Plugin KernelEnd
func (d *Debugger) KernelEnd(invocation api.KernelInvocation) {
	if !d.detached {
		fmt.Fprintf(d.out, "Kernel '%s' completed\n", message.KernelName(invocation))
	}
	d.invocation = nil
}

// InstructionExecuted implements api.Plugin InstructionExecuted
func (d *Debugger) InstructionExecuted(_ api.WorkItem, instruction api.Instruction, _ api.TypedValue) {
	if d.detached {
		return
	}
	loc, ok := instruction.DebugLocation()
	if !ok || loc.Line == d.lastLine {
		return
	}
	d.lastLine = loc.Line

	if d.stepping {
		d.printLocation(instruction)
		d.prompt()
		return
	}
	for _, bp := range d.breakpoints {
		if bp.line == loc.Line {
			fmt.Fprintf(d.out, "Breakpoint %d hit at line %d\n", bp.id, loc.Line)
			d.printLocation(instruction)
			d.prompt()
			return
		}
	}
}

// prompt reads and runs commands until one resumes execution.
func (d *Debugger) prompt() {
	for {
		io.WriteString(d.out, prompt) //nolint
		if !d.in.Scan() {
			io.WriteString(d.out, "\n") //nolint
			d.detached = true
			return
		}
		fields := strings.Fields(d.in.Text())
		if len(fields) == 0 {
			continue
		}
		if resume := d.run(fields[0], fields[1:]); resume {
			return
		}
	}
}

// run executes a command, returning true if execution should resume.
func (d *Debugger) run(cmd string, args []string) bool {
	switch cmd {
	case "b", "break":
		d.doBreak(args)
	case "d", "delete":
		d.doDelete(args)
	case "c", "continue":
		d.stepping = false
		return true
	case "s", "step":
		d.stepping = true
		return true
	case "i", "info":
		d.doInfo()
	case "l", "list":
		d.doList()
	case "h", "help":
		d.doHelp()
	case "q", "quit":
		d.detached = true
		return true
	default:
		fmt.Fprintf(d.out, "Unrecognized command '%s'\n", cmd)
	}
	return false
}

func (d *Debugger) doBreak(args []string) {
	line := d.lastLine
	if len(args) > 0 {
		n, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			n = 0
		}
		line = uint32(n)
	}
	if line == 0 {
		io.WriteString(d.out, "Invalid line number.\n") //nolint
		return
	}
	d.breakpoints = append(d.breakpoints, breakpoint{id: d.nextID, line: line})
	fmt.Fprintf(d.out, "Breakpoint %d set at line %d\n", d.nextID, line)
	d.nextID++
}

func (d *Debugger) doDelete(args []string) {
	if len(args) == 0 {
		d.breakpoints = d.breakpoints[:0]
		io.WriteString(d.out, "All breakpoints deleted.\n") //nolint
		return
	}
	id, err := strconv.Atoi(args[0])
	i := slices.IndexFunc(d.breakpoints, func(bp breakpoint) bool { return bp.id == id })
	if err != nil || i < 0 {
		fmt.Fprintf(d.out, "Breakpoint not found '%s'\n", args[0])
		return
	}
	d.breakpoints = slices.Delete(d.breakpoints, i, i+1)
	fmt.Fprintf(d.out, "Breakpoint %d deleted\n", id)
}

func (d *Debugger) doInfo() {
	if d.invocation == nil {
		io.WriteString(d.out, "No kernel running.\n") //nolint
		return
	}
	wi := d.invocation.CurrentWorkItem()
	fmt.Fprintf(d.out, "Kernel: %s\n", message.KernelName(d.invocation))
	fmt.Fprintf(d.out, "Entity: %s\n", message.Entity(wi, d.invocation.CurrentWorkGroup()))
	var instruction api.Instruction
	if wi != nil {
		instruction = wi.CurrentInstruction()
	}
	d.printLocation(instruction)
	for _, bp := range d.breakpoints {
		fmt.Fprintf(d.out, "Breakpoint %d: line %d\n", bp.id, bp.line)
	}
}

func (d *Debugger) doList() {
	var program api.Program
	if d.invocation != nil {
		if k := d.invocation.Kernel(); k != nil {
			program = k.Program()
		}
	}
	if program == nil || program.NumSourceLines() == 0 {
		io.WriteString(d.out, "Source code not available.\n") //nolint
		return
	}

	current := int(d.lastLine)
	if current == 0 {
		current = 1
	}
	first := max(current-listContext, 1)
	last := min(current+listContext, program.NumSourceLines())
	for n := first; n <= last; n++ {
		src, _ := program.SourceLine(n)
		marker := " "
		if n == int(d.lastLine) {
			marker = ">"
		}
		fmt.Fprintf(d.out, "%s%4d %s\n", marker, n, src)
	}
}

func (d *Debugger) doHelp() {
	io.WriteString(d.out, `Commands:
  break [line]   (b) set a breakpoint at line, or the current line
  delete [n]     (d) delete breakpoint n, or all breakpoints
  continue       (c) resume until a breakpoint is hit
  step           (s) resume until the next source line
  info           (i) print the current entity, location and breakpoints
  list           (l) print source around the current line
  help           (h) print this message
  quit           (q) stop debugging and run to completion
`) //nolint
}

func (d *Debugger) printLocation(instruction api.Instruction) {
	io.WriteString(d.out, message.Location(instruction)+"\n") //nolint
}
