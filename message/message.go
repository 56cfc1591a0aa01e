// Package message builds multi-line diagnostics sent through the notification hub.
//
// A Message accumulates text with Append. Indentation is not applied while appending: Indent and Unindent record a
// marker at the current offset, and Format resolves the markers against line boundaries once the full text is known.
package message

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"

	"github.com/oclgrind/oclgrind/api"
)

// Special is a context token resolved against the kernel invocation captured when the Message was created.
type Special uint8

const (
	// Indent increases the indentation of lines that begin after this point.
	Indent Special = iota
	// Unindent reverts the last Indent for lines that begin after this point.
	Unindent
	// CurrentKernel appends the kernel name.
	CurrentKernel
	// CurrentWorkItemGlobal appends the global ID of the current work-item, or "(none)".
	CurrentWorkItemGlobal
	// CurrentWorkItemLocal appends the local ID of the current work-item, or "(none)".
	CurrentWorkItemLocal
	// CurrentWorkGroup appends the group ID of the current work-group, or "(none)".
	CurrentWorkGroup
	// CurrentEntity appends "Global(..) Local(..) Group(..)" for whichever are current, or "(unknown)".
	CurrentEntity
	// CurrentLocation appends the current instruction and its source location.
	CurrentLocation
)

// Manipulator changes how subsequent values are formatted, similar to a stream manipulator.
type Manipulator uint8

const (
	// Endl appends a newline.
	Endl Manipulator = iota
	// Hex formats subsequent integers in base 16, without prefix. Negative signed integers are printed as two's
	// complement of their own width, e.g. int32(-16) as "fffffff0".
	Hex
	// Dec formats subsequent integers in base 10. This is the default.
	Dec
)

const (
	none            = "(none)"
	unknown         = "(unknown)"
	locationUnknown = "(location unknown)"
	noDebugInfo     = "Debugging information not available."
)

// Notifier receives finished messages. The hub implements this.
type Notifier interface {
	NotifyMessage(messageType api.MessageType, message string)
}

// Factory creates messages bound to the invocation current at the time of the call.
type Factory interface {
	NewMessage(messageType api.MessageType) *Message
}

type indentMarker struct {
	offset int
	indent bool
}

// Message is an append-only diagnostic under construction.
//
// Note: Context tokens resolve against the invocation passed to New, not the one current on Send.
type Message struct {
	messageType api.MessageType
	notifier    Notifier
	invocation  api.KernelInvocation

	buf     bytes.Buffer
	markers []indentMarker
	base    int
}

// New returns a Message of the given type which will be sent to n. invocation may be nil.
func New(messageType api.MessageType, n Notifier, invocation api.KernelInvocation) *Message {
	return &Message{messageType: messageType, notifier: n, invocation: invocation, base: 10}
}

// Type returns the message type bound at construction.
func (m *Message) Type() api.MessageType {
	return m.messageType
}

// Text returns the accumulated text without indentation applied.
func (m *Message) Text() string {
	return m.buf.String()
}

// Append formats each value onto the message and returns it for chaining.
func (m *Message) Append(values ...interface{}) *Message {
	for _, v := range values {
		m.append(v)
	}
	return m
}

func (m *Message) append(v interface{}) {
	switch v := v.(type) {
	case Special:
		m.appendSpecial(v)
	case Manipulator:
		switch v {
		case Endl:
			m.buf.WriteByte('\n')
		case Hex:
			m.base = 16
		case Dec:
			m.base = 10
		}
	case string:
		m.buf.WriteString(v)
	case []byte:
		m.buf.Write(v)
	case api.Instruction:
		m.appendInstruction(v)
	case error:
		m.buf.WriteString(v.Error())
	case bool:
		m.buf.WriteString(strconv.FormatBool(v))
	case int:
		m.buf.WriteString(formatSigned(v, strconv.IntSize, m.base))
	case int8:
		m.buf.WriteString(formatSigned(v, 8, m.base))
	case int16:
		m.buf.WriteString(formatSigned(v, 16, m.base))
	case int32:
		m.buf.WriteString(formatSigned(v, 32, m.base))
	case int64:
		m.buf.WriteString(formatSigned(v, 64, m.base))
	case uint:
		m.buf.WriteString(formatUnsigned(v, m.base))
	case uint8:
		m.buf.WriteString(formatUnsigned(v, m.base))
	case uint16:
		m.buf.WriteString(formatUnsigned(v, m.base))
	case uint32:
		m.buf.WriteString(formatUnsigned(v, m.base))
	case uint64:
		m.buf.WriteString(formatUnsigned(v, m.base))
	case uintptr:
		m.buf.WriteString(formatUnsigned(v, m.base))
	case float32:
		m.buf.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	case float64:
		m.buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	case fmt.Stringer:
		m.buf.WriteString(v.String())
	default:
		fmt.Fprint(&m.buf, v)
	}
}

// formatSigned prints negative values in base 16 as two's complement of the given bit width.
func formatSigned[I constraints.Signed](v I, bits, base int) string {
	if base == 16 && v < 0 {
		u := uint64(int64(v))
		if bits < 64 {
			u &= 1<<uint(bits) - 1
		}
		return strconv.FormatUint(u, base)
	}
	return strconv.FormatInt(int64(v), base)
}

func formatUnsigned[I constraints.Unsigned](v I, base int) string {
	return strconv.FormatUint(uint64(v), base)
}

func (m *Message) appendSpecial(s Special) {
	switch s {
	case Indent:
		m.markers = append(m.markers, indentMarker{offset: m.buf.Len(), indent: true})
	case Unindent:
		m.markers = append(m.markers, indentMarker{offset: m.buf.Len()})
	case CurrentKernel:
		m.buf.WriteString(KernelName(m.invocation))
	case CurrentWorkItemGlobal:
		if wi := m.workItem(); wi != nil {
			m.buf.WriteString(wi.GlobalID().String())
		} else {
			m.buf.WriteString(none)
		}
	case CurrentWorkItemLocal:
		if wi := m.workItem(); wi != nil {
			m.buf.WriteString(wi.LocalID().String())
		} else {
			m.buf.WriteString(none)
		}
	case CurrentWorkGroup:
		if wg := m.workGroup(); wg != nil {
			m.buf.WriteString(wg.GroupID().String())
		} else {
			m.buf.WriteString(none)
		}
	case CurrentEntity:
		m.buf.WriteString(Entity(m.workItem(), m.workGroup()))
	case CurrentLocation:
		var instruction api.Instruction
		if wi := m.workItem(); wi != nil {
			instruction = wi.CurrentInstruction()
		}
		m.appendInstruction(instruction)
	default:
		panic(fmt.Sprintf("BUG: unknown special token %d", s))
	}
}

func (m *Message) appendInstruction(instruction api.Instruction) {
	m.buf.WriteString(Location(instruction))
}

func (m *Message) workItem() api.WorkItem {
	if m.invocation == nil {
		return nil
	}
	return m.invocation.CurrentWorkItem()
}

func (m *Message) workGroup() api.WorkGroup {
	if m.invocation == nil {
		return nil
	}
	return m.invocation.CurrentWorkGroup()
}

// KernelName returns the name of the invocation's kernel, or "(none)" if either is nil.
func KernelName(invocation api.KernelInvocation) string {
	if invocation == nil {
		return none
	}
	if k := invocation.Kernel(); k != nil {
		return k.Name()
	}
	return none
}

// Entity formats the work-item and work-group as "Global(..) Local(..) Group(..)", omitting whichever is nil. When
// both are nil, this returns "(unknown)".
func Entity(workItem api.WorkItem, workGroup api.WorkGroup) string {
	if workItem == nil && workGroup == nil {
		return unknown
	}
	var b strings.Builder
	if workItem != nil {
		b.WriteString("Global")
		b.WriteString(workItem.GlobalID().String())
		b.WriteString(" Local")
		b.WriteString(workItem.LocalID().String())
	}
	if workGroup != nil {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("Group")
		b.WriteString(workGroup.GroupID().String())
	}
	return b.String()
}

// Location formats the instruction followed by its source location on the next line. A nil instruction formats as
// "(location unknown)".
func Location(instruction api.Instruction) string {
	if instruction == nil {
		return locationUnknown
	}
	loc, ok := instruction.DebugLocation()
	if !ok {
		return instruction.String() + "\n" + noDebugInfo
	}
	return fmt.Sprintf("%s\nAt line %d of %s", instruction, loc.Line, loc.File)
}

// Format returns the accumulated text with indentation applied.
//
// Each line except the last is followed by a newline and one tab per indentation level. Before writing that
// indentation, every marker whose offset is at or before the start of the next line is consumed.
func (m *Message) Format() string {
	text := m.buf.String()
	lines := strings.Split(text, "\n")

	var out strings.Builder
	out.Grow(len(text))

	indent, next, pos := 0, 0, 0
	last := len(lines) - 1
	for i, line := range lines {
		out.WriteString(line)
		if i == last {
			break
		}
		pos += len(line) + 1 // read position is after the newline

		for next < len(m.markers) && m.markers[next].offset <= pos {
			if m.markers[next].indent {
				indent++
			} else {
				indent--
			}
			next++
		}

		out.WriteByte('\n')
		for t := 0; t < indent; t++ {
			out.WriteByte('\t')
		}
	}
	return out.String()
}

// Send formats the message and notifies it with the bound type. Sending again re-emits the same text.
func (m *Message) Send() {
	m.notifier.NotifyMessage(m.messageType, m.Format())
}
