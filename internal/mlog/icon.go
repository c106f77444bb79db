package mlog

import (
	"fmt"
	"io"

	"github.com/dogmatiq/accord/process"
	"github.com/dogmatiq/iago/must"
)

const (
	// ProcessIDIcon is the icon shown directly before a process ID. It is an
	// "equals sign", indicating that this process "has exactly" the displayed
	// ID.
	ProcessIDIcon Icon = "="

	// CorrelationIDIcon is the icon shown directly before a correlation ID,
	// which is the peer's ID for the same exchange. It is the mathematical
	// "member of set" symbol, indicating that both processes belong to the
	// same exchange.
	CorrelationIDIcon Icon = "⋲"

	// InboundIcon is the icon shown to indicate that a message from a peer is
	// being handled. It is a downward pointing arrow, as such messages could
	// be considered as being "downloaded" from the network.
	InboundIcon Icon = "▼"

	// InboundErrorIcon is a variant of InboundIcon used when the message is
	// rejected. It is a hollow version of the regular inbound icon,
	// indicating that the requirement remains "unfulfilled".
	InboundErrorIcon Icon = "▽"

	// CommandIcon is the icon shown when a log message relates to an
	// externally submitted command. It is an upward pointing arrow, as the
	// command is "lifted" into the process.
	CommandIcon Icon = "▲"

	// CommandErrorIcon is a variant of CommandIcon used when the command is
	// rejected.
	CommandErrorIcon Icon = "△"

	// RetryIcon is an icon shown when a process pass is a retry. It is an
	// open-circle with an arrow, indicating that the process has "come around
	// again".
	RetryIcon Icon = "↻"

	// ErrorIcon is the icon shown when logging information about an error.
	// It is a heavy cross, indicating a failure.
	ErrorIcon Icon = "✖"

	// NegotiationIcon is the icon shown when a log message relates to a
	// negotiation. It is the mathematical "therefore" symbol, representing
	// the decision reached by both parties.
	NegotiationIcon Icon = "∴"

	// TransferIcon is the icon shown when a log message relates to a
	// transfer. It is the relational algebra "join" symbol, representing data
	// moving between two systems.
	TransferIcon Icon = "⨝"

	// MonitorIcon is the icon shown when a log message relates to a monitor.
	// It is three horizontal lines, representing repeated checks.
	MonitorIcon Icon = "≡"

	// SystemIcon is an icon shown when a log message relates to the internals of
	// the engine. It is a sprocket, representing the inner workings of the
	// machine.
	SystemIcon Icon = "⚙"

	// SeparatorIcon is an icon used to separate strings of unrelated text inside a
	// log message. It is a large bullet, intended to have a large visual impact.
	SeparatorIcon Icon = "●"
)

// Icon is a unicode symbol used as an icon in log messages.
type Icon string

func (i Icon) String() string {
	return string(i)
}

// WriteTo writes a string representation of the icon to w.
// If i is the zero-value, a single space is rendered.
func (i Icon) WriteTo(w io.Writer) (int64, error) {
	s := i.String()
	if i == "" {
		s = " "
	}

	n, err := io.WriteString(w, s)
	return int64(n), err
}

// WithLabel return an IconWithLabel containing this icon and the given label.
func (i Icon) WithLabel(f string, v ...interface{}) IconWithLabel {
	return IconWithLabel{
		i,
		formatLabel(fmt.Sprintf(f, v...)),
	}
}

// WithID return an IconWithLabel containing this icon and an ID as its label.
//
// The id is formatted using FormatID().
func (i Icon) WithID(id string) IconWithLabel {
	return i.WithLabel("%s", FormatID(id))
}

// IconWithLabel is a container for an icon and its associated text label.
type IconWithLabel struct {
	Icon  Icon
	Label string
}

func (i IconWithLabel) String() string {
	return i.Icon.String() + " " + i.Label
}

// WriteTo writes a string representation of the icon and its label to w.
func (i IconWithLabel) WriteTo(w io.Writer) (_ int64, err error) {
	defer must.Recover(&err)

	n := must.WriteTo(w, i.Icon)
	n += must.Write(w, space1)
	n += must.WriteString(w, i.Label)

	return int64(n), err
}

// formatLabel formats a label for display.
func formatLabel(label string) string {
	if label == "" {
		return "-"
	}

	return label
}

// ProcessTypeIcon returns the icon to use for the given process type.
func ProcessTypeIcon(t process.Type) Icon {
	switch t {
	case process.NegotiationType:
		return NegotiationIcon
	case process.TransferType:
		return TransferIcon
	case process.MonitorType:
		return MonitorIcon
	default:
		return SystemIcon
	}
}
