package storage

import (
	"fmt"
	"io"
	"strings"
)

// Terminal is for displaying data on terminal.
type Terminal struct {
	out io.Writer
}

var terminal Terminal

// TerminalTimestamp is used as a format to display the settlement time.
const TerminalTimestamp = "2006-01-02 15:04:05"

// InitTerminal initializes terminal display.
// Output writer is always os.Stdout except in case of testing where file will be set as output terminal.
func InitTerminal(out io.Writer) *Terminal {
	if terminal.out == nil {
		terminal = Terminal{
			out: out,
		}
	}
	return &terminal
}

// GetTerminal returns already prepared terminal instance.
func GetTerminal() *Terminal {
	return &terminal
}

// CommitRecords batch outputs input record data to terminal.
func (t *Terminal) CommitRecords(data []Record) {
	for i := range data {
		record := &data[i]
		var sb strings.Builder
		for _, name := range record.FieldNames() {
			if sb.Len() > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(fmt.Sprintf("%v=%v", name, record.Fields[name]))
		}
		fmt.Fprintf(t.out, "%-20s%-8s%22s    %v\n\n", record.CommitName, record.Region, record.Timestamp.Format(TerminalTimestamp), sb.String())
	}
}
