package notifications

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/perfwatch/perfwatch/internal/alerting"
)

// ConsoleChannel prints alerts as single lines, for interactive runs
// and CI logs.
type ConsoleChannel struct {
	name string
	out  io.Writer
}

func NewConsoleChannel(name string) *ConsoleChannel {
	return &ConsoleChannel{name: name, out: os.Stdout}
}

func (c *ConsoleChannel) Name() string { return c.name }
func (c *ConsoleChannel) Type() string { return "console" }

func (c *ConsoleChannel) Send(_ context.Context, alert *alerting.EnhancedAlert) error {
	_, err := fmt.Fprintln(c.out, formatAlertLine(alert))
	return err
}
