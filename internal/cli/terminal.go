package cli

import (
	"os"

	"golang.org/x/term"
)

// TerminalCapabilities describes what the attached terminal supports.
type TerminalCapabilities struct {
	// StdoutTTY enables colored command output.
	StdoutTTY bool
	// StderrTTY enables the progress spinner.
	StderrTTY bool
	// StdinTTY allows confirmation prompts.
	StdinTTY bool
	NoColor  bool
}

// DetectTerminalCapabilities inspects the standard streams and NO_COLOR.
func DetectTerminalCapabilities() TerminalCapabilities {
	return TerminalCapabilities{
		StdoutTTY: term.IsTerminal(int(os.Stdout.Fd())),
		StderrTTY: term.IsTerminal(int(os.Stderr.Fd())),
		StdinTTY:  term.IsTerminal(int(os.Stdin.Fd())),
		NoColor:   os.Getenv("NO_COLOR") != "",
	}
}

// SupportsColor reports whether stdout output may be colored.
func (c TerminalCapabilities) SupportsColor() bool {
	return c.StdoutTTY && !c.NoColor
}
