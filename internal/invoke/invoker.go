package invoke

import (
	"io"

	"github.com/banshee-data/splatprep/internal/monitoring"
)

// Result is the outcome of one external command.
type Result struct {
	Command  Command
	ExitCode int
	// Err carries the underlying error for diagnostics; it is nil on success.
	Err error
}

// OK reports whether the command exited with status 0.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Invoker runs commands through a CommandBuilder.
type Invoker struct {
	Builder CommandBuilder
	// Stdout and Stderr override the command's output streams when non-nil.
	Stdout io.Writer
	Stderr io.Writer
}

// NewInvoker creates an Invoker using the real process builder.
func NewInvoker() *Invoker {
	return &Invoker{Builder: NewRealCommandBuilder()}
}

// Invoke runs cmd to completion. It never fails itself: every outcome,
// including a command that could not be started, is reported as an exit code.
func (i *Invoker) Invoke(cmd Command) Result {
	monitoring.Debugf("exec: %s", cmd)

	exe := i.Builder.BuildCommand(cmd.Name, cmd.Args...)
	if i.Stdout != nil || i.Stderr != nil {
		exe.SetOutput(i.Stdout, i.Stderr)
	}

	err := exe.Run()
	res := Result{Command: cmd, ExitCode: ExitStatus(err), Err: err}
	if err != nil {
		monitoring.Debugf("exec: %s exited with %d: %v", cmd.Name, res.ExitCode, err)
	}
	return res
}
