// Package invoke runs external tools synchronously and reports their exit
// status. It performs no retries and does not parse tool output.
package invoke

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
)

// Exit codes synthesised when a process does not report one itself.
const (
	// ExitNotStarted mirrors the shell convention for "command not found".
	ExitNotStarted = 127
	// exitSignalBase is added to the signal number of a killed process.
	exitSignalBase = 128
)

// CommandExecutor defines an interface for executing one external command.
// This abstraction enables unit testing without real process execution.
type CommandExecutor interface {
	// Run executes the command, blocking until it exits.
	Run() error

	// SetOutput redirects the command's stdout and stderr.
	SetOutput(stdout, stderr io.Writer)
}

// CommandBuilder defines an interface for building commands.
type CommandBuilder interface {
	// BuildCommand creates a CommandExecutor for the given program and arguments.
	BuildCommand(name string, args ...string) CommandExecutor
}

// Command is a fully formed command line.
type Command struct {
	Name string
	Args []string
}

// NewCommand creates a Command.
func NewCommand(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// String renders the command for diagnostics, quoting arguments that contain
// whitespace or shell metacharacters.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Name))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\n\"'\\$`|&;<>()*?[]{}!#~") {
		return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`").Replace(s) + `"`
	}
	return s
}

// ExitStatus converts the error returned by CommandExecutor.Run into a
// process exit code: 0 for success, the process's own code when it exited,
// 128+signal when it was killed, and ExitNotStarted when it never ran.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return exitSignalBase + int(ws.Signal())
		}
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
		return 1
	}

	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}

	return ExitNotStarted
}

// RealCommandExecutor wraps exec.Cmd to implement CommandExecutor.
type RealCommandExecutor struct {
	cmd *exec.Cmd
}

// Run executes the command.
func (r *RealCommandExecutor) Run() error {
	return r.cmd.Run()
}

// SetOutput sets stdout and stderr for the command.
func (r *RealCommandExecutor) SetOutput(stdout, stderr io.Writer) {
	r.cmd.Stdout = stdout
	r.cmd.Stderr = stderr
}

// RealCommandBuilder implements CommandBuilder using exec.Command. Commands
// inherit the caller's working directory, environment and standard streams.
type RealCommandBuilder struct{}

// NewRealCommandBuilder creates a new RealCommandBuilder.
func NewRealCommandBuilder() *RealCommandBuilder {
	return &RealCommandBuilder{}
}

// BuildCommand creates a CommandExecutor for the given command and arguments.
func (b *RealCommandBuilder) BuildCommand(name string, args ...string) CommandExecutor {
	cmd := exec.Command(name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return &RealCommandExecutor{cmd: cmd}
}

// CodeError is returned by MockCommandExecutor for a nonzero exit code.
type CodeError struct {
	Code int
}

func (e *CodeError) Error() string {
	return "exit status " + strconv.Itoa(e.Code)
}

// ExitCode implements the interface consulted by ExitStatus.
func (e *CodeError) ExitCode() int { return e.Code }

// MockCommandExecutor implements CommandExecutor for testing.
type MockCommandExecutor struct {
	// ExitCode is the exit code to report from Run.
	ExitCode int
	// Err, if set, is returned from Run instead of an exit code error.
	Err error
	// SideEffect runs before Run returns, e.g. to create tool outputs.
	SideEffect func() error
	// RunCalled indicates whether Run was called.
	RunCalled bool
	// Stdout and Stderr hold the writers that were set.
	Stdout, Stderr io.Writer
}

// Run returns the configured result.
func (m *MockCommandExecutor) Run() error {
	m.RunCalled = true
	if m.SideEffect != nil {
		if err := m.SideEffect(); err != nil {
			return err
		}
	}
	if m.Err != nil {
		return m.Err
	}
	if m.ExitCode != 0 {
		return &CodeError{Code: m.ExitCode}
	}
	return nil
}

// SetOutput records the writers.
func (m *MockCommandExecutor) SetOutput(stdout, stderr io.Writer) {
	m.Stdout = stdout
	m.Stderr = stderr
}

// MockCommandBuilder implements CommandBuilder for testing. It is safe for
// concurrent use so parallel callers can share one builder.
type MockCommandBuilder struct {
	mu sync.Mutex
	// Commands records all commands that were built.
	Commands []Command
	// ExecutorFactory allows creating executors dynamically based on command.
	ExecutorFactory func(name string, args []string) *MockCommandExecutor
}

// NewMockCommandBuilder creates a new MockCommandBuilder.
func NewMockCommandBuilder() *MockCommandBuilder {
	return &MockCommandBuilder{}
}

// BuildCommand creates a MockCommandExecutor and records the command details.
func (b *MockCommandBuilder) BuildCommand(name string, args ...string) CommandExecutor {
	b.mu.Lock()
	b.Commands = append(b.Commands, Command{Name: name, Args: args})
	factory := b.ExecutorFactory
	b.mu.Unlock()

	if factory != nil {
		return factory(name, args)
	}
	return &MockCommandExecutor{}
}

// Built returns a copy of the recorded commands.
func (b *MockCommandBuilder) Built() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Command, len(b.Commands))
	copy(out, b.Commands)
	return out
}

// LastCommand returns the most recently built command, or nil if none.
func (b *MockCommandBuilder) LastCommand() *Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.Commands) == 0 {
		return nil
	}
	c := b.Commands[len(b.Commands)-1]
	return &c
}

// Reset clears all recorded commands.
func (b *MockCommandBuilder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Commands = nil
}
