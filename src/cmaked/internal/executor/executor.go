package executor

import (
	"bytes"
	"os/exec"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides a module to inject using fx.
var Module = fx.Options(
	fx.Supply(
		fx.Annotate(NewExecutor(), fx.As(new(Executor))),
	),
)

// Executor wraps the execution of "os/exec".Cmd's to allow adding logs to
// each exec and makes it easier to test.
type Executor interface {
	// Run logs and executes the Cmd to completion, overriding its
	// Stdout/Stderr to return their content.
	Run(cmd *exec.Cmd) (stdout string, stderr string, exitCode int, err error)
	// Start logs and launches the Cmd without waiting for it, returning a
	// handle to the running process.
	Start(cmd *exec.Cmd, env []string) (Process, error)
}

// Process is a handle to a launched command.
type Process interface {
	// Wait blocks until the process exits and returns its exit error, if any.
	Wait() error
	// Pid returns the OS process id.
	Pid() int
	// Kill forcibly terminates the process.
	Kill() error
}

type executorImp struct {
	Logger *zap.SugaredLogger
	// RunFunc and StartFunc may be overridden in tests.
	RunFunc   func(cmd *exec.Cmd) error
	StartFunc func(cmd *exec.Cmd) error
}

// Option defines options to customize executorImp's behavior
type Option func(*executorImp)

// WithLogger overrides the default noop logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(executor *executorImp) {
		executor.Logger = logger
	}
}

// WithRunFunc provides customized run-to-completion behavior for executorImp
func WithRunFunc(runFunc func(cmd *exec.Cmd) error) Option {
	return func(executor *executorImp) {
		executor.RunFunc = runFunc
	}
}

// WithStartFunc provides customized process-launch behavior for executorImp
func WithStartFunc(startFunc func(cmd *exec.Cmd) error) Option {
	return func(executor *executorImp) {
		executor.StartFunc = startFunc
	}
}

// NewExecutor creates a new executorImp with the default run and start functions.
func NewExecutor(opts ...Option) Executor {
	executor := &executorImp{
		Logger:    zap.NewNop().Sugar(),
		RunFunc:   func(cmd *exec.Cmd) error { return cmd.Run() },
		StartFunc: func(cmd *exec.Cmd) error { return cmd.Start() },
	}
	for _, opt := range opts {
		opt(executor)
	}
	return executor
}

// Run logs the Path/Args, executes the Cmd to completion and captures its output.
func (l *executorImp) Run(cmd *exec.Cmd) (stdout string, stderr string, exitCode int, err error) {
	l.logCommand(cmd)

	var stdoutB, stderrB bytes.Buffer
	cmd.Stdout = &stdoutB
	cmd.Stderr = &stderrB
	err = l.RunFunc(cmd)

	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	return stdoutB.String(), stderrB.String(), code, err
}

// Start logs the Path/Args and launches the Cmd without waiting.
func (l *executorImp) Start(cmd *exec.Cmd, env []string) (Process, error) {
	l.logCommand(cmd)

	cmd.Env = env
	if err := l.StartFunc(cmd); err != nil {
		return nil, err
	}
	return &process{cmd: cmd}, nil
}

type process struct {
	cmd *exec.Cmd
}

func (p *process) Wait() error { return p.cmd.Wait() }

func (p *process) Pid() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

func (p *process) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// Logs the command specified: Path, Dir, Args
func (l *executorImp) logCommand(cmd *exec.Cmd) {
	l.Logger.Infow("Exec",
		"Path", cmd.Path,
		"Dir", cmd.Dir,
		"Args", cmd.Args[1:], // First arg is always the command itself
	)
}
