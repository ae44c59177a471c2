// Package cmakeserver manages the connection to one cmake configuration
// server process and provides typed request/response and notification
// semantics over it.
package cmakeserver

import (
	"context"
	"encoding/json"
	stderr "errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/uber/cmake-driver/src/cmaked/internal/errors"
	"github.com/uber/cmake-driver/src/cmaked/internal/executor"
	"github.com/uber/cmake-driver/src/cmaked/internal/notifier"
	"github.com/uber/cmake-driver/src/cmaked/model"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Methods of the cmake server protocol.
const (
	MethodHello          = "hello"
	MethodConfigure      = "configure"
	MethodCompute        = "compute"
	MethodCodeModel      = "codemodel"
	MethodCache          = "cache"
	MethodCMakeInputs    = "cmakeInputs"
	MethodGlobalSettings = "globalSettings"

	// Notifications emitted by the server.
	MethodMessage  = "message"
	MethodProgress = "progress"
	MethodSignal   = "signal"
)

var _protocolVersion = model.ProtocolVersion{Major: 1}

// StartParams describe how to launch the cmake server process.
type StartParams struct {
	WorkingDirectory string
	SourceDirectory  string
	BinaryDirectory  string
	CMakePath        string
	Generator        string
	Environment      []string
}

// Client is one live connection to a cmake server process. A Client that has
// lost its connection is unusable; start a new one.
type Client interface {
	Configure(ctx context.Context, cacheArguments []string) error
	Compute(ctx context.Context) error
	CodeModel(ctx context.Context) (*model.CodeModelReply, error)
	Cache(ctx context.Context) (*model.CacheReply, error)
	CMakeInputs(ctx context.Context) (*model.CMakeInputsReply, error)
	GlobalSettings(ctx context.Context) (*model.GlobalSettingsReply, error)

	// Notification subscriptions. Each delivers items in emission order to
	// all current subscribers; a late subscriber sees no past items.
	OnMessage(fn func(model.MessageNotification)) (cancel func())
	OnProgress(fn func(model.ProgressNotification)) (cancel func())
	OnSignal(fn func(model.SignalNotification)) (cancel func())

	// Shutdown requests graceful termination and waits for the process to
	// exit. Shutting down an already-stopped client is a no-op.
	Shutdown(ctx context.Context) error
}

// Starter launches cmake server processes.
type Starter interface {
	Start(ctx context.Context, p StartParams) (Client, error)
}

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// Params define values to be used by the Starter.
type Params struct {
	fx.In

	Logger   *zap.SugaredLogger
	Executor executor.Executor
}

type starter struct {
	logger   *zap.SugaredLogger
	executor executor.Executor
}

// New returns a Starter that spawns cmake server subprocesses and speaks the
// protocol over their stdio pipes.
func New(p Params) Starter {
	return &starter{logger: p.Logger, executor: p.Executor}
}

// Start launches the server process and completes the hello handshake. Any
// failure before the handshake completes is reported as a StartupError.
func (s *starter) Start(ctx context.Context, p StartParams) (Client, error) {
	if _, _, _, err := s.executor.Run(exec.Command(p.CMakePath, "--version")); err != nil {
		return nil, &errors.StartupError{Stage: "probe", Err: err}
	}

	cmd := exec.Command(p.CMakePath, "-E", "server", "--experimental")
	cmd.Dir = p.WorkingDirectory

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &errors.StartupError{Stage: "spawn", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &errors.StartupError{Stage: "spawn", Err: err}
	}

	proc, err := s.executor.Start(cmd, p.Environment)
	if err != nil {
		return nil, &errors.StartupError{Stage: "spawn", Err: err}
	}

	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(&stdioStream{in: stdin, out: stdout}))
	c := newClient(conn, proc, s.logger)

	hello := model.HelloParams{
		ProtocolVersion: _protocolVersion,
		SourceDirectory: p.SourceDirectory,
		BuildDirectory:  p.BinaryDirectory,
		Generator:       p.Generator,
	}
	var reply model.HelloReply
	if _, err := conn.Call(ctx, MethodHello, hello, &reply); err != nil {
		_ = c.Shutdown(ctx)
		return nil, &errors.StartupError{Stage: "handshake", Err: err}
	}
	if !supportsVersion(reply, _protocolVersion) {
		_ = c.Shutdown(ctx)
		return nil, &errors.StartupError{
			Stage: "handshake",
			Err:   fmt.Errorf("server does not support protocol version %d", _protocolVersion.Major),
		}
	}

	s.logger.Infow("cmake server started",
		zap.Int("pid", proc.Pid()),
		zap.String("sourceDirectory", p.SourceDirectory),
		zap.String("binaryDirectory", p.BinaryDirectory),
		zap.String("generator", p.Generator))
	return c, nil
}

func supportsVersion(reply model.HelloReply, want model.ProtocolVersion) bool {
	for _, v := range reply.SupportedProtocolVersions {
		if v.Major == want.Major {
			return true
		}
	}
	return false
}

// stdioStream adapts a subprocess's stdin/stdout pipes to a single
// io.ReadWriteCloser for the jsonrpc2 stream.
type stdioStream struct {
	in  io.WriteCloser
	out io.ReadCloser
}

func (s *stdioStream) Read(p []byte) (int, error)  { return s.out.Read(p) }
func (s *stdioStream) Write(p []byte) (int, error) { return s.in.Write(p) }

func (s *stdioStream) Close() error {
	return multierr.Append(s.in.Close(), s.out.Close())
}

type client struct {
	conn   jsonrpc2.Conn
	proc   executor.Process
	logger *zap.SugaredLogger

	messages *notifier.Emitter[model.MessageNotification]
	progress *notifier.Emitter[model.ProgressNotification]
	signals  *notifier.Emitter[model.SignalNotification]

	shutdownOnce sync.Once
	shutdownErr  error
}

// newClient wires a client over an established jsonrpc2 connection. proc may
// be nil when the transport is not a subprocess.
func newClient(conn jsonrpc2.Conn, proc executor.Process, logger *zap.SugaredLogger) *client {
	c := &client{
		conn:     conn,
		proc:     proc,
		logger:   logger,
		messages: notifier.NewEmitter[model.MessageNotification](),
		progress: notifier.NewEmitter[model.ProgressNotification](),
		signals:  notifier.NewEmitter[model.SignalNotification](),
	}
	conn.Go(context.Background(), c.handleNotification)
	return c
}

// handleNotification dispatches server-initiated notifications to the
// subscriber streams. Requests from the server are not part of the protocol.
func (c *client) handleNotification(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	switch req.Method() {
	case MethodMessage:
		var n model.MessageNotification
		if err := unmarshalParams(req, &n); err != nil {
			return reply(ctx, nil, err)
		}
		c.messages.Publish(n)
		return reply(ctx, nil, nil)

	case MethodProgress:
		var n model.ProgressNotification
		if err := unmarshalParams(req, &n); err != nil {
			return reply(ctx, nil, err)
		}
		c.progress.Publish(n)
		return reply(ctx, nil, nil)

	case MethodSignal:
		var n model.SignalNotification
		if err := unmarshalParams(req, &n); err != nil {
			return reply(ctx, nil, err)
		}
		c.signals.Publish(n)
		return reply(ctx, nil, nil)

	default:
		return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
	}
}

func unmarshalParams(req jsonrpc2.Request, v interface{}) error {
	if len(req.Params()) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params(), v); err != nil {
		return fmt.Errorf("%w: %v", jsonrpc2.ErrParse, err)
	}
	return nil
}

// request performs one correlated request/reply round trip. A server-reported
// error resolves as a ServerError; a torn-down connection resolves as
// ErrConnectionLost.
func (c *client) request(ctx context.Context, method string, params, result interface{}) error {
	select {
	case <-c.conn.Done():
		return errors.ErrConnectionLost
	default:
	}

	_, err := c.conn.Call(ctx, method, params, result)
	if err == nil {
		return nil
	}

	var rpcErr *jsonrpc2.Error
	if stderr.As(err, &rpcErr) {
		return &errors.ServerError{Method: method, Message: rpcErr.Message}
	}

	select {
	case <-c.conn.Done():
		return errors.ErrConnectionLost
	default:
		return fmt.Errorf("%s request: %w", method, err)
	}
}

func (c *client) Configure(ctx context.Context, cacheArguments []string) error {
	args := cacheArguments
	if args == nil {
		args = []string{}
	}
	return c.request(ctx, MethodConfigure, model.ConfigureParams{CacheArguments: args}, nil)
}

func (c *client) Compute(ctx context.Context) error {
	return c.request(ctx, MethodCompute, struct{}{}, nil)
}

func (c *client) CodeModel(ctx context.Context) (*model.CodeModelReply, error) {
	var reply model.CodeModelReply
	if err := c.request(ctx, MethodCodeModel, struct{}{}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *client) Cache(ctx context.Context) (*model.CacheReply, error) {
	var reply model.CacheReply
	if err := c.request(ctx, MethodCache, struct{}{}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *client) CMakeInputs(ctx context.Context) (*model.CMakeInputsReply, error) {
	var reply model.CMakeInputsReply
	if err := c.request(ctx, MethodCMakeInputs, struct{}{}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *client) GlobalSettings(ctx context.Context) (*model.GlobalSettingsReply, error) {
	var reply model.GlobalSettingsReply
	if err := c.request(ctx, MethodGlobalSettings, struct{}{}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *client) OnMessage(fn func(model.MessageNotification)) func() {
	return c.messages.Subscribe(fn)
}

func (c *client) OnProgress(fn func(model.ProgressNotification)) func() {
	return c.progress.Subscribe(fn)
}

func (c *client) OnSignal(fn func(model.SignalNotification)) func() {
	return c.signals.Subscribe(fn)
}

// Shutdown closes the connection, which closes the server's stdin and lets it
// exit, then waits for the process. All pending requests resolve with a
// connection failure.
func (c *client) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		err := c.conn.Close()
		<-c.conn.Done()

		if c.proc != nil {
			waited := make(chan error, 1)
			go func() { waited <- c.proc.Wait() }()
			select {
			case werr := <-waited:
				// The server exits nonzero when its stdin is closed
				// mid-session; that is the expected teardown path.
				var exitErr *exec.ExitError
				if werr != nil && !stderr.As(werr, &exitErr) {
					err = multierr.Append(err, werr)
				}
			case <-ctx.Done():
				err = multierr.Append(err, c.proc.Kill())
			}
		}
		c.shutdownErr = err
	})
	return c.shutdownErr
}
