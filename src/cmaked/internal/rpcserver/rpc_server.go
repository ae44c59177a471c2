// Package rpcserver exposes the daemon's inbound JSON-RPC endpoint. Build
// tools and editor plugins connect over TCP; each connection gets its own
// router from the registered connection manager.
package rpcserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/gofrs/uuid"
	"github.com/uber/cmake-driver/src/cmaked/internal/infofile"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_configKeyAddress = "jsonrpc.address"
	_outputKeyAddress = "driver-address"
	_outputKeyPid     = "pid"
)

// Module is an fx module to handle JSON-RPC requests.
var Module = fx.Provide(New)

// RPCServer accepts inbound connections and dispatches their requests.
type RPCServer interface {
	OnStart(ctx context.Context) error
	ServeStream(ctx context.Context, conn jsonrpc2.Conn) error
	RegisterConnectionManager(connectionManager ConnectionManager) error
}

// Router handles the requests arriving on one connection.
type Router interface {
	HandleReq(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error
	UUID() uuid.UUID
}

// ConnectionManager tracks each active connection and provides the Router
// that serves it.
type ConnectionManager interface {
	NewConnection(ctx context.Context, conn *jsonrpc2.Conn) (router Router, err error)
	RemoveConnection(ctx context.Context, id uuid.UUID)
}

type module struct {
	Address string `json:"address"`

	connectionMgr ConnectionManager
	ln            *net.TCPListener
	logger        *zap.SugaredLogger
	infoFile      infofile.InfoFile
}

// Params define values to be used by the RPC server.
type Params struct {
	fx.In

	Config    config.Provider
	Lifecycle fx.Lifecycle
	Logger    *zap.SugaredLogger
	InfoFile  infofile.InfoFile
}

// New creates a new server to handle JSON-RPC requests on the configured
// address.
func New(p Params) (RPCServer, error) {
	if p.Lifecycle == nil || p.Config == nil {
		return nil, errors.New("required parameters are missing")
	}

	m := module{
		logger:   p.Logger,
		infoFile: p.InfoFile,
	}

	if err := m.processConfig(p.Config); err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: m.OnStart,
	})

	return &m, nil
}

// OnStart binds the listener and begins accepting connections.
func (m *module) OnStart(ctx context.Context) error {
	if err := m.setup(); err != nil {
		return err
	}

	go m.start()
	return nil
}

// ServeStream is called for each new connection. Requests received via the
// connection are routed to this connection's router until it closes.
func (m *module) ServeStream(ctx context.Context, conn jsonrpc2.Conn) error {
	if m.connectionMgr == nil {
		m.logger.Errorf("cannot serve connection, no connection manager set")
		return errors.New("cannot serve connection, no connection manager set")
	}

	router, err := m.connectionMgr.NewConnection(ctx, &conn)
	if err != nil {
		return err
	}
	m.logger.Infow("client connected", zap.Stringer("uuid", router.UUID()))
	conn.Go(ctx, router.HandleReq)

	// Block until the connection closes.
	<-conn.Done()

	m.connectionMgr.RemoveConnection(ctx, router.UUID())
	m.logger.Infow("client disconnected", zap.Stringer("uuid", router.UUID()))

	return conn.Err()
}

// RegisterConnectionManager sets the connection manager, which keeps track of
// current active connections and provides a Router implementation.
func (m *module) RegisterConnectionManager(connectionMgr ConnectionManager) error {
	if m.connectionMgr != nil {
		return errors.New("cannot register a duplicate connection manager")
	}
	m.connectionMgr = connectionMgr
	return nil
}

// setup should be called after creation to bind the listener.
func (m *module) setup() error {
	if m.Address == "" {
		return errors.New("setup called before address is set")
	}

	addr, err := net.ResolveTCPAddr("tcp", m.Address)
	if err != nil {
		return err
	}

	m.ln, err = net.ListenTCP("tcp", addr)
	return err
}

// start publishes the endpoint in the driver info file and serves
// connections, panicking on error.
func (m *module) start() {
	if err := m.infoFile.UpdateField(_outputKeyAddress, m.ln.Addr().String()); err != nil {
		panic(err)
	}
	if err := m.infoFile.UpdateField(_outputKeyPid, strconv.Itoa(os.Getpid())); err != nil {
		panic(err)
	}

	m.logger.Infow("started JSON-RPC inbound", zap.String("address", m.ln.Addr().String()))
	if err := jsonrpc2.Serve(context.Background(), m.ln, m, 0); err != nil {
		panic(err)
	}
}

// processConfig will parse the configuration for any values required by this
// module.
func (m *module) processConfig(cfg config.Provider) error {
	val := cfg.Get(_configKeyAddress)
	if err := val.Populate(&m.Address); err != nil {
		// incorrectly formatted config
		return fmt.Errorf("getting config field %q: %w", _configKeyAddress, err)
	}

	if m.Address == "" {
		// yaml is missing either the key or value
		return fmt.Errorf("missing field %q in config", _configKeyAddress)
	}

	return nil
}
