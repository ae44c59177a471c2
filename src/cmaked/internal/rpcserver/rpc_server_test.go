package rpcserver

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/config"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

type fakeInfoFile struct {
	mu     sync.Mutex
	fields map[string]string
	wrote  chan string
}

func newFakeInfoFile() *fakeInfoFile {
	return &fakeInfoFile{
		fields: make(map[string]string),
		wrote:  make(chan string, 8),
	}
}

func (f *fakeInfoFile) UpdateField(key, value string) error {
	f.mu.Lock()
	f.fields[key] = value
	f.mu.Unlock()
	f.wrote <- key
	return nil
}

func (f *fakeInfoFile) get(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields[key]
}

type stubRouter struct {
	id     uuid.UUID
	handle jsonrpc2.Handler
}

func (r *stubRouter) HandleReq(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return r.handle(ctx, reply, req)
}

func (r *stubRouter) UUID() uuid.UUID { return r.id }

type stubConnectionManager struct {
	router  Router
	err     error
	mu      sync.Mutex
	removed []uuid.UUID
}

func (m *stubConnectionManager) NewConnection(ctx context.Context, conn *jsonrpc2.Conn) (Router, error) {
	return m.router, m.err
}

func (m *stubConnectionManager) RemoveConnection(ctx context.Context, id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, id)
}

func newTestConfig(t *testing.T, yaml string) config.Provider {
	t.Helper()
	provider, err := config.NewYAML(config.Source(strings.NewReader(yaml)))
	require.NoError(t, err)
	return provider
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{
			name:    "missing required params",
			params:  Params{},
			wantErr: true,
		},
		{
			name: "all required params are present",
			params: Params{
				Lifecycle: fxtest.NewLifecycle(t),
				Config:    newTestConfig(t, "jsonrpc:\n  address: :5859\n"),
				Logger:    zap.NewNop().Sugar(),
				InfoFile:  newFakeInfoFile(),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.params)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegisterConnectionManager(t *testing.T) {
	m := module{}
	mgr := &stubConnectionManager{}

	// first call should return no error
	assert.NoError(t, m.RegisterConnectionManager(mgr))

	// duplicate call should return error
	assert.Error(t, m.RegisterConnectionManager(mgr))
}

func TestServeStreamRequiresConnectionManager(t *testing.T) {
	m := module{logger: zap.NewNop().Sugar()}

	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(serverSide))
	defer conn.Close()

	assert.Error(t, m.ServeStream(context.Background(), conn))
}

func TestServeStreamNewConnectionError(t *testing.T) {
	m := module{logger: zap.NewNop().Sugar()}
	require.NoError(t, m.RegisterConnectionManager(&stubConnectionManager{err: errors.New("sample error")}))

	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(serverSide))
	defer conn.Close()

	assert.Error(t, m.ServeStream(context.Background(), conn))
}

func TestServeStreamRoutesUntilDisconnect(t *testing.T) {
	id, err := uuid.NewV4()
	require.NoError(t, err)

	mgr := &stubConnectionManager{
		router: &stubRouter{
			id:     id,
			handle: jsonrpc2.MethodNotFoundHandler,
		},
	}

	m := module{logger: zap.NewNop().Sugar()}
	require.NoError(t, m.RegisterConnectionManager(mgr))

	clientSide, serverSide := net.Pipe()
	serverConn := jsonrpc2.NewConn(jsonrpc2.NewStream(serverSide))

	served := make(chan error, 1)
	go func() {
		served <- m.ServeStream(context.Background(), serverConn)
	}()

	require.NoError(t, clientSide.Close())

	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("ServeStream did not return after disconnect")
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	assert.Equal(t, []uuid.UUID{id}, mgr.removed)
}

func TestSetup(t *testing.T) {
	m := module{logger: zap.NewNop().Sugar()}
	assert.Error(t, m.setup())

	m = module{Address: "127.0.0.1:0"}
	require.NoError(t, m.setup())
	m.ln.Close()
}

func TestProcessConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "valid configuration",
			yaml: "jsonrpc:\n  address: :5859\n",
		},
		{
			name:    "missing address key",
			yaml:    "jsonrpc: {}\n",
			wantErr: "missing field \"jsonrpc.address\" in config",
		},
		{
			name:    "missing address value",
			yaml:    "jsonrpc:\n  address:\n",
			wantErr: "missing field \"jsonrpc.address\" in config",
		},
		{
			name:    "incorrectly formatted entry",
			yaml:    "jsonrpc:\n  address:\n    key: val\n",
			wantErr: "getting config field \"jsonrpc.address\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := module{logger: zap.NewNop().Sugar()}
			err := m.processConfig(newTestConfig(t, tt.yaml))

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOnStartRequiresAddress(t *testing.T) {
	m := module{logger: zap.NewNop().Sugar()}
	assert.Error(t, m.OnStart(context.Background()))
}

func TestEndToEndRequest(t *testing.T) {
	id, err := uuid.NewV4()
	require.NoError(t, err)

	mgr := &stubConnectionManager{
		router: &stubRouter{
			id: id,
			handle: func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
				if req.Method() == "ping" {
					return reply(ctx, "pong", nil)
				}
				return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
			},
		},
	}

	info := newFakeInfoFile()
	m := module{
		Address:  "127.0.0.1:0",
		logger:   zap.NewNop().Sugar(),
		infoFile: info,
	}
	require.NoError(t, m.RegisterConnectionManager(mgr))
	require.NoError(t, m.OnStart(context.Background()))
	defer m.ln.Close()

	// wait for both the advertised address and the pid to be published
	for info.get(_outputKeyAddress) == "" || info.get(_outputKeyPid) == "" {
		select {
		case <-info.wrote:
		case <-time.After(time.Second):
			t.Fatal("endpoint info was never published")
		}
	}
	addr := info.get(_outputKeyAddress)

	sock, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(sock))
	conn.Go(context.Background(), jsonrpc2.MethodNotFoundHandler)
	defer conn.Close()

	var result string
	_, err = conn.Call(context.Background(), "ping", nil, &result)
	require.NoError(t, err)
	assert.Equal(t, "pong", result)
}
