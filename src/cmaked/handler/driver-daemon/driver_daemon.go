// Package driverdaemon exposes the driver over the daemon's inbound JSON-RPC
// endpoint and pushes driver events to subscribed connections.
package driverdaemon

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	tally "github.com/uber-go/tally/v4"
	"github.com/uber/cmake-driver/src/cmaked/controller/driver"
	"github.com/uber/cmake-driver/src/cmaked/entity"
	"github.com/uber/cmake-driver/src/cmaked/factory"
	"github.com/uber/cmake-driver/src/cmaked/internal/rpcserver"
	"github.com/uber/cmake-driver/src/cmaked/mapper"
	"github.com/uber/cmake-driver/src/cmaked/model"
	"github.com/uber/cmake-driver/src/cmaked/repository/session"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"
)

// Handler accepts inbound driver connections.
type Handler interface {
	ConnectionCount(ctx context.Context) (int, error)
}

type handler struct {
	driver   driver.Controller
	sessions session.Repository
	logger   *zap.SugaredLogger
	stats    tally.Scope
}

// New constructs the daemon handler, registers its connection manager, and
// starts forwarding driver events to subscribed sessions.
func New(ctrl driver.Controller, sessions session.Repository, rpc rpcserver.RPCServer, logger *zap.SugaredLogger, stats tally.Scope) (Handler, error) {
	h := &handler{
		driver:   ctrl,
		sessions: sessions,
		logger:   logger,
		stats:    stats,
	}

	c := jsonRPCConnectionManager{
		handler: h,
		stats:   stats.SubScope("json_rpc"),
	}
	if err := rpc.RegisterConnectionManager(&c); err != nil {
		return nil, err
	}

	ctrl.OnMessage(func(msg string) {
		h.broadcast(MethodMessageEvent, &model.DriverMessageEvent{Message: msg})
	})
	ctrl.OnProgress(func(p entity.Progress) {
		h.broadcast(MethodProgressEvent, mapper.ProgressToEvent(p))
	})
	ctrl.OnCodeModelChanged(func(*entity.CodeModel) {
		h.broadcast(MethodTargetsEvent, ctrl.UniqueTargets())
	})

	return h, nil
}

// ConnectionCount reports the number of active inbound connections.
func (h *handler) ConnectionCount(ctx context.Context) (int, error) {
	return h.sessions.SessionCount(ctx)
}

// broadcast pushes a notification to every subscribed session. Delivery is
// best effort; a failed session is logged and skipped.
func (h *handler) broadcast(method string, payload interface{}) {
	ctx := context.Background()
	sessions, err := h.sessions.Subscribed(ctx)
	if err != nil {
		h.logger.Errorw("listing subscribed sessions", zap.Error(err))
		return
	}
	for _, s := range sessions {
		if s.Conn == nil {
			continue
		}
		if err := (*s.Conn).Notify(ctx, method, payload); err != nil {
			h.logger.Warnw("notifying session",
				zap.Stringer("uuid", s.UUID),
				zap.String("method", method),
				zap.Error(err))
		}
	}
}

type jsonRPCConnectionManager struct {
	handler *handler
	stats   tally.Scope
}

// NewConnection stores a new connection and returns a router that includes
// its UUID.
func (c *jsonRPCConnectionManager) NewConnection(ctx context.Context, conn *jsonrpc2.Conn) (rpcserver.Router, error) {
	s := mapper.UUIDToSession(factory.UUID(), conn)
	if err := c.handler.sessions.Set(ctx, s); err != nil {
		return nil, fmt.Errorf("error while creating new connection: %w", err)
	}

	r := jsonRPCRouter{
		handler: c.handler,
		uuid:    s.UUID,
		stats:   c.stats,
	}

	return &r, nil
}

// RemoveConnection cleans up a closed connection.
func (c *jsonRPCConnectionManager) RemoveConnection(ctx context.Context, id uuid.UUID) {
	if err := c.handler.sessions.Delete(ctx, id); err != nil {
		c.handler.logger.Warnw("removing session", zap.Stringer("uuid", id), zap.Error(err))
	}
}
