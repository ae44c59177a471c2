package driverdaemon

import (
	"context"

	"github.com/gofrs/uuid"
	tally "github.com/uber-go/tally/v4"
	"github.com/uber/cmake-driver/src/cmaked/entity"
	"go.lsp.dev/jsonrpc2"
)

// Methods of the daemon's inbound API.
const (
	MethodConfigure          = "driver/configure"
	MethodCleanConfigure     = "driver/cleanConfigure"
	MethodNeedsReconfigure   = "driver/needsReconfigure"
	MethodTargets            = "driver/targets"
	MethodCache              = "driver/cache"
	MethodCMakeFiles         = "driver/cmakeFiles"
	MethodGenerator          = "driver/generator"
	MethodState              = "driver/state"
	MethodSetKit             = "driver/setKit"
	MethodSetConfigurePreset = "driver/setConfigurePreset"
	MethodSetBuildPreset     = "driver/setBuildPreset"
	MethodSetTestPreset      = "driver/setTestPreset"
	MethodSubscribe          = "driver/subscribe"
	MethodStop               = "driver/stop"
)

// Notifications pushed to subscribed sessions.
const (
	MethodMessageEvent  = "driver/message"
	MethodProgressEvent = "driver/progress"
	MethodTargetsEvent  = "driver/targetsChanged"
)

type jsonRPCRouter struct {
	handler *handler
	uuid    uuid.UUID
	stats   tally.Scope
}

// HandleReq handles routing for a single request.
func (r *jsonRPCRouter) HandleReq(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	ctx = context.WithValue(ctx, entity.SessionContextKey, r.uuid)
	r.stats.Counter("requests").Inc(1)

	switch req.Method() {
	// Configure lifecycle.
	case MethodConfigure:
		return r.Configure(ctx, reply, req)

	case MethodCleanConfigure:
		return r.CleanConfigure(ctx, reply, req)

	case MethodNeedsReconfigure:
		return r.NeedsReconfigure(ctx, reply, req)

	case MethodStop:
		return r.Stop(ctx, reply, req)

	// Derived views.
	case MethodTargets:
		return r.Targets(ctx, reply, req)

	case MethodCache:
		return r.Cache(ctx, reply, req)

	case MethodCMakeFiles:
		return r.CMakeFiles(ctx, reply, req)

	case MethodGenerator:
		return r.Generator(ctx, reply, req)

	case MethodState:
		return r.State(ctx, reply, req)

	// Kit and preset selection.
	case MethodSetKit:
		return r.SetKit(ctx, reply, req)

	case MethodSetConfigurePreset:
		return r.SetConfigurePreset(ctx, reply, req)

	case MethodSetBuildPreset:
		return r.SetBuildPreset(ctx, reply, req)

	case MethodSetTestPreset:
		return r.SetTestPreset(ctx, reply, req)

	// Event subscription.
	case MethodSubscribe:
		return r.Subscribe(ctx, reply, req)
	}

	return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
}

// UUID returns the UUID assigned to this connection.
func (r *jsonRPCRouter) UUID() uuid.UUID {
	return r.uuid
}
