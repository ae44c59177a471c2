package driverdaemon

import (
	"context"

	"github.com/uber/cmake-driver/src/cmaked/entity"
	"github.com/uber/cmake-driver/src/cmaked/mapper"
	"github.com/uber/cmake-driver/src/cmaked/model"
	"go.lsp.dev/jsonrpc2"
)

// Configure runs a configure and compute cycle and returns its exit code.
func (r *jsonRPCRouter) Configure(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToConfigureParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	code, err := r.handler.driver.Configure(ctx, params.Args, nil)
	if err != nil {
		return reply(ctx, nil, err)
	}

	return reply(ctx, &model.DriverConfigureResult{ExitCode: code}, nil)
}

// CleanConfigure removes prior configuration artifacts and configures from
// scratch.
func (r *jsonRPCRouter) CleanConfigure(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToConfigureParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	code, err := r.handler.driver.CleanConfigure(ctx, params.Args, nil)
	if err != nil {
		return reply(ctx, nil, err)
	}

	return reply(ctx, &model.DriverConfigureResult{ExitCode: code}, nil)
}

// NeedsReconfigure reports whether the generated build system is stale.
func (r *jsonRPCRouter) NeedsReconfigure(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return reply(ctx, &model.DriverNeedsReconfigureResult{
		NeedsReconfigure: r.handler.driver.NeedsReconfigure(),
	}, nil)
}

// Stop shuts down the driver's cmake server connection.
func (r *jsonRPCRouter) Stop(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return reply(ctx, nil, r.handler.driver.Stop(ctx))
}

// Targets returns the requested target view.
func (r *jsonRPCRouter) Targets(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToTargetsParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	var targets []entity.RichTarget
	switch params.Kind {
	case "executable":
		targets = r.handler.driver.ExecutableTargets()
	case "unique":
		targets = r.handler.driver.UniqueTargets()
	default:
		targets = r.handler.driver.Targets()
	}

	return reply(ctx, targets, nil)
}

// Cache returns the current cache entries.
func (r *jsonRPCRouter) Cache(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return reply(ctx, mapper.CacheEntriesToWire(r.handler.driver.CacheEntries()), nil)
}

// CMakeFiles returns the tracked build-definition files.
func (r *jsonRPCRouter) CMakeFiles(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return reply(ctx, r.handler.driver.CMakeFiles(), nil)
}

// Generator returns the generator in use.
func (r *jsonRPCRouter) Generator(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return reply(ctx, &model.DriverGeneratorResult{Generator: r.handler.driver.GeneratorName()}, nil)
}

// State returns the driver's lifecycle state.
func (r *jsonRPCRouter) State(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return reply(ctx, &model.DriverStateResult{State: r.handler.driver.State().String()}, nil)
}

// SetKit applies a new kit selection.
func (r *jsonRPCRouter) SetKit(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	kit, err := mapper.RequestToKit(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	err = r.handler.driver.SetKit(ctx, func(k *entity.Kit) error {
		*k = *kit
		return nil
	})
	return reply(ctx, nil, err)
}

// SetConfigurePreset applies a new configure preset.
func (r *jsonRPCRouter) SetConfigurePreset(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	preset, needsClean, err := mapper.RequestToConfigurePreset(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	err = r.handler.driver.SetConfigurePreset(ctx, needsClean, func(p *entity.ConfigurePreset) error {
		*p = *preset
		return nil
	})
	return reply(ctx, nil, err)
}

// SetBuildPreset applies a new build preset.
func (r *jsonRPCRouter) SetBuildPreset(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	preset, err := mapper.RequestToBuildPreset(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	err = r.handler.driver.SetBuildPreset(func(p *entity.BuildPreset) error {
		*p = *preset
		return nil
	})
	return reply(ctx, nil, err)
}

// SetTestPreset applies a new test preset.
func (r *jsonRPCRouter) SetTestPreset(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	preset, err := mapper.RequestToTestPreset(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	err = r.handler.driver.SetTestPreset(func(p *entity.TestPreset) error {
		*p = *preset
		return nil
	})
	return reply(ctx, nil, err)
}

// Subscribe opts this session into driver notifications.
func (r *jsonRPCRouter) Subscribe(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	s, err := r.handler.sessions.GetFromContext(ctx)
	if err != nil {
		return reply(ctx, nil, err)
	}

	s.Subscribed = true
	if err := r.handler.sessions.Set(ctx, s); err != nil {
		return reply(ctx, nil, err)
	}

	return reply(ctx, nil, nil)
}
