// Package app assembles the cmaked daemon.
package app

import (
	"context"
	"time"

	tally "github.com/uber-go/tally/v4"
	cmakeserver "github.com/uber/cmake-driver/src/cmaked/gateway/cmake-server"
	"github.com/uber/cmake-driver/src/cmaked/handler"
	"github.com/uber/cmake-driver/src/cmaked/internal/core"
	"github.com/uber/cmake-driver/src/cmaked/internal/executor"
	"github.com/uber/cmake-driver/src/cmaked/internal/fs"
	"github.com/uber/cmake-driver/src/cmaked/internal/infofile"
	"github.com/uber/cmake-driver/src/cmaked/internal/rpcserver"
	"github.com/uber/cmake-driver/src/cmaked/internal/settings"
	"go.uber.org/fx"
)

// Module defines the cmaked application module.
var Module = fx.Options(
	cmakeserver.Module, // outbound connection to the cmake server
	handler.Module,     // inbound daemon surface
	rpcserver.Module,
	fs.Module,
	executor.Module,
	infofile.Module,
	settings.Module,
	core.ConfigModule,
	core.LoggerModule,
	fx.Provide(func(lc fx.Lifecycle) tally.Scope {
		rs, closer := tally.NewRootScope(tally.ScopeOptions{
			Tags: map[string]string{
				"service": "cmaked",
			},
		}, 1*time.Second)

		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return closer.Close()
			},
		})

		return rs
	}),
)
