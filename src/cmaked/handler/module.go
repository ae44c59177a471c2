package handler

import (
	"github.com/uber/cmake-driver/src/cmaked/controller"
	"github.com/uber/cmake-driver/src/cmaked/controller/driver"
	driverdaemon "github.com/uber/cmake-driver/src/cmaked/handler/driver-daemon"
	"github.com/uber/cmake-driver/src/cmaked/repository/session"
	"go.uber.org/fx"
)

// Module provides the cmaked inbound surface into an Fx application.
var Module = fx.Options(
	controller.Module,
	fx.Provide(session.New),
	fx.Provide(driverdaemon.New),
	fx.Invoke(func(h driverdaemon.Handler) {}),
	fx.Invoke(func(c driver.Controller) {}),
)
