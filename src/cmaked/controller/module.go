package controller

import (
	"github.com/uber/cmake-driver/src/cmaked/controller/driver"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(driver.New),
)
