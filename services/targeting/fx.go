package targeting

import "go.uber.org/fx"

var Module = fx.Module("targeting.service",
	fx.Provide(
		NewService,
	),
)
