package segment

import "go.uber.org/fx"

var Module = fx.Module("segment.service",
	fx.Provide(
		NewService,
		NewScheduler,
	),
)
