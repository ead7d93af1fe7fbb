package livefeed

import "go.uber.org/fx"

// Module provides the shared snapshot hub.
var Module = fx.Module("livefeed",
	fx.Provide(NewHub),
)
