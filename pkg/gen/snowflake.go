package gen

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("gen",
	fx.Provide(NewNode),
)

// NewNode builds the process-wide snowflake node. Node ID 1 is fine for the
// engine: it runs as a single worker per environment.
func NewNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
