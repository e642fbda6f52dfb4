package middleware

import (
	"fmt"
	"os"

	"github.com/keshon/bpg/internal/cli"
)

// WithDebugArgsPrint prints the raw command arguments when BPG_DEBUG is set
func WithDebugArgsPrint() cli.Middleware {
	return func(cmd cli.Command) cli.Command {
		return &cli.WrappedCommand{
			Command: cmd,
			Wrap: func(ctx *cli.Context) error {
				if os.Getenv("BPG_DEBUG") != "" {
					fmt.Printf("Args: %+v\n", ctx.Args)
				}
				return cmd.Run(ctx)
			},
		}
	}
}
