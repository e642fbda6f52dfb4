package commands

import (
	"fmt"

	"github.com/keshon/bpg/internal/cli"
	"github.com/keshon/bpg/internal/embed"
	"github.com/keshon/bpg/internal/middleware"
	"github.com/keshon/bpg/internal/patch"
)

type InspectCommand struct{}

func (c *InspectCommand) Name() string  { return "inspect" }
func (c *InspectCommand) Brief() string { return "Show the patch carried by a generated updater" }
func (c *InspectCommand) Usage() string { return "inspect <updater> [-v]" }
func (c *InspectCommand) Help() string {
	return `Print the metadata and change summary of an updater executable.

Usage:
  inspect <updater>     - metadata and counts
  inspect <updater> -v  - additionally list every packaged record`
}
func (c *InspectCommand) Aliases() []string { return []string{"i"} }

func (c *InspectCommand) Run(ctx *cli.Context) error {
	var path string
	verbose := false
	for _, arg := range ctx.Args {
		if arg == "-v" || arg == "--verbose" {
			verbose = true
			continue
		}
		if path == "" {
			path = arg
		}
	}
	if path == "" {
		return fmt.Errorf("updater path required")
	}

	payload, err := embed.ExtractPayload(path)
	if err != nil {
		return err
	}
	p, err := patch.ReadBytes(payload)
	if err != nil {
		return err
	}

	added, modified, removed := p.Counts()
	fmt.Printf("Product:      %s\n", p.Meta.Product)
	fmt.Printf("From version: %s\n", p.Meta.FromVersion)
	fmt.Printf("To version:   %s\n", p.Meta.ToVersion)
	fmt.Printf("Delete extra: %v\n", p.Meta.DeleteExtra)
	fmt.Printf("Records:      %d (%d added, %d modified, %d removed)\n",
		len(p.Records), added, modified, removed)

	if verbose {
		for _, r := range p.Records {
			fmt.Printf("  %-16s %s (%d bytes)\n", r.Kind, r.Path, len(r.Blob))
		}
	}
	return nil
}

func init() {
	cli.RegisterCommand(
		cli.ApplyMiddlewares(
			&InspectCommand{},
			middleware.WithDebugArgsPrint(),
		),
	)
}
