package commands

import (
	"fmt"
	"strings"

	"github.com/keshon/bpg/internal/build"
	"github.com/keshon/bpg/internal/cli"
	"github.com/keshon/bpg/internal/config"
	"github.com/keshon/bpg/internal/embed"
	"github.com/keshon/bpg/internal/fs"
	"github.com/keshon/bpg/internal/middleware"
)

type BuildCommand struct{}

func (c *BuildCommand) Name() string  { return "build" }
func (c *BuildCommand) Brief() string { return "Build an updater executable from two directory trees" }
func (c *BuildCommand) Usage() string {
	return `build <old-dir> <new-dir> <output> --product <name> --from-version <semver> --to-version <semver> [-d|--keep-extra] [--stub <path>] [--config <bpg.yaml>]`
}
func (c *BuildCommand) Help() string {
	return `Diff the old and new trees, encode per-file binary deltas and produce a
standalone updater executable at <output>.

Usage:
  build <old-dir> <new-dir> <output> [options]

Options:
  --product <name>        product name recorded in the patch
  --from-version <semver> version the target installation must be at
  --to-version <semver>   version the installation is updated to
  -d, --delete-extra      delete files absent from the new tree
  --keep-extra            keep extra files even when the build file says otherwise
  --stub <path>           applier stub executable (default: next to bpg)
  --config <path>         YAML build file supplying defaults (default: bpg.yaml)`
}
func (c *BuildCommand) Aliases() []string { return []string{"b"} }

func (c *BuildCommand) Run(ctx *cli.Context) error {
	cfg, deleteExtra, buildFile, positional := parseBuildArgs(ctx.Args)

	if len(positional) != 3 {
		return fmt.Errorf("expected <old-dir> <new-dir> <output>, got %d arguments", len(positional))
	}
	cfg.OldDir, cfg.NewDir, cfg.Output = positional[0], positional[1], positional[2]

	osfs := fs.NewOSFS()
	if buildFile == "" && osfs.Exists(config.DefaultBuildFile) {
		buildFile = config.DefaultBuildFile
	}
	var file *config.File
	if buildFile != "" {
		f, err := config.LoadFile(buildFile)
		if err != nil {
			return err
		}
		file = f
	}
	mergeBuildFile(&cfg, file, deleteExtra)
	if cfg.StubPath == "" {
		cfg.StubPath = embed.DefaultStubPath()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	res, err := build.Run(cfg)
	if err != nil {
		return err
	}
	for _, d := range res.Diagnostics {
		fmt.Println("Warning:", d)
	}

	embedder := embed.NewStubEmbedder(cfg.StubPath)
	if err := embedder.Embed(res.Payload, cfg.Output); err != nil {
		return err
	}

	fmt.Printf("Built %s: %s %s -> %s (%d added, %d modified, %d removed, %d unchanged)\n",
		cfg.Output, cfg.Product, cfg.FromVersion, cfg.ToVersion,
		res.Added, res.Modified, res.Removed, res.Unchanged)
	return nil
}

// parseBuildArgs separates flags from positionals. deleteExtra is nil unless
// -d/--delete-extra or --keep-extra was given, so the merge can tell an
// explicit choice apart from the default.
func parseBuildArgs(args []string) (cfg config.Build, deleteExtra *bool, buildFile string, positional []string) {
	setDeleteExtra := func(v bool) {
		deleteExtra = &v
		cfg.DeleteExtra = v
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--product" && i+1 < len(args):
			cfg.Product = args[i+1]
			i++
		case strings.HasPrefix(arg, "--product="):
			cfg.Product = strings.TrimPrefix(arg, "--product=")
		case arg == "--from-version" && i+1 < len(args):
			cfg.FromVersion = args[i+1]
			i++
		case strings.HasPrefix(arg, "--from-version="):
			cfg.FromVersion = strings.TrimPrefix(arg, "--from-version=")
		case arg == "--to-version" && i+1 < len(args):
			cfg.ToVersion = args[i+1]
			i++
		case strings.HasPrefix(arg, "--to-version="):
			cfg.ToVersion = strings.TrimPrefix(arg, "--to-version=")
		case arg == "-d" || arg == "--delete-extra":
			setDeleteExtra(true)
		case arg == "--keep-extra":
			setDeleteExtra(false)
		case arg == "--stub" && i+1 < len(args):
			cfg.StubPath = args[i+1]
			i++
		case arg == "--config" && i+1 < len(args):
			buildFile = args[i+1]
			i++
		default:
			positional = append(positional, arg)
		}
	}
	return cfg, deleteExtra, buildFile, positional
}

// mergeBuildFile layers the build file under the parsed flags; an explicit
// -d or --keep-extra wins over the file's delete_extra.
func mergeBuildFile(cfg *config.Build, f *config.File, deleteExtra *bool) {
	if f != nil {
		f.ApplyTo(cfg)
	}
	if deleteExtra != nil {
		cfg.DeleteExtra = *deleteExtra
	}
}

func init() {
	cli.RegisterCommand(
		cli.ApplyMiddlewares(
			&BuildCommand{},
			middleware.WithDebugArgsPrint(),
		),
	)
}
