package commands

import (
	"testing"

	"github.com/keshon/bpg/internal/config"
)

func TestParseBuildArgs(t *testing.T) {
	cfg, deleteExtra, buildFile, positional := parseBuildArgs([]string{
		"old", "new", "out",
		"--product", "demo",
		"--from-version=1.0.0",
		"--to-version", "1.1.0",
		"-d",
		"--config", "custom.yaml",
	})
	if cfg.Product != "demo" || cfg.FromVersion != "1.0.0" || cfg.ToVersion != "1.1.0" {
		t.Errorf("flags parsed wrong: %+v", cfg)
	}
	if deleteExtra == nil || !*deleteExtra || !cfg.DeleteExtra {
		t.Error("-d not recorded as an explicit choice")
	}
	if buildFile != "custom.yaml" {
		t.Errorf("config file = %q", buildFile)
	}
	if len(positional) != 3 || positional[0] != "old" || positional[2] != "out" {
		t.Errorf("positionals = %v", positional)
	}
}

func TestParseBuildArgsNoDeleteFlag(t *testing.T) {
	_, deleteExtra, _, _ := parseBuildArgs([]string{"old", "new", "out"})
	if deleteExtra != nil {
		t.Error("delete-extra should be unset without a flag")
	}
}

func TestKeepExtraOverridesBuildFile(t *testing.T) {
	cfg, deleteExtra, _, _ := parseBuildArgs([]string{"old", "new", "out", "--keep-extra"})
	mergeBuildFile(&cfg, &config.File{DeleteExtra: true}, deleteExtra)
	if cfg.DeleteExtra {
		t.Error("--keep-extra must win over the build file's delete_extra")
	}
}

func TestBuildFileDeleteExtraAppliesWhenUnset(t *testing.T) {
	cfg, deleteExtra, _, _ := parseBuildArgs([]string{"old", "new", "out"})
	mergeBuildFile(&cfg, &config.File{DeleteExtra: true}, deleteExtra)
	if !cfg.DeleteExtra {
		t.Error("build file delete_extra ignored when no flag was given")
	}
}
