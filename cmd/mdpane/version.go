package main

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

const defaultModule = "pkt.systems/mdpane"

// buildVersion is set via -ldflags "-X main.buildVersion=...".
var buildVersion = ""

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, _ := debug.ReadBuildInfo()
			module, version := versionInfo(info)
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", module, version)
			return err
		},
	}
}

// versionInfo prefers the linker-set version, then the module version,
// then the VCS revision.
func versionInfo(info *debug.BuildInfo) (string, string) {
	module := defaultModule
	if info == nil {
		return module, fallbackVersion("")
	}
	if path := strings.TrimSpace(info.Main.Path); path != "" {
		module = path
	}
	if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
		return module, fallbackVersion(v)
	}
	revision := ""
	dirty := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if revision == "" {
		return module, fallbackVersion("")
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	if dirty {
		revision += "+dirty"
	}
	return module, fallbackVersion("devel-" + revision)
}

func fallbackVersion(v string) string {
	if strings.TrimSpace(buildVersion) != "" {
		return strings.TrimSpace(buildVersion)
	}
	if v == "" {
		return "v0.0.0-unknown"
	}
	return v
}
