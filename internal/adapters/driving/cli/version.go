package cli

import (
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// buildInfo is what "opptrack version" reports.
type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// readBuildInfo falls back to the VCS revision stamped by the Go
// toolchain when no version was set at link time.
var readBuildInfo = func() buildInfo {
	info := buildInfo{
		Version:   version,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			info.Commit = s.Value[:12]
		}
	}
	return info
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := readBuildInfo()
		p := newPrinter(cmd.OutOrStdout())
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return p.JSON(info)
		}
		if info.Commit != "" {
			p.Line("opptrack %s (%s) %s %s", info.Version, info.Commit, info.GoVersion, info.Platform)
			return nil
		}
		p.Line("opptrack %s %s %s", info.Version, info.GoVersion, info.Platform)
		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("json", false, "print as JSON")
	rootCmd.AddCommand(versionCmd)
}
