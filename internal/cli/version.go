package cli

import (
	"encoding/json"
	"fmt"
	goruntime "runtime"
	"runtime/debug"
	"text/tabwriter"

	"github.com/agentx-labs/exthost/internal/branding"
	"github.com/agentx-labs/exthost/internal/runtime"
	"github.com/spf13/cobra"
)

var (
	versionShort bool
	versionJSON  bool
)

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print the version number only")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print build and runtime details as JSON")
	rootCmd.AddCommand(versionCmd)
}

// engineModules maps each bundle runtime to the module that implements it.
var engineModules = map[string]string{
	runtime.RuntimeJS: "github.com/dop251/goja",
	runtime.RuntimeGo: "github.com/traefik/yaegi",
}

type versionInfo struct {
	Version  string            `json:"version"`
	Commit   string            `json:"commit"`
	Date     string            `json:"date"`
	Go       string            `json:"go"`
	Platform string            `json:"platform"`
	Runtimes map[string]string `json:"runtimes"`
}

func currentVersion() versionInfo {
	info := versionInfo{
		Version:  buildVersion,
		Commit:   buildCommit,
		Date:     buildDate,
		Go:       goruntime.Version(),
		Platform: goruntime.GOOS + "/" + goruntime.GOARCH,
		Runtimes: make(map[string]string, len(engineModules)),
	}
	deps := map[string]string{}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, d := range bi.Deps {
			deps[d.Path] = d.Version
		}
	}
	for name, mod := range engineModules {
		v := deps[mod]
		if v == "" {
			v = "unknown"
		}
		info.Runtimes[name] = mod + "@" + v
	}
	return info
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information and the bundled runtime engines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if versionShort {
			_, err := fmt.Fprintln(out, buildVersion)
			return err
		}

		info := currentVersion()
		if versionJSON {
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(data))
			return err
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "%s\t%s\n", branding.CLIName(), info.Version)
		fmt.Fprintf(w, "commit\t%s\n", info.Commit)
		fmt.Fprintf(w, "built\t%s\n", info.Date)
		fmt.Fprintf(w, "go\t%s %s\n", info.Go, info.Platform)
		for _, name := range []string{runtime.RuntimeJS, runtime.RuntimeGo} {
			fmt.Fprintf(w, "runtime %s\t%s\n", name, info.Runtimes[name])
		}
		return w.Flush()
	},
}
