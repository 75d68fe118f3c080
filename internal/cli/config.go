package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/agentx-labs/exthost/internal/config"
	"github.com/spf13/cobra"
)

var configJSON bool

func init() {
	configListCmd.Flags().BoolVar(&configJSON, "json", false, "Output in JSON format")

	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change host configuration",
	Long: `Read and write configuration stored at ~/.exthost/config.yaml.

Values resolve from EXTHOST_ environment variables first, then the file, then
built-in defaults; for example EXTHOST_LOG_LEVEL=debug overrides log.level.
List values such as registry.mirrors are comma separated. Run
"exthost config list" for every key.`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show every configuration key and its resolved value",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := config.All(configPath)
		if err != nil {
			return err
		}
		if configJSON {
			data, err := json.MarshalIndent(values, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE")
		for _, k := range config.Keys() {
			fmt.Fprintf(w, "%s\t%s\n", k, values[k])
		}
		return w.Flush()
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one resolved configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := config.Get(configPath, args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
		return err
	},
}

var configSetCmd = &cobra.Command{
	Use:     "set <key> <value>",
	Short:   "Write a configuration value to the config file",
	Example: `  exthost config set runtime.default go
  exthost config set registry.mirrors /srv/team.yaml,/srv/public.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Set(configPath, args[0], args[1]); err != nil {
			return err
		}
		path := configPath
		if path == "" {
			path = config.FilePath()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s updated in %s\n", args[0], path)
		return nil
	},
}
