package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentx-labs/exthost/internal/manifest"
	"github.com/agentx-labs/exthost/internal/registry"
	"github.com/agentx-labs/exthost/internal/scaffold"
	"github.com/agentx-labs/exthost/internal/userdata"
	"github.com/spf13/cobra"
)

var (
	createRuntime string
	createDir     string
	createBaseURL string

	publishDir     string
	publishVersion string
	publishURL     string
)

func init() {
	createCmd.Flags().StringVarP(&createRuntime, "runtime", "r", "js", "Bundle runtime (js or go)")
	createCmd.Flags().StringVarP(&createDir, "dir", "d", "", "Output directory (defaults to ~/.exthost/extensions/<id>)")
	createCmd.Flags().StringVar(&createBaseURL, "base-url", scaffold.DefaultBaseURL, "Base URL the bundle will be served from")

	publishCmd.Flags().StringVarP(&publishDir, "dir", "d", ".", "Directory containing manifest.yaml")
	publishCmd.Flags().StringVar(&publishVersion, "version", "", "Release version (defaults to the manifest version)")
	publishCmd.Flags().StringVar(&publishURL, "url", "", "Details page URL for the registry entry")

	extensionCmd.AddCommand(createCmd)
	extensionCmd.AddCommand(publishCmd)
}

var createCmd = &cobra.Command{
	Use:   "create <id>",
	Short: "Scaffold a new extension",
	Long: `Scaffold a new extension with a manifest, a bundle and a README.

The id is a slash-separated name such as acme/word-count. The generated
manifest points at <base-url>/bundle.<runtime>.`,
	Example: `  exthost extension create acme/word-count
  exthost extension create acme/word-count --runtime go --dir ./word-count`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("extension id must not be empty")
		}
		dir := createDir
		if dir == "" {
			root, err := userdata.GetExtensionsRoot()
			if err != nil {
				return err
			}
			dir = filepath.Join(root, filepath.FromSlash(id))
		}

		data := scaffold.NewScaffoldData(id, createRuntime, createBaseURL)
		result, err := scaffold.Generate(data, dir)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created %s in %s\n", id, result.OutputDir)
		for _, f := range result.Files {
			fmt.Fprintf(out, "  %s\n", f)
		}
		for _, w := range result.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
		}
		fmt.Fprintf(out, "\nServe %s at %s, then run:\n  %s extension publish %s --dir %s\n",
			data.BundleFile, data.URL, cmd.Root().Name(), id, result.OutputDir)
		return nil
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish <id>",
	Short: "Publish an extension manifest to the registry",
	Long: `Validate manifest.yaml and add it to the registry as a release.

Publishing a version that already exists replaces its manifest.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		file := filepath.Join(publishDir, scaffold.ManifestFile)
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading manifest: %w", err)
		}

		res, err := manifest.Validate(data)
		if err != nil {
			return err
		}
		if !res.Valid {
			return fmt.Errorf("%s: %s", file, res.Summary())
		}

		version := publishVersion
		if version == "" {
			if v, ok := manifest.Parse(data).(*manifest.Valid); ok {
				version = v.Version
			}
		}
		if version == "" {
			return fmt.Errorf("no version in %s; pass --version", file)
		}

		rel := registry.Release{Version: version, Manifest: string(data)}
		if err := registry.Publish(appConfig.Registry.Path, id, publishURL, rel); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Published %s@%s to %s\n", id, version, appConfig.Registry.Path)
		return nil
	},
}
