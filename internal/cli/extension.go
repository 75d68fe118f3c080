package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/agentx-labs/exthost/internal/extension"
	"github.com/agentx-labs/exthost/internal/registry"
	"github.com/agentx-labs/exthost/internal/settings"
	"github.com/spf13/cobra"
)

var (
	extensionSubject string
	extensionQuery   string
	extensionJSON    bool
	extensionWatch   bool
)

func init() {
	for _, c := range []*cobra.Command{extensionEnableCmd, extensionDisableCmd, extensionRemoveCmd} {
		c.Flags().StringVar(&extensionSubject, "subject", "", "Subject to edit (defaults to the user subject)")
	}
	extensionListCmd.Flags().StringVarP(&extensionQuery, "query", "q", "", "Filter by id, title, description or tag")
	extensionListCmd.Flags().BoolVar(&extensionJSON, "json", false, "Output in JSON format")
	extensionListCmd.Flags().BoolVarP(&extensionWatch, "watch", "w", false, "Re-list whenever the registry changes")

	extensionCmd.AddCommand(extensionListCmd)
	extensionCmd.AddCommand(extensionEnableCmd)
	extensionCmd.AddCommand(extensionDisableCmd)
	extensionCmd.AddCommand(extensionRemoveCmd)
	rootCmd.AddCommand(extensionCmd)
}

var extensionCmd = &cobra.Command{
	Use:     "extension",
	Aliases: []string{"ext"},
	Short:   "List, enable and activate extensions",
	Long: `Manage extensions from the registry.

An extension is enabled when the merged settings cascade maps its id to true
under "extensions". Disabling sets it to false; removing deletes the key so
a less specific subject decides again.`,
}

type extensionEntry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Version  string `json:"version,omitempty"`
	Status   string `json:"status"`
	Manifest string `json:"manifest"`
	Problem  string `json:"problem,omitempty"`
}

var extensionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registry extensions and their enablement",
	Long: `List registry extensions with their status.

Status values:
  enabled    the merged settings enable the extension
  disabled   the merged settings mention it with false
  available  no subject mentions it`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := printExtensionList(cmd); err != nil {
			return err
		}
		if !extensionWatch {
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return registry.Watch(ctx, appConfig.Registry.Path, logger, func(_ *registry.Index, err error) {
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "reloading registry: %v\n", err)
				return
			}
			fmt.Fprintln(cmd.OutOrStdout())
			if err := printExtensionList(cmd); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "listing extensions: %v\n", err)
			}
		})
	},
}

func printExtensionList(cmd *cobra.Command) error {
	ctx := cmd.Context()
	idx, err := loadRegistry()
	if err != nil {
		return err
	}
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := store.Snapshot(ctx)
	if err != nil {
		return err
	}

	matched := make(map[string]bool)
	for _, e := range idx.Search(extensionQuery) {
		matched[e.ID] = true
	}

	entries := []extensionEntry{}
	for _, l := range idx.Configured(settings.Merge(snap)) {
		if !matched[l.Extension.ID] {
			continue
		}
		entries = append(entries, toExtensionEntry(l))
	}

	if extensionJSON {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No extensions found.")
		return nil
	}
	return printExtensionTable(cmd.OutOrStdout(), entries)
}

func toExtensionEntry(l extension.Listing) extensionEntry {
	e := extensionEntry{
		ID:     l.Extension.ID,
		Title:  l.Extension.Title(),
		Status: l.Status(),
	}
	if l.Extension.RegistryExtension != nil {
		e.Version = l.Extension.RegistryExtension.Version
	}
	res := extension.ResolveManifest(l.Extension)
	e.Manifest = res.Kind.String()
	if res.Kind == extension.InvalidManifest {
		e.Problem = res.Message
	}
	return e
}

func printExtensionTable(out io.Writer, entries []extensionEntry) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tVERSION\tSTATUS\tMANIFEST")
	for _, e := range entries {
		version := e.Version
		if version == "" {
			version = "-"
		}
		manifest := e.Manifest
		if e.Problem != "" {
			manifest += " (" + e.Problem + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Title, version, e.Status, manifest)
	}
	return w.Flush()
}

var extensionEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable an extension",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled := true
		return editExtension(cmd, args[0], settings.ExtensionArgs{ExtensionID: args[0], Enabled: &enabled}, "enabled")
	},
}

var extensionDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable an extension",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled := false
		return editExtension(cmd, args[0], settings.ExtensionArgs{ExtensionID: args[0], Enabled: &enabled}, "disabled")
	},
}

var extensionRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an extension from a subject's settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editExtension(cmd, args[0], settings.ExtensionArgs{ExtensionID: args[0], Remove: true}, "removed")
	},
}

func editExtension(cmd *cobra.Command, id string, args settings.ExtensionArgs, verb string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	updater, cached := newUpdater(store)
	subject := extensionSubject
	if subject == "" {
		// The updater reads the same cached snapshot, so this is the subject
		// it edits.
		snap, serr := cached.Snapshot(ctx)
		if serr != nil {
			return serr
		}
		if last, ok := snap.Last(); ok {
			subject = last.ID
		}
		err = updater.UpdateUserExtensionSettings(ctx, args)
	} else {
		err = updater.UpdateSettings(ctx, subject, args)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Extension %q %s in %s.\n", id, verb, subject)
	return nil
}

// waitForSignal blocks until SIGINT/SIGTERM or done is closed.
func waitForSignal(ctx context.Context, done <-chan struct{}) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case <-ctx.Done():
	case <-done:
	}
}
