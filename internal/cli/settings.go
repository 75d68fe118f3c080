package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/agentx-labs/exthost/internal/settings"
	"github.com/spf13/cobra"
)

var (
	settingsSubject string
	settingsHistory int
)

func init() {
	settingsShowCmd.Flags().StringVar(&settingsSubject, "subject", "", "Show one subject instead of the merged cascade")
	settingsShowCmd.Flags().IntVar(&settingsHistory, "history", 0, "With --subject, list the last N revisions")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsEditCmd)
	rootCmd.AddCommand(settingsCmd)
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and edit the settings cascade",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print merged settings, or one subject's settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if settingsSubject != "" && settingsHistory > 0 {
			records, err := store.History(ctx, settingsSubject, settingsHistory)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "REVISION\tCREATED\tCONTENTS")
			for _, r := range records {
				data, _ := json.Marshal(r.Contents)
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), data)
			}
			return w.Flush()
		}

		snap, err := store.Snapshot(ctx)
		if err != nil {
			return err
		}

		contents := settings.Merge(snap)
		if settingsSubject != "" {
			s, ok := snap.Subject(settingsSubject)
			if !ok {
				return &settings.Error{Kind: settings.UnknownSubject, SubjectID: settingsSubject}
			}
			contents = map[string]any{}
			if s.LatestSettings != nil {
				contents = s.LatestSettings.Contents
			}
		}

		data, err := json.MarshalIndent(contents, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding settings: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

var settingsEditCmd = &cobra.Command{
	Use:   "edit <subject> <key-path> <json-value>",
	Short: "Set a value in a subject's settings",
	Long: `Set a value in a subject's settings. The key path is dot separated
("extensions.acme/hello") or a JSON array (["extensions","acme.hello"]); the
value is JSON, with bare words taken as strings. A null value removes the key.

Example:
  exthost settings edit user theme '"dark"'
  exthost settings edit global extensions.acme/hello true
  exthost settings edit user '["extensions","acme/hello"]' null`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := parseKeyPath(args[1])
		if err != nil {
			return err
		}
		value := parseValue(args[2])

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		updater, _ := newUpdater(store)
		err = updater.UpdateSettings(ctx, args[0], settings.ExtensionArgs{
			Edit: &settings.Edit{Path: path, Value: value},
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s in %s.\n", args[1], args[0])
		return nil
	},
}

// parseKeyPath accepts "a.b.0" or a JSON array. Integer segments become
// array indexes.
func parseKeyPath(s string) ([]any, error) {
	if strings.HasPrefix(strings.TrimSpace(s), "[") {
		var path []any
		if err := json.Unmarshal([]byte(s), &path); err != nil {
			return nil, fmt.Errorf("parsing key path %s: %w", s, err)
		}
		for i, seg := range path {
			if f, ok := seg.(float64); ok && f == float64(int(f)) {
				path[i] = int(f)
			}
		}
		return path, nil
	}

	var path []any
	for _, seg := range strings.Split(s, ".") {
		if seg == "" {
			return nil, fmt.Errorf("key path %q has an empty segment", s)
		}
		if n, err := strconv.Atoi(seg); err == nil {
			path = append(path, n)
			continue
		}
		path = append(path, seg)
	}
	return path, nil
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}
