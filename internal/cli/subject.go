package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/agentx-labs/exthost/internal/settings"
	"github.com/spf13/cobra"
)

var (
	subjectKind string
	subjectName string
	subjectJSON bool
)

func init() {
	subjectAddCmd.Flags().StringVar(&subjectKind, "kind", string(settings.KindOrg), "Subject kind (global, org, user)")
	subjectAddCmd.Flags().StringVar(&subjectName, "name", "", "Display name (defaults to the id)")
	subjectListCmd.Flags().BoolVar(&subjectJSON, "json", false, "Output in JSON format")

	subjectCmd.AddCommand(subjectListCmd)
	subjectCmd.AddCommand(subjectAddCmd)
	rootCmd.AddCommand(subjectCmd)
}

var subjectCmd = &cobra.Command{
	Use:   "subject",
	Short: "Manage settings subjects",
	Long: `A subject is one layer of the settings cascade. Subjects are merged in order
global, org, user; later layers override earlier ones.`,
}

type subjectEntry struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Revision string `json:"revision,omitempty"`
}

var subjectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subjects in cascade order",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		snap, err := store.Snapshot(cmd.Context())
		if err != nil {
			return err
		}

		entries := make([]subjectEntry, 0, len(snap.Subjects))
		for _, s := range snap.Subjects {
			e := subjectEntry{ID: s.ID, Kind: string(s.Kind), Name: s.Name}
			if s.LatestSettings != nil {
				e.Revision = s.LatestSettings.ID
			}
			entries = append(entries, e)
		}

		if subjectJSON {
			data, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tNAME\tREVISION")
		for _, e := range entries {
			rev := e.Revision
			if rev == "" {
				rev = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.Kind, e.Name, rev)
		}
		return w.Flush()
	},
}

var subjectAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Add a subject to the cascade",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := settings.SubjectKind(subjectKind)
		switch kind {
		case settings.KindGlobal, settings.KindOrg, settings.KindUser:
		default:
			return fmt.Errorf("unknown subject kind %q: use global, org or user", subjectKind)
		}
		name := subjectName
		if name == "" {
			name = args[0]
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.AddSubject(cmd.Context(), settings.Subject{ID: args[0], Kind: kind, Name: name, ViewerCanAdminister: true}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Subject %q added (%s).\n", args[0], kind)
		return nil
	},
}
