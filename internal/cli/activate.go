package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agentx-labs/exthost/internal/activation"
	"github.com/agentx-labs/exthost/internal/extension"
	"github.com/agentx-labs/exthost/internal/settings"
	"github.com/spf13/cobra"
)

var (
	activateAll     bool
	activateForce   bool
	activateCall    string
	activateParams  string
	activateTimeout time.Duration
)

func init() {
	activateCmd.Flags().BoolVar(&activateAll, "all", false, "Activate every enabled extension")
	activateCmd.Flags().BoolVar(&activateForce, "force", false, "Activate even if the extension is not enabled")
	activateCmd.Flags().StringVar(&activateCall, "call", "", "Call this JSON-RPC method and exit")
	activateCmd.Flags().StringVar(&activateParams, "params", "", "JSON params for --call")
	activateCmd.Flags().DurationVar(&activateTimeout, "timeout", 30*time.Second, "Timeout for --call")

	extensionCmd.AddCommand(activateCmd)
}

var activateCmd = &cobra.Command{
	Use:   "activate [id]",
	Short: "Fetch, launch and connect to extensions",
	Long: `Activate an extension: resolve its manifest, fetch the bundle, start it in an
isolated runtime and connect a JSON-RPC client over its message transport.

With --call the command invokes one method, prints the result and exits.
Otherwise it keeps the extensions running until interrupted.`,
	Example: `  exthost extension activate acme/hello --call hello --params '{"name":"ada"}'
  exthost extension activate --all`,
	Args: func(cmd *cobra.Command, args []string) error {
		if activateAll {
			if len(args) > 0 {
				return errors.New("--all takes no extension id")
			}
			if activateCall != "" {
				return errors.New("--call needs a single extension id")
			}
			return nil
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		exts, err := extensionsToActivate(ctx, args)
		if err != nil {
			return err
		}
		if len(exts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No enabled extensions.")
			return nil
		}

		host := newHost()
		defer host.Close()

		if activateCall != "" {
			return callExtension(ctx, cmd, host, exts[0])
		}

		if err := host.ActivateAll(ctx, exts); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
		}
		active := host.Active()
		if len(active) == 0 {
			return errors.New("no extension could be activated")
		}
		for _, id := range active {
			fmt.Fprintf(cmd.OutOrStdout(), "Activated %s\n", id)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop.")
		waitForSignal(ctx, nil)
		return nil
	},
}

// extensionsToActivate looks up the requested extension, or every enabled
// one with --all.
func extensionsToActivate(ctx context.Context, args []string) ([]extension.ConfiguredExtension, error) {
	idx, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	snap, err := store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	merged := settings.Merge(snap)

	if activateAll {
		var exts []extension.ConfiguredExtension
		for _, l := range idx.Configured(merged) {
			if l.Enabled {
				exts = append(exts, l.Extension)
			}
		}
		return exts, nil
	}

	ext, err := idx.Lookup(args[0])
	if err != nil {
		return nil, err
	}
	if _, enabled := settings.ExtensionState(merged, ext.ID); !enabled && !activateForce {
		return nil, fmt.Errorf("extension %s is not enabled; run 'extension enable %s' or pass --force", ext.ID, ext.ID)
	}
	return []extension.ConfiguredExtension{ext}, nil
}

func callExtension(ctx context.Context, cmd *cobra.Command, host *activation.Host, ext extension.ConfiguredExtension) error {
	var params any
	if activateParams != "" {
		if !json.Valid([]byte(activateParams)) {
			return errors.New("--params is not valid JSON")
		}
		params = json.RawMessage(activateParams)
	}

	ctx, cancel := context.WithTimeout(ctx, activateTimeout)
	defer cancel()

	client, err := host.Activate(ctx, ext)
	if err != nil {
		return err
	}

	var result json.RawMessage
	if err := client.Call(ctx, activateCall, params, &result); err != nil {
		return fmt.Errorf("calling %s on %s: %w", activateCall, ext.ID, err)
	}
	if len(result) == 0 {
		result = json.RawMessage("null")
	}

	var pretty any
	if err := json.Unmarshal(result, &pretty); err != nil {
		return fmt.Errorf("decoding result: %w", err)
	}
	data, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
