package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/paywallbot/internal/commands"
	"github.com/nextlevelbuilder/paywallbot/internal/sites"
	"github.com/nextlevelbuilder/paywallbot/internal/store/file"
)

func sitesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Inspect or edit the paywall list offline",
		Long:  "Edits the same override file the bot uses. A running bot with watching enabled picks the change up automatically.",
	}
	cmd.AddCommand(sitesListCmd())
	cmd.AddCommand(sitesEditCmd("add", commands.AddSite, "Add a domain (or re-enable a built-in one)"))
	cmd.AddCommand(sitesEditCmd("remove", commands.RemoveSite, "Remove a domain from the paywall list"))
	return cmd
}

func sitesListCmd() *cobra.Command {
	var userOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List effective paywall domains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			printSites(cmd.OutOrStdout(), registry, userOnly)
			return nil
		},
	}
	cmd.Flags().BoolVar(&userOnly, "user", false, "only show domains that are not built in")
	return cmd
}

func printSites(w io.Writer, registry *sites.Registry, userOnly bool) {
	for _, d := range registry.List() {
		if userOnly && registry.IsBuiltin(d) {
			continue
		}
		fmt.Fprintln(w, d)
	}
	st := registry.Stats()
	fmt.Fprintf(w, "\n%d effective (%d built-in, %d added, %d removed)\n", st.Effective, st.Builtin, st.Added, st.Removed)
}

func sitesEditCmd(use, verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <domain>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			reply, _ := commands.New(registry).Dispatch(cmd.Context(), verb+" "+args[0])
			fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
			if !reply.OK {
				return fmt.Errorf("%s %s failed", use, args[0])
			}
			return nil
		},
	}
}

func openRegistry(ctx context.Context) (*sites.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	path := cfg.Sites.OverridesPath()
	if _, err := os.Stat(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("override file %s: %w", path, err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return sites.New(ctx, file.NewOverrideFile(path), sites.Options{
		Builtin: sites.Builtin,
		Mode:    sites.ParseMatchMode(cfg.Sites.MatchMode),
	}), nil
}
