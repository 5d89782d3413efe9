package commands

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hearthware/souschef/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage contexts.

A context names one kitchen server plus the credentials and defaults used
to talk to it (API key/secret, default room and identity).

Examples:
  souschef config list
  souschef config add staging --server https://kitchen.example.com --api-key key --api-secret secret
  souschef config use dev
  souschef config current
  souschef config delete staging`,
}

var configListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		names := cfg.ListContexts()
		sort.Strings(names)
		if len(names) == 0 {
			fmt.Println("No contexts configured.")
			fmt.Println("Create one with: souschef config add <name> --server <url>")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tSERVER\tROOM\tAPI KEY")
		for _, name := range names {
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			ctx, err := cfg.GetContext(name)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				current, name, ctx.ServerURL, ctx.Room, cli.MaskSecret(ctx.APIKey))
		}
		w.Flush()
		return nil
	},
}

var (
	flagCtxServer    string
	flagCtxAPIKey    string
	flagCtxAPISecret string
	flagCtxRoom      string
	flagCtxIdentity  string
)

var configAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create or update a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		name := args[0]

		ctx, err := cfg.GetContext(name)
		if err != nil {
			ctx = &cli.Context{Name: name}
		}
		if flagCtxServer != "" {
			ctx.ServerURL = flagCtxServer
		}
		if flagCtxAPIKey != "" {
			ctx.APIKey = flagCtxAPIKey
		}
		if flagCtxAPISecret != "" {
			ctx.APISecret = flagCtxAPISecret
		}
		if flagCtxRoom != "" {
			ctx.Room = flagCtxRoom
		}
		if flagCtxIdentity != "" {
			ctx.Identity = flagCtxIdentity
		}

		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q saved.", name)
		if cfg.CurrentContext == "" {
			if err := cfg.UseContext(name); err == nil {
				cli.PrintInfo("Context %q is now current.", name)
			}
		}
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context %q.", args[0])
		return nil
	},
}

var configCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		ctx, err := cfg.GetCurrentContext()
		if err != nil {
			return err
		}
		masked := *ctx
		masked.APISecret = cli.MaskSecret(ctx.APISecret)
		return cli.Output(&masked, OutputOptions())
	},
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q deleted.", args[0])
		return nil
	},
}

func init() {
	configAddCmd.Flags().StringVar(&flagCtxServer, "server", "", "server base URL")
	configAddCmd.Flags().StringVar(&flagCtxAPIKey, "api-key", "", "API key")
	configAddCmd.Flags().StringVar(&flagCtxAPISecret, "api-secret", "", "API secret")
	configAddCmd.Flags().StringVar(&flagCtxRoom, "room", "", "default room")
	configAddCmd.Flags().StringVar(&flagCtxIdentity, "identity", "", "default participant identity")

	configCmd.AddCommand(configListCmd, configAddCmd, configUseCmd, configCurrentCmd, configDeleteCmd)
	rootCmd.AddCommand(configCmd)
}
