package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/checklist/internal/checklist"
	"github.com/idilsaglam/checklist/internal/config"
	"github.com/idilsaglam/checklist/internal/model"
	"github.com/idilsaglam/checklist/internal/tui"
	"github.com/idilsaglam/checklist/internal/ui"
)

func newRootCmd(env *environment) *cobra.Command {
	root := &cobra.Command{
		Use:   "checklist",
		Short: "A persisted check list",
		Long: `checklist keeps an ordered list of items with a completion flag.

The list is saved after every change (JSON file by default, or SQLite/MySQL)
and can be edited from the command line, the interactive list or over HTTP.`,
		Example: `  checklist add Buy milk --type dairy
  checklist complete Buy milk
  checklist ls
  checklist serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return usagef("missing command")
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&env.configPath, "config", config.DefaultPath, "config file")
	pf.StringVar(&env.dataPath, "data", "", "storage path (overrides storage.path)")
	pf.BoolVarP(&env.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		addCmd(env),
		completeCmd(env, true),
		completeCmd(env, false),
		allCmd(env, true),
		allCmd(env, false),
		clearCmd(env),
		listItemsCmd(env),
		updateCmd(env),
		reorderCmd(env),
		lsCmd(env),
		serveCmd(env),
		initCmd(env),
	)
	return root
}

func minArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return usagef("usage: checklist %s", usage)
		}
		return nil
	}
}

func addCmd(env *environment) *cobra.Command {
	var itemType string
	cmd := &cobra.Command{
		Use:   "add <name...>",
		Short: "Add an item (the name can be several words)",
		Args:  minArgs(1, "add <name...>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(strings.Join(args, " "))
			if name == "" {
				return usagef("add: empty name")
			}
			a, err := env.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			var typ *string
			if cmd.Flags().Changed("type") {
				typ = &itemType
			}
			it := a.Services.Add(cmd.Context(), name, typ)
			ui.OK(env.streams.Out, "added "+it.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&itemType, "type", "", "item type")
	return cmd
}

func completeCmd(env *environment, done bool) *cobra.Command {
	use, short, verb := "complete", "Mark the first item with this name as done", "completed"
	if !done {
		use, short, verb = "incomplete", "Mark the first item with this name as pending", "restored"
	}
	return &cobra.Command{
		Use:   use + " <name...>",
		Short: short,
		Args:  minArgs(1, use+" <name...>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			name := strings.Join(args, " ")
			complete := a.Services.Complete
			if !done {
				complete = a.Services.Incomplete
			}
			if _, ok := complete(cmd.Context(), name); !ok {
				return fmt.Errorf("no item named %q", name)
			}
			ui.OK(env.streams.Out, verb+" "+name)
			return nil
		},
	}
}

func allCmd(env *environment, done bool) *cobra.Command {
	use, short, verb := "complete-all", "Mark every item as done", "completed"
	if !done {
		use, short, verb = "incomplete-all", "Mark every item as pending", "restored"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			all := a.Services.CompleteAll
			if !done {
				all = a.Services.IncompleteAll
			}
			items := all(cmd.Context())
			ui.OK(env.streams.Out, fmt.Sprintf("%s %d items", verb, len(items)))
			return nil
		},
	}
}

func clearCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Remove every completed item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			removed := a.Services.ClearCompleted(cmd.Context())
			ui.OK(env.streams.Out, fmt.Sprintf("cleared %d completed items", removed))
			return nil
		},
	}
}

func listItemsCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "list-items",
		Short: "Print the list as JSON and announce it to subscribers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			return printJSON(env, a.Services.List(cmd.Context()))
		},
	}
}

func updateCmd(env *environment) *cobra.Command {
	var (
		name      string
		itemType  string
		clearType bool
		complete  bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of the item with this id",
		Args:  minArgs(1, "update <id> [--name] [--type|--clear-type] [--complete]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usagef("update takes exactly one id")
			}
			flags := cmd.Flags()
			fields := model.Fields{}
			if flags.Changed("name") {
				fields[model.FieldName] = name
			}
			switch {
			case clearType && flags.Changed("type"):
				return usagef("--type and --clear-type are exclusive")
			case clearType:
				fields[model.FieldItemType] = nil
			case flags.Changed("type"):
				fields[model.FieldItemType] = itemType
			}
			if flags.Changed("complete") {
				fields[model.FieldComplete] = complete
			}
			if len(fields) == 0 {
				return usagef("update: nothing to change")
			}

			a, err := env.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			it, err := a.Store.Update(cmd.Context(), args[0], fields)
			if checklist.IsNotFound(err) {
				return fmt.Errorf("item not found: %s", args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(env, it)
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "new name")
	f.StringVar(&itemType, "type", "", "new item type")
	f.BoolVar(&clearType, "clear-type", false, "remove the item type")
	f.BoolVar(&complete, "complete", false, "completion state")
	return cmd
}

func reorderCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <id...>",
		Short: "Put items in the given order; unlisted completed items go last",
		Args:  minArgs(1, "reorder <id...>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			if err := a.Store.Reorder(cmd.Context(), args); err != nil {
				if checklist.IsNotFound(err) {
					return fmt.Errorf("one or more item id(s) not found")
				}
				return err
			}
			ui.OK(env.streams.Out, "reordered")
			return nil
		},
	}
}

func lsCmd(env *environment) *cobra.Command {
	var plain, group bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "Show the list (interactive on a terminal)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			interactive := !plain && ui.IsTerminal()
			a, err := env.open(cmd.Context(), interactive)
			if err != nil {
				return err
			}
			if interactive {
				return tui.Run(cmd.Context(), a.Store, a.Logger.Named("tui"))
			}
			lines := ui.ListLines(a.Store.Items(), group)
			lines = append(lines, "", ui.C(ui.Current().Muted, "Tip: add with `checklist add Buy milk`"))
			ui.Panel(env.streams.Out, lines)
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print instead of starting the interactive list")
	cmd.Flags().BoolVar(&group, "group", false, "group output by pending/done")
	return cmd
}

func serveCmd(env *environment) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and websocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := env.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			a, err := env.open(ctx, false)
			if err != nil {
				return err
			}
			return a.Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

func initCmd(env *environment) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the --config path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(env.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", env.configPath)
			}
			cfg, err := env.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Save(env.configPath); err != nil {
				return err
			}
			ui.OK(env.streams.Out, "wrote "+env.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func printJSON(env *environment, v any) error {
	enc := json.NewEncoder(env.streams.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
