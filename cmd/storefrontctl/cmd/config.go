package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/pilab-dev/cartbuilder/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:     "config",
		Short:   "Manage storefrontctl configuration and contexts",
		Aliases: []string{"cfg"},
	}
	configCmd.AddCommand(
		newConfigViewCmd(a),
		newGetContextsCmd(a),
		newCurrentContextCmd(a),
		newUseContextCmd(a),
		newSetContextCmd(a),
		newDeleteContextCmd(a),
	)
	return configCmd
}

func newConfigViewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Print the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := yaml.Marshal(&a.cfg.CLIConfig)
			if err != nil {
				return fmt.Errorf("failed to marshal config to YAML: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", a.cfg.Path(), out)
			return nil
		},
	}
}

func newGetContextsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "get-contexts",
		Short:   "List the contexts",
		Aliases: []string{"get"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			contexts := make([]*config.Context, 0, len(a.cfg.Contexts))
			for _, name := range a.cfg.ContextNames() {
				contexts = append(contexts, a.cfg.Contexts[name])
			}
			return a.render(cmd, contexts, func(w io.Writer) {
				row(w, "CURRENT", "NAME", "API ENDPOINT", "STORAGE", "LOCATION")
				for _, c := range contexts {
					current := ""
					if c.Name == a.cfg.CurrentContext {
						current = "*"
					}
					location := c.Storage.Path
					if location == "" {
						location = c.Storage.Address
					}
					row(w, current, c.Name, c.APIEndpoint, c.Storage.Backend, location)
				}
			})
		},
	}
}

func newCurrentContextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "current-context",
		Short: "Print the current context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.CurrentContext == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No current context is set.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.cfg.CurrentContext)
			return nil
		},
	}
}

func newUseContextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "use-context <name>",
		Short:   "Set the current context",
		Aliases: []string{"use"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.UseContext(args[0]); err != nil {
				return err
			}
			if err := a.cfg.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q.\n", args[0])
			return nil
		},
	}
}

func newSetContextCmd(a *app) *cobra.Command {
	var (
		endpoint string
		storage  config.Storage
		backend  string
	)
	cmd := &cobra.Command{
		Use:     "set-context <name>",
		Short:   "Create or modify a context",
		Aliases: []string{"set"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			c := &config.Context{
				Name:        name,
				APIEndpoint: config.DefaultAPIEndpoint,
				Storage:     config.DefaultContext(filepath.Dir(a.cfg.Path())).Storage,
			}
			existing, exists := a.cfg.Contexts[name]
			if exists {
				copied := *existing
				c = &copied
			}

			f := cmd.Flags()
			if f.Changed("api-endpoint") {
				c.APIEndpoint = endpoint
			}
			if f.Changed("storage") {
				c.Storage = config.Storage{Backend: config.Backend(backend)}
			}
			if f.Changed("storage-path") {
				c.Storage.Path = storage.Path
			}
			if f.Changed("storage-address") {
				c.Storage.Address = storage.Address
			}
			if f.Changed("storage-database") {
				c.Storage.Database = storage.Database
			}

			if err := a.cfg.SetContext(c); err != nil {
				return err
			}
			if err := a.cfg.Save(); err != nil {
				return err
			}
			verb := "created"
			if exists {
				verb = "modified"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Context %q %s.\n", name, verb)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&endpoint, "api-endpoint", "", "base URL of the API, e.g. https://shop.example.com/api")
	f.StringVar(&backend, "storage", "", "session storage backend: bbolt, memory, redis or mongo")
	f.StringVar(&storage.Path, "storage-path", "", "bbolt database file")
	f.StringVar(&storage.Address, "storage-address", "", "Redis address or MongoDB URI")
	f.StringVar(&storage.Database, "storage-database", "", "MongoDB database name")
	return cmd
}

func newDeleteContextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-context <name>",
		Short: "Remove a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.DeleteContext(args[0]); err != nil {
				return err
			}
			if err := a.cfg.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Context %q deleted.\n", args[0])
			return nil
		},
	}
}
