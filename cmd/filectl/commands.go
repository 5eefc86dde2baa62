package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-file/pkg/simplefile"
	"github.com/tendant/simple-file/pkg/simplefile/config"
)

// NewRootCommand creates the filectl command tree
func NewRootCommand() *cobra.Command {
	var configFile, driver string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "filectl",
		Short: "Manage stored files",
		Long: `filectl ingests local files and URLs into the configured storage driver
and looks them up by uid.

Configuration is read from the environment (and a .env file when present)
or from a YAML file given with --config. Run "filectl env" for the variables.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			if verbose {
				slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug})))
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (optional)")
	rootCmd.PersistentFlags().StringVarP(&driver, "driver", "d", "", "override the configured driver")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewCreateCommand())
	rootCmd.AddCommand(NewGetCommand())
	rootCmd.AddCommand(NewCatCommand())
	rootCmd.AddCommand(NewDeleteCommand())
	rootCmd.AddCommand(NewSweepCommand())
	rootCmd.AddCommand(NewDriversCommand())
	rootCmd.AddCommand(NewEnvCommand())

	return rootCmd
}

// withService builds the service from flags and closes the driver afterwards
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc simplefile.Service) error) error {
	configFile, _ := cmd.Flags().GetString("config")
	driver, _ := cmd.Flags().GetString("driver")

	var opts []config.Option
	if driver != "" {
		opts = append(opts, config.WithDriver(driver))
	}
	cfg, err := config.Load(configFile, opts...)
	if err != nil {
		return err
	}

	svc, err := cfg.BuildService(simplefile.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	err = fn(cmd.Context(), svc)

	if d, derr := svc.Driver(); derr == nil {
		if c, ok := d.(io.Closer); ok {
			err = errors.Join(err, c.Close())
		}
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// NewCreateCommand creates the create command
func NewCreateCommand() *cobra.Command {
	var name, description, path string
	var options map[string]string

	cmd := &cobra.Command{
		Use:   "create <file-or-url>",
		Short: "Store a local file or the body of an http(s) URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc simplefile.Service) error {
				req := simplefile.CreateRequest{
					Source:       args[0],
					Name:         name,
					Description:  description,
					ProposedPath: path,
				}
				if len(options) > 0 {
					req.Options = make(map[string]any, len(options))
					for k, v := range options {
						req.Options[k] = v
					}
				}

				record, err := svc.Create(ctx, req)
				if err != nil {
					return fmt.Errorf("create failed: %w", err)
				}
				view, err := record.AsJSONable()
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), view)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "file name (defaults to the source's base name)")
	cmd.Flags().StringVar(&description, "description", "", "file description")
	cmd.Flags().StringVar(&path, "path", "", "proposed storage path")
	cmd.Flags().StringToStringVarP(&options, "option", "o", nil, "driver option key=value")

	return cmd
}

// NewGetCommand creates the get command
func NewGetCommand() *cobra.Command {
	var suppress bool

	cmd := &cobra.Command{
		Use:   "get <uid>...",
		Short: "Print records as JSON",
		Long:  `Print one record, or a list when several uids are given. With --suppress, unknown or malformed uids are skipped.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc simplefile.Service) error {
				if len(args) == 1 {
					record, err := svc.Get(ctx, args[0], suppress)
					if err != nil {
						return err
					}
					if record == nil {
						return printJSON(cmd.OutOrStdout(), nil)
					}
					view, err := record.AsJSONable()
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), view)
				}

				records, err := svc.GetMultiple(ctx, args, suppress)
				if err != nil {
					return err
				}
				views := make([]map[string]any, 0, len(records))
				for _, record := range records {
					view, err := record.AsJSONable()
					if err != nil {
						return err
					}
					views = append(views, view)
				}
				return printJSON(cmd.OutOrStdout(), views)
			})
		},
	}

	cmd.Flags().BoolVar(&suppress, "suppress", false, "skip uids that are malformed or not found")

	return cmd
}

// NewCatCommand creates the cat command
func NewCatCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "cat <uid>",
		Short: "Write the stored bytes to stdout or a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc simplefile.Service) error {
				record, err := svc.Get(ctx, args[0], false)
				if err != nil {
					return err
				}
				rc, err := record.Base().Open(ctx)
				if err != nil {
					return err
				}
				defer rc.Close()

				w := cmd.OutOrStdout()
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				_, err = io.Copy(w, rc)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "O", "", "write to this file instead of stdout")

	return cmd
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <uid>",
		Short: "Delete a record and its bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc simplefile.Service) error {
				record, err := svc.Get(ctx, args[0], false)
				if err != nil {
					return err
				}
				if err := record.Base().Delete(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

// NewSweepCommand creates the sweep command
func NewSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove the bytes of expired records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc simplefile.Service) error {
				d, err := svc.Driver()
				if err != nil {
					return err
				}
				sw, ok := d.(interface {
					Sweep(ctx context.Context) (int, error)
				})
				if !ok {
					return errors.New("the configured driver does not expire records")
				}
				n, err := sw.Sweep(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired files\n", n)
				return nil
			})
		},
	}
}

// NewDriversCommand creates the drivers command
func NewDriversCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drivers",
		Short: "List the available storage drivers",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			var cfg config.Config
			for _, name := range cfg.Registry().Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

// NewEnvCommand creates the env command
func NewEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Describe the configuration environment variables",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), config.Usage())
		},
	}
}
