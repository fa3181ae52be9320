package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"cosmetic-picker/internal/bootstrap"
	"cosmetic-picker/internal/console"
	"cosmetic-picker/internal/usecase"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cosmetic-picker",
		Short: "Build cosmetic filters by pointing at page elements",
		Long: `cosmetic-picker opens a browser, lets you click the element you want gone
and stores a CSS selector (optionally narrowed by text) that hides it on
every later visit to the same host.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			bootstrap.NewApp().Run()
			return nil
		},
	}

	root.AddCommand(
		newConsoleCmd(),
		newListCmd(),
		newRemoveCmd(),
		newCheckCmd(),
		newRenderCmd(),
	)

	return root
}

func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Launch the browser and the interactive console (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bootstrap.NewApp().Run()
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(svc *usecase.Service) error {
				list := svc.Filters.ListFilters()
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No filters stored.")
					return nil
				}
				console.PrintFilters(cmd.OutOrStdout(), list)

				return nil
			})
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <host> <index>",
		Short: "Remove the index-th filter (1-based) stored for host",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("index must be a number: %w", err)
			}

			return withService(cmd.Context(), func(svc *usecase.Service) error {
				removed, err := svc.Filters.RemoveFilter(cmd.Context(), args[0], index)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed from %s: %s\n", args[0], removed.Selector)

				return nil
			})
		},
	}
}

func newCheckCmd() *cobra.Command {
	var host string

	cmd := &cobra.Command{
		Use:   "check <file.html>",
		Short: "Count what each stored filter of a host hides in an HTML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			html, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			return withService(cmd.Context(), func(svc *usecase.Service) error {
				reports, err := svc.Filters.CheckFilters(host, string(html))
				if err != nil {
					return err
				}
				console.PrintReports(cmd.OutOrStdout(), reports)

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "host whose filters are checked (required)")
	_ = cmd.MarkFlagRequired("host")

	return cmd
}

func newRenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render <host>",
		Short: "Print the userscript installed for host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(svc *usecase.Service) error {
				src, err := svc.Filters.RenderScript(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), src)

				return nil
			})
		},
	}
}

// withService runs fn against the use cases without launching a browser.
func withService(ctx context.Context, fn func(svc *usecase.Service) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var svc *usecase.Service
	app := bootstrap.NewCommandApp(&svc)
	if err := app.Err(); err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		return err
	}

	runErr := fn(svc)

	if err := app.Stop(ctx); err != nil && runErr == nil {
		return err
	}

	return runErr
}
