package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"niceguy/internal/cmdlog"
	"niceguy/internal/config"
	"niceguy/internal/logging"
	"niceguy/internal/theme"
)

var (
	cfgPath   string
	logLevel  string
	logFormat string
)

func main() {
	os.Exit(execute(newRootCmd()))
}

// execute runs root and reports any error on its stderr. Usage errors never
// reach cmdlog, so this is the only place they are printed.
func execute(root *cobra.Command) int {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "niceguy:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "niceguy",
		Short:         "Search X for a phrase and reply to every author with a canned message",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			logging.Setup(cmd.ErrOrStderr(), logLevel, logFormat)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			theme.PrintBanner()
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "./niceguy.yaml", "config path")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "json or console (overrides config)")
	root.AddCommand(newInitCmd(), newRunCmd("run", false), newRunCmd("preview", true))
	return root
}

func newInitCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file at ./niceguy.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("init", func() error {
				if err := config.Save(path, config.Default()); err != nil {
					return err
				}
				abs, _ := filepath.Abs(path)
				fmt.Fprintln(cmd.OutOrStdout(), "Config written to:", abs)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&path, "path", "./niceguy.yaml", "path to write config")
	return cmd
}
