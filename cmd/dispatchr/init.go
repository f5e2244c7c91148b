package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mark3labs/dispatchr/internal/config"
)

var initFlags struct {
	global bool
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with current settings",
	Long: `Write the effective configuration (defaults merged with any
existing config and environment) to dispatchr.yml in the current
directory, or to the global XDG location with --global.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initFlags.global, "global", "g", false, "Write the global config instead of the project one")
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if initFlags.global {
		if err := config.WriteGlobal(cfg); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", config.GlobalPath())
		return nil
	}
	if err := config.WriteProject(cfg); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", config.ProjectPath())
	return nil
}
