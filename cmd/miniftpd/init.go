package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gonzalop/miniftp/internal/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default settings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if err := writeDefaultConfig(path, forceInit); err != nil {
			return err
		}
		cmd.Printf("Configuration file created at: %s\n", path)
		cmd.Println("Replace the default root/root account before exposing the server.")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing config file")
}

func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		}
	}
	return config.SaveConfig(config.GetDefaultConfig(), path)
}
