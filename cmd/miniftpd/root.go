package main

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "miniftpd",
	Short: "Minimal active-mode FTP server",
	Long: `miniftpd serves STOR and RETR over active-mode FTP data connections.

Configuration is read from --config, or from $XDG_CONFIG_HOME/miniftp/config.yaml
when present. Every setting can be overridden with MINIFTP_<SECTION>_<KEY>
environment variables, e.g. MINIFTP_SERVER_DATA_PORT=2020.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/miniftp/config.yaml)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(passwdCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("miniftpd %s (commit: %s)\n", Version, Commit)
	},
}
