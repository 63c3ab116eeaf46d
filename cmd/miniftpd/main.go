// Command miniftpd runs the active-mode FTP server.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
