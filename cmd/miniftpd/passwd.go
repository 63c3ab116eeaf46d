package main

import (
	"bufio"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gonzalop/miniftp/server"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd [password]",
	Short: "Print a bcrypt hash for a users[].password entry",
	Long: `Print a bcrypt hash suitable for the password field of a configured user.
Without an argument the password is read from the first line of stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var password string
		if len(args) == 1 {
			password = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.New("no password given")
			}
			password = strings.TrimRight(line, "\r\n")
		}
		if password == "" {
			return errors.New("password must not be empty")
		}

		hash, err := server.HashPassword(password)
		if err != nil {
			return err
		}
		cmd.Println(hash)
		return nil
	},
}
