package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	ftp "github.com/gonzalop/miniftp"
)

type clientOptions struct {
	addr     string
	user     string
	password string
	timeout  time.Duration
	verbose  bool
}

func newRootCmd() *cobra.Command {
	opts := &clientOptions{}

	root := &cobra.Command{
		Use:           "miniftp",
		Short:         "Active-mode FTP client for miniftpd",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.addr, "addr", "a", "127.0.0.1:21", "server address (host:port)")
	flags.StringVarP(&opts.user, "user", "u", "root", "user name")
	flags.StringVarP(&opts.password, "password", "p", "root", "password")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "timeout for each reply and data connection")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log every command and reply")

	root.AddCommand(newPutCmd(opts), newGetCmd(opts))
	return root
}

func newPutCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <local-file> [remote-path]",
		Short: "Upload a file with STOR",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			local := args[0]
			remote := filepath.Base(local)
			if len(args) == 2 {
				remote = args[1]
			}

			info, err := os.Stat(local)
			if err != nil {
				return err
			}

			c, err := opts.connect(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer c.Close()

			start := time.Now()
			if err := c.StoreFrom(remote, local); err != nil {
				return err
			}
			report(cmd.OutOrStdout(), "sent", remote, info.Size(), time.Since(start))
			return nil
		},
	}
}

func newGetCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <remote-path> [local-file]",
		Short: "Download a file with RETR",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			remote := args[0]
			local := path.Base(remote)
			if len(args) == 2 {
				local = args[1]
			}

			c, err := opts.connect(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer c.Close()

			start := time.Now()
			if err := c.RetrieveTo(remote, local); err != nil {
				return err
			}

			info, err := os.Stat(local)
			if err != nil {
				return err
			}
			report(cmd.OutOrStdout(), "received", local, info.Size(), time.Since(start))
			return nil
		},
	}
}

// connect dials and logs in. Verbose mode sends the client's debug log to w.
func (o *clientOptions) connect(w io.Writer) (*ftp.Client, error) {
	options := []ftp.Option{ftp.WithTimeout(o.timeout)}
	if o.verbose {
		options = append(options, ftp.WithLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))))
	}

	c, err := ftp.Dial(o.addr, options...)
	if err != nil {
		return nil, err
	}
	if err := c.Login(o.user, o.password); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func report(w io.Writer, verb, name string, size int64, elapsed time.Duration) {
	rate := ""
	if secs := elapsed.Seconds(); secs > 0 {
		rate = fmt.Sprintf(" (%s/s)", humanize.Bytes(uint64(float64(size)/secs)))
	}
	fmt.Fprintf(w, "%s %s: %s in %s%s\n", verb, name, humanize.Bytes(uint64(size)), elapsed.Round(time.Millisecond), rate)
}
