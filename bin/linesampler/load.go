package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/carterli0407-cell/line-sampler/pkg/client"
	"github.com/carterli0407-cell/line-sampler/pkg/ingest"
)

var (
	loadFile   string
	loadRemote bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Add the lines of a file to the pool",
	Long: `Load reads a file and appends its lines to the server's pool.

By default the file is read here and its lines are sent over the socket.
With --remote only the path is sent and the server reads the file itself,
which avoids copying large files through the client.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer cancel()
		defer c.Close()

		return runLoad(ctx, c, cmd.OutOrStdout(), loadFile, loadRemote)
	},
}

func init() {
	loadCmd.Flags().StringVarP(&loadFile, "file", "f", "", "File to load (required)")
	loadCmd.Flags().BoolVar(&loadRemote, "remote", false, "Have the server read the file")
	loadCmd.MarkFlagRequired("file")
}

func runLoad(ctx context.Context, c *client.Client, out io.Writer, file string, remote bool) error {
	if remote {
		abs, err := filepath.Abs(file)
		if err != nil {
			return errors.Wrap(err, "resolving path")
		}

		total, loaded, err := c.LoadFile(ctx, abs)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Loaded %d lines (pool: %d)\n", loaded, total)
		return nil
	}

	lines, err := ingest.ReadLines(ctx, file)
	if err != nil {
		return err
	}

	total, err := c.Load(ctx, lines)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %d lines (pool: %d)\n", len(lines), total)
	return nil
}
