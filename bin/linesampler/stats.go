package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/carterli0407-cell/line-sampler/pkg/client"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print pool counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer cancel()
		defer c.Close()

		return runStats(ctx, c, cmd.OutOrStdout())
	},
}

func runStats(ctx context.Context, c *client.Client, out io.Writer) error {
	s, err := c.Stats(ctx)
	if err != nil {
		return err
	}

	buf, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(buf))
	return nil
}
