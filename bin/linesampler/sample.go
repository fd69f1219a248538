package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/carterli0407-cell/line-sampler/pkg/client"
)

var sampleNum int

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Remove and print random lines from the pool",
	Long: `Sample removes up to --num lines from the pool, chosen uniformly at
random, and prints them one per line. Fewer are printed when the pool runs
short.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer cancel()
		defer c.Close()

		return runSample(ctx, c, cmd.OutOrStdout(), sampleNum)
	},
}

func init() {
	sampleCmd.Flags().IntVarP(&sampleNum, "num", "n", 1, "Number of lines to sample")
}

func runSample(ctx context.Context, c *client.Client, out io.Writer, k int) error {
	lines, err := c.Sample(ctx, k)
	if err != nil {
		return err
	}

	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
	return nil
}
