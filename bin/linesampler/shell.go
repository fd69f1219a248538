package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/carterli0407-cell/line-sampler/pkg/client"
	"github.com/carterli0407-cell/line-sampler/pkg/protocol"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session on one connection",
	Long: `Shell keeps one connection open and reads commands from stdin:

  load <file>     read a file here and send its lines
  rload <file>    have the server read the file
  add <line>      append a single line
  sample <n>      remove and print n lines
  stats           print pool counters
  quit            leave

Errors from the server are printed and the session continues unless the
server closed the connection.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.Dial(cmd.Context(), socketPath)
		if err != nil {
			return err
		}
		defer c.Close()

		return runShell(cmd.Context(), c, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func runShell(ctx context.Context, c *client.Client, in io.Reader, out io.Writer) error {
	stdinReader := bufio.NewReader(in)

	for {
		fmt.Fprintf(out, "> ")

		input, err := stdinReader.ReadString('\n')
		if err == io.EOF && input == "" {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil && err != io.EOF {
			return err
		}

		cmd, arg, _ := strings.Cut(strings.TrimRight(input, "\r\n"), " ")
		if cmd == "quit" || cmd == "exit" {
			return nil
		}

		if err := shellCommand(ctx, c, out, cmd, arg); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			if err == client.ErrClosed || protocol.ClosesConnection(err) {
				return err
			}
		}
	}
}

func shellCommand(ctx context.Context, c *client.Client, out io.Writer, cmd, arg string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	switch cmd {
	case "":
		return nil
	case "load":
		return runLoad(ctx, c, out, arg, false)
	case "rload":
		return runLoad(ctx, c, out, arg, true)
	case "add":
		total, err := c.Load(ctx, []string{arg})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "pool: %d\n", total)
		return nil
	case "sample":
		k, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			return errors.Errorf("sample needs a number, got %q", arg)
		}
		return runSample(ctx, c, out, k)
	case "stats":
		return runStats(ctx, c, out)
	}

	return errors.Errorf("unknown command %q", cmd)
}
