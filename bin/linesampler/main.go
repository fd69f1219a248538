package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/carterli0407-cell/line-sampler/pkg/client"
	"github.com/carterli0407-cell/line-sampler/pkg/config"
	"github.com/carterli0407-cell/line-sampler/pkg/protocol"
)

var (
	socketPath string
	timeout    time.Duration
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "linesampler",
	Short: "Client for the line-sampler server",
	Long: `linesampler talks to a running line-sampler server over its Unix socket.

Lines loaded into the server form a shared pool. Each sample removes the
lines it returns, so no line is handed out twice.`,
	SilenceUsage: true,
}

func main() {
	err := rootCmd.Execute()
	glog.Flush()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	defaultSocket := os.Getenv(config.EnvSocket)
	if defaultSocket == "" {
		defaultSocket = protocol.DefaultSocketPath
	}

	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", defaultSocket, "Server socket path")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Per-command timeout (0 disables)")
	// glog's -v and -logtostderr
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	rootCmd.AddCommand(loadCmd, sampleCmd, statsCmd, shellCmd)
}

// connect dials the server and returns a context bounded by --timeout.
func connect(cmd *cobra.Command) (context.Context, context.CancelFunc, *client.Client, error) {
	ctx, cancel := withTimeout(cmd.Context())

	c, err := client.Dial(ctx, socketPath)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	glog.V(1).Infof("connected to %s", socketPath)

	return ctx, cancel, c, nil
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}
