package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/golang/glog"

	"github.com/carterli0407-cell/line-sampler/pkg/config"
	"github.com/carterli0407-cell/line-sampler/pkg/ingest"
	"github.com/carterli0407-cell/line-sampler/pkg/pool"
	"github.com/carterli0407-cell/line-sampler/pkg/server"
	"github.com/carterli0407-cell/line-sampler/pkg/stats"
)

var (
	configPath = flag.String("config", "", "YAML config file; flags override it")

	socket        = flag.String("socket", "", "Unix socket to listen on")
	socketMode    = flag.String("socket_mode", "", "octal permissions for the socket file")
	maxFrameBytes = flag.Int("max_frame_bytes", 0, "largest request line accepted")
	idleTimeout   = flag.Duration("idle_timeout", 0, "drop connections idle this long (0 disables)")
	watchDir      = flag.String("watch_dir", "", "spool directory whose files are loaded as they appear")
	statsAddr     = flag.String("stats_addr", "", "TCP address for the stats HTTP endpoint")
)

func init() {
	flag.Set("alsologtostderr", "true")
	gin.SetMode(gin.ReleaseMode)
}

// applyFlags copies flags given on the command line over cfg.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "socket":
			cfg.Socket = *socket
		case "socket_mode":
			cfg.SocketMode = *socketMode
		case "max_frame_bytes":
			cfg.MaxFrameBytes = *maxFrameBytes
		case "idle_timeout":
			cfg.IdleTimeout = *idleTimeout
		case "watch_dir":
			cfg.WatchDir = *watchDir
		case "stats_addr":
			cfg.StatsAddr = *statsAddr
		}
	})
}

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg, err := config.Load(*configPath)
	if err != nil {
		glog.Fatalf("couldn't load config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		glog.Fatalf("invalid config: %v", err)
	}
	mode, _ := cfg.FileMode()

	ln, err := server.Listen(cfg.Socket, mode)
	if err != nil {
		glog.Fatalf("%v", err)
	}

	clk := clock.New()
	p := pool.New(pool.WithClock(clk))
	s := server.New(ln, p, clk, server.Options{
		MaxFrameBytes: cfg.MaxFrameBytes,
		IdleTimeout:   cfg.IdleTimeout,
	})

	var watcher *ingest.Watcher
	if cfg.WatchDir != "" {
		watcher, err = ingest.Watch(cfg.WatchDir, func(path string, lines []string) {
			total := p.Append(lines)
			glog.Infof("spooled %d lines from %s, pool now %d", len(lines), path, total)
		})
		if err != nil {
			glog.Fatalf("couldn't watch %s: %v", cfg.WatchDir, err)
		}
	}

	var statsServer *stats.Server
	if cfg.StatsAddr != "" {
		statsServer = stats.New(cfg.StatsAddr, s)
		statsServer.Start()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		glog.Infof("got %v, shutting down", sig)

		if statsServer != nil {
			statsServer.SetReady(false)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			statsServer.Stop(ctx)
			cancel()
		}
		if watcher != nil {
			watcher.Close()
		}
		s.Close()
	}()

	if statsServer != nil {
		statsServer.SetReady(true)
	}

	glog.Infof("Serving lines on %s.", cfg.Socket)
	if err := s.Serve(); err != nil {
		glog.Fatalf("serve: %v", err)
	}
	glog.Infof("stopped with %d lines unsampled", p.Size())
}
