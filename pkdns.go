package main

import (
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/semihalev/pkdns/api"
	"github.com/semihalev/pkdns/config"
	"github.com/semihalev/pkdns/middleware"
	"github.com/semihalev/pkdns/server"
	"github.com/semihalev/zlog/v2"
	"github.com/spf13/cobra"

	// chain order, fixed by middleware.Setup:
	// recovery, accesslist, metrics, ratelimit, guard, resolver
	_ "github.com/semihalev/pkdns/middleware/recovery"

	_ "github.com/semihalev/pkdns/middleware/accesslist"

	_ "github.com/semihalev/pkdns/middleware/metrics"

	_ "github.com/semihalev/pkdns/middleware/ratelimit"

	_ "github.com/semihalev/pkdns/middleware/guard"

	_ "github.com/semihalev/pkdns/middleware/resolver"
)

const version = "1.0.0"

var (
	flagConfig    string
	flagForward   string
	flagSocket    string
	flagVerbose   bool
	flagCacheTTL  uint32
	flagThreads   int
	flagDirectory string
	flagVersion   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "pkdns",
		Short:         "A DNS server resolving pkarr self-sovereign names and ICANN names alike",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	rootCmd.Flags().StringVar(&flagConfig, "config", "pkdns.toml", "location of the config file, if not found it will be generated")
	rootCmd.Flags().StringVarP(&flagForward, "forward", "f", "", "upstream resolver for ICANN names")
	rootCmd.Flags().StringVarP(&flagSocket, "socket", "s", "", "udp bind address")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "increase log detail")
	rootCmd.Flags().Uint32Var(&flagCacheTTL, "cache-ttl", 0, "pin cached TTLs to this many seconds")
	rootCmd.Flags().IntVar(&flagThreads, "threads", 0, "worker pool size")
	rootCmd.Flags().StringVarP(&flagDirectory, "directory", "d", "", "local pknames directory")
	rootCmd.Flags().BoolVarP(&flagVersion, "version", "V", false, "show version information")

	if err := rootCmd.Execute(); err != nil {
		zlog.Error("Startup failed", "error", err.Error())
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if flagVersion {
		cmd.Println("pkdns v" + version)
		return nil
	}

	runtime.GOMAXPROCS(runtime.NumCPU())

	logger := zlog.NewStructured()
	logger.SetWriter(zlog.StdoutTerminal())
	logger.SetLevel(zlog.LevelInfo)
	zlog.SetDefault(logger)

	cfg, err := config.Load(flagConfig, version)
	if err != nil {
		return err
	}

	applyFlags(cmd, cfg)

	if cfg.Verbose {
		logger.SetLevel(zlog.LevelDebug)
	}

	zlog.Info("Starting pkdns...", "version", version)

	middleware.Setup(cfg)

	srv := server.New(cfg)
	if err := srv.Run(); err != nil {
		return err
	}

	api.New(cfg).Run()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c

	zlog.Info("Stopping pkdns...")

	return nil
}

// applyFlags lets CLI values override config file values.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("forward") {
		cfg.Forward = flagForward
	}
	if cmd.Flags().Changed("socket") {
		cfg.Socket = flagSocket
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = flagVerbose
	}
	if cmd.Flags().Changed("threads") && flagThreads > 0 {
		cfg.Threads = flagThreads
	}
	if cmd.Flags().Changed("directory") {
		cfg.Directory = flagDirectory
	}

	// --cache-ttl pins both bounds of the TTL window
	if cmd.Flags().Changed("cache-ttl") {
		cfg.MinTTL = flagCacheTTL
		cfg.MaxTTL = flagCacheTTL
	}
}
