package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cyberinferno/asyncstream/cacher"
	"github.com/cyberinferno/asyncstream/config"
	"github.com/cyberinferno/asyncstream/logger"
	"github.com/cyberinferno/asyncstream/resolver"
	"github.com/cyberinferno/asyncstream/streamclient"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const serviceName = "streamclient"

type rootOptions struct {
	cfgFile      string
	host         string
	port         int
	payload      string
	endMarker    string
	startupDelay time.Duration
	noWait       bool
	strict       bool
	termination  string
	extractor    string
	logLevel     string
	logDir       string
	cacheBackend string
	redisAddr    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "streamclient",
		Short: "Send one payload to a TCP peer and print the first line of its reply",
		Long: `streamclient connects to a TCP endpoint, sends a payload followed by an end
marker, reads the reply until the peer goes idle and prints it as "Recv: ...".
Each stage runs asynchronously and completes through a one-shot signal.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}

			return runSession(cmd.Context(), cmd, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.cfgFile, "config", "", "config file (default is ~/.asyncstream/config.yaml)")
	f.StringVar(&opts.host, "host", "", "host name or IPv4 address of the peer")
	f.IntVar(&opts.port, "port", 0, "TCP port of the peer")
	f.StringVar(&opts.payload, "payload", "", "text to send")
	f.StringVar(&opts.endMarker, "end-marker", "", "marker appended to the payload")
	f.DurationVar(&opts.startupDelay, "startup-delay", 0, "delay before connecting")
	f.BoolVar(&opts.noWait, "no-wait", false, "exit without waiting for Enter")
	f.BoolVar(&opts.strict, "strict", false, "exit with status 1 when the session fails")
	f.StringVar(&opts.termination, "termination", "", "receive termination: idle or delimiter")
	f.StringVar(&opts.extractor, "extractor", "", "response extractor: first-line, all or delimiter")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&opts.logDir, "log-dir", "", "write daily rotated log files to this directory")
	f.StringVar(&opts.cacheBackend, "cache", "", "resolution cache: none, memory or redis")
	f.StringVar(&opts.redisAddr, "redis-addr", "", "Redis address for the redis cache")

	cmd.AddCommand(newPeerCmd())

	return cmd
}

// load reads the config file and applies the flags that were set.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	path := o.cfgFile
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Host = o.host
	}
	if f.Changed("port") {
		cfg.Port = o.port
	}
	if f.Changed("payload") {
		cfg.Payload = o.payload
	}
	if f.Changed("end-marker") {
		cfg.EndMarker = o.endMarker
	}
	if f.Changed("startup-delay") {
		cfg.StartupDelay = o.startupDelay
	}
	if f.Changed("no-wait") {
		cfg.WaitForInput = !o.noWait
	}
	if f.Changed("strict") {
		cfg.Strict = o.strict
	}
	if f.Changed("termination") {
		cfg.Termination = o.termination
	}
	if f.Changed("extractor") {
		cfg.Extractor = o.extractor
	}
	if f.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if f.Changed("log-dir") {
		cfg.Log.Dir = o.logDir
	}
	if f.Changed("cache") {
		cfg.Cache.Backend = o.cacheBackend
	}
	if f.Changed("redis-addr") {
		cfg.Cache.RedisAddr = o.redisAddr
		if !f.Changed("cache") {
			cfg.Cache.Backend = config.CacheRedis
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// runSession performs one exchange. A failed session is logged and, unless
// Strict is set, does not fail the command.
func runSession(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	log, err := newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	cache, closeCache := newCache(cfg)
	defer closeCache()

	r := resolver.NewDNSResolver(resolver.Config{
		Cache:    cache,
		CacheTTL: cfg.Cache.TTL,
		Logger:   log,
	})

	sc, err := cfg.Session(log, r)
	if err != nil {
		return err
	}

	if cfg.StartupDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.StartupDelay):
		}
	}

	session := streamclient.NewSession(sc)
	resp, runErr := session.Run(ctx, cfg.PayloadBytes())
	if runErr != nil {
		log.Error("session failed", logger.Field{Key: "error", Value: runErr.Error()})
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Recv: %s\n", resp.Text)
	}

	if cfg.WaitForInput {
		fmt.Fprintln(cmd.OutOrStdout(), "Press ENTER to continue...")
		_, _ = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	}

	if runErr != nil && cfg.Strict {
		return runErr
	}

	return nil
}

func newLogger(w io.Writer, cfg *config.Config) (logger.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}

	if cfg.Log.Dir != "" {
		return logger.NewZerologFileLogger(serviceName, cfg.Log.Dir, level)
	}

	return logger.NewWriterConsoleLogger(w, serviceName, level), nil
}

// newCache returns the resolution cache and a func releasing it.
func newCache(cfg *config.Config) (cacher.Cacher[string], func()) {
	switch cfg.Cache.Backend {
	case config.CacheMemory:
		return cacher.NewMemoryCacher[string](cfg.Cache.TTL, 2*cfg.Cache.TTL), func() {}
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		return cacher.NewRedisCacher[string](client, serviceName+":resolve:"), func() { _ = client.Close() }
	default:
		return nil, func() {}
	}
}
