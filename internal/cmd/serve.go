package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/memorialmap/internal/cache"
	"github.com/MeKo-Tech/memorialmap/internal/cluster"
	"github.com/MeKo-Tech/memorialmap/internal/engine"
	"github.com/MeKo-Tech/memorialmap/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve map sessions over a JSON HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().StringSlice("categories", nil, "Only serve these facility categories")
	serveCmd.Flags().String("cors-origin", "*", "Access-Control-Allow-Origin header")
	serveCmd.Flags().Int("max-sessions", 256, "Max open sessions (negative: unlimited)")
	serveCmd.Flags().Duration("session-ttl", 30*time.Minute, "Close sessions idle for longer than this")

	serveCmd.Flags().Bool("cluster", true, "Cluster markers below the clustering zoom")
	serveCmd.Flags().Int("cluster-max-zoom", cluster.DefaultMaxZoom, "Highest zoom that still clusters")
	serveCmd.Flags().Int("initial-cap", 30, "Facilities drawn by the first render")
	serveCmd.Flags().Duration("widen-delay", 500*time.Millisecond, "Delay before the full list is drawn")

	serveCmd.Flags().String("redis-addr", "", "Redis address for the region search cache (empty: in-memory)")
	serveCmd.Flags().String("redis-password", "", "Redis password")
	serveCmd.Flags().Int("redis-db", 0, "Redis database")
	serveCmd.Flags().Duration("search-ttl", cache.DefaultRegionTTL, "Region search cache lifetime")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"serve.addr", "addr"},
		{"serve.categories", "categories"},
		{"serve.cors_origin", "cors-origin"},
		{"serve.max_sessions", "max-sessions"},
		{"serve.session_ttl", "session-ttl"},
		{"serve.cluster", "cluster"},
		{"serve.cluster_max_zoom", "cluster-max-zoom"},
		{"serve.initial_cap", "initial-cap"},
		{"serve.widen_delay", "widen-delay"},
		{"serve.redis_addr", "redis-addr"},
		{"serve.redis_password", "redis-password"},
		{"serve.redis_db", "redis-db"},
		{"serve.search_ttl", "search-ttl"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, serveCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

// engineConfig builds the per-session engine configuration from flags.
func engineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Logger = logger
	if v := viper.GetInt("serve.initial_cap"); v > 0 {
		cfg.InitialRenderCap = v
	}
	if v := viper.GetDuration("serve.widen_delay"); v > 0 {
		cfg.WidenDelay = v
	}
	if viper.GetBool("serve.cluster") {
		cfg.Clustering.MaxZoom = viper.GetInt("serve.cluster_max_zoom")
	} else {
		cfg.Clustering = cluster.Config{}
	}
	return cfg
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := viper.GetString("serve.addr")
	storePath := viper.GetString("store")

	facilities, meta, err := loadFacilities(ctx, storePath, viper.GetStringSlice("serve.categories"))
	if err != nil {
		return err
	}
	logger.Info("Loaded facilities", "store", storePath, "name", meta.Name, "facilities", len(facilities))

	regions, ob, err := loadRegions(ctx)
	if err != nil {
		return err
	}

	cfg := server.Config{
		Facilities:  facilities,
		Regions:     regions,
		SearchTTL:   viper.GetDuration("serve.search_ttl"),
		Engine:      engineConfig(),
		MaxSessions: viper.GetInt("serve.max_sessions"),
		SessionTTL:  viper.GetDuration("serve.session_ttl"),
		CORSOrigin:  viper.GetString("serve.cors_origin"),
	}
	if ob != nil {
		cfg.Boundaries = ob
	}

	if rc := cache.OpenRedis(viper.GetString("serve.redis_addr"), viper.GetString("serve.redis_password"), viper.GetInt("serve.redis_db")); rc != nil {
		rcache := cache.NewRedis(rc, "")
		defer rcache.Close()
		if err := rcache.Ping(ctx); err != nil {
			logger.Warn("Redis unavailable, using in-memory search cache", "error", err)
		} else {
			logger.Info("Using Redis search cache", "addr", viper.GetString("serve.redis_addr"))
			cfg.Cache = rcache
		}
	}

	srv := server.New(cfg, logger)
	defer srv.Close()

	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("memorialmap server listening", "addr", addr, "facilities", len(facilities))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Received interrupt signal, shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
