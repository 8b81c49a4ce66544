package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/danmuck/expertmesh/internal/network"
	"github.com/danmuck/expertmesh/internal/observability"
	"github.com/danmuck/expertmesh/internal/routing"
	"github.com/danmuck/expertmesh/internal/server"
	"github.com/danmuck/expertmesh/internal/store"
	"github.com/danmuck/expertmesh/internal/store/sqlite"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var configPath string

// storeOpener opens the durable store named by store_path.
var storeOpener = openStore

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "expertd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "expertd",
		Short:         "Capability-routed expert network node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to expertd TOML config (defaults when empty)")
	root.AddCommand(newServeCmd(), newQueryCmd(), newProvidersCmd(), newStatsCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and governance sweeper until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := loadServiceConfig(configPath)
	if err != nil {
		return err
	}
	logger := observability.InitLogger(cfg.NodeID)

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.NodeID, cfg.OTLPEndpoint, logger)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	svc, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := server.New(server.Config{
		NodeID:             cfg.NodeID,
		ListenAddr:         cfg.ListenAddr,
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RateLimitBurst:     cfg.RateLimitBurst,
		AdminToken:         cfg.AdminToken,
		TLSCertFile:        cfg.TLSCertFile,
		TLSKeyFile:         cfg.TLSKeyFile,
	}, svc)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return srv.ListenAndServe(groupCtx) })
	group.Go(func() error { return svc.Run(groupCtx) })
	return group.Wait()
}

func newQueryCmd() *cobra.Command {
	var (
		maxCost   float64
		preferred []string
	)
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Route and execute one query against a local node",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openLocal(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()
			result := svc.SubmitQuery(cmd.Context(), routing.Query{
				Text:                 strings.Join(args, " "),
				MaxCost:              maxCost,
				PreferredProviderIDs: preferred,
			})
			if err := printJSON(cmd, result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("query %s failed: %s", result.QueryID, result.Error)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&maxCost, "max-cost", 5.0, "budget for the query")
	cmd.Flags().StringSliceVar(&preferred, "provider", nil, "restrict routing to these provider ids")
	return cmd
}

func newProvidersCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List registered providers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := openLocal(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()
			if all {
				return printJSON(cmd, svc.ListProviders())
			}
			return printJSON(cmd, svc.ListActiveProviders())
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include inactive and under-review providers")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the network stats snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := openLocal(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()
			return printJSON(cmd, svc.GetNetworkStats())
		},
	}
}

// openLocal builds an in-process node for one-shot commands. State persists
// between invocations only when store_path is configured.
func openLocal(ctx context.Context) (*network.Service, error) {
	cfg, err := loadServiceConfig(configPath)
	if err != nil {
		return nil, err
	}
	observability.InitLogger(cfg.NodeID)
	return openService(ctx, cfg)
}

func openService(ctx context.Context, cfg network.ServiceConfig) (*network.Service, error) {
	var (
		opts []network.Option
		st   store.Store
	)
	if path := strings.TrimSpace(cfg.StorePath); path != "" {
		var err error
		if st, err = storeOpener(path); err != nil {
			return nil, err
		}
		opts = append(opts, network.WithStore(st))
	}
	svc, err := network.NewService(cfg, opts...)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, err
	}
	if err := svc.Bootstrap(ctx); err != nil {
		_ = svc.Close()
		return nil, err
	}
	log.Info().
		Str("node", cfg.NodeID).
		Str("store", cfg.StorePath).
		Int("providers", len(svc.ListProviders())).
		Msg("expertd ready")
	return svc, nil
}

func openStore(path string) (store.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	st, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
