package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/laundry-storefront/internal/backend"
	"github.com/example/laundry-storefront/internal/config"
	"github.com/example/laundry-storefront/internal/dialog"
	"github.com/example/laundry-storefront/internal/scheduler"
	"github.com/example/laundry-storefront/internal/session"
	"github.com/example/laundry-storefront/internal/submissions"
	"github.com/example/laundry-storefront/internal/web"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the storefront API + submission janitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := openDB(ctx, cfg, log, migrateUp)
			if err != nil {
				return err
			}
			defer d.Close()

			store, closeStore, err := dialogStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			client := backend.New(cfg.BackendURL, cfg.BackendTimeout)
			ledger := submissions.NewRepo(d)
			dialogs := dialog.NewService(store, client, ledger, log, dialog.Config{
				RemoteEstimate: cfg.EstimateMode == config.EstimateRemote,
				SubmitLockTTL:  cfg.SubmitLockTTL,
			})

			// janitor
			j := &scheduler.Janitor{
				Repo:           ledger,
				Interval:       cfg.SweepInterval,
				PendingTimeout: cfg.PendingTimeout,
				Log:            log.Named("janitor"),
			}
			go func() { _ = j.Run(ctx) }()

			// web
			if cfg.Env == "production" {
				gin.SetMode(gin.ReleaseMode)
			}
			ws := &web.Server{
				Dialogs:           dialogs,
				Lists:             client,
				Submissions:       ledger,
				Admins:            session.NewAdminStore(d, cfg.CookieHashKey, cfg.CookieBlockKey),
				DB:                d,
				Names:             session.Names{Token: cfg.SessionTokenCookie, User: cfg.SessionUserCookie},
				Log:               log.Named("web"),
				CORSOrigins:       cfg.CORSOrigins,
				MaxRequestsPerMin: cfg.MaxRequestsPerMin,
			}
			log.Info("starting",
				zap.String("version", Version),
				zap.String("estimate_mode", string(cfg.EstimateMode)),
				zap.Bool("redis", cfg.RedisAddr != ""),
			)
			return web.Start(ctx, cfg.ListenAddr, ws.Routes(), log)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}

// dialogStore picks Redis when REDIS_ADDR is set and an in-process store
// otherwise (single instance only).
func dialogStore(ctx context.Context, cfg config.Config, log *zap.Logger) (dialog.Store, func(), error) {
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set; reservation dialogs are kept in memory")
		return dialog.NewMemoryStore(cfg.DialogTTL), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return dialog.NewRedisStore(rdb, cfg.DialogTTL), func() { _ = rdb.Close() }, nil
}
