package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loyalbridge/admin/internal/config"
	"github.com/loyalbridge/admin/internal/server"
	"github.com/loyalbridge/admin/internal/service"
	"github.com/loyalbridge/admin/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin API server",
		Long:  "Start the HTTP server that exposes the /api/auth and /api/admins endpoints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(ctx context.Context, dev bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if dev {
		cfg.Logging.Level = "debug"
	}
	logger, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}

	// 1. Credential store
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("init credential store: %w", err)
	}
	defer store.Close()
	logger.Info("credential store initialized", "driver", store.Driver())

	hasher := service.NewBcryptHasher(cfg.Auth.BcryptCost)
	if cfg.Store.SeedDefaults {
		n, err := service.SeedAdmins(ctx, store, hasher, service.DefaultSeedAdmins(), logger)
		if err != nil {
			return fmt.Errorf("seed admins: %w", err)
		}
		logger.Warn("seeded default admin accounts; do not use in production", "created", n)
	}
	hasAdmin, err := store.HasAnyAdmin(ctx)
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: loyalbridge admin create")
	}

	// 2. Challenge and revocation stores
	challengeOpts := service.ChallengeOptions{
		TTL:         cfg.Auth.TwoFactor.OTPTTL,
		MaxAttempts: cfg.Auth.TwoFactor.MaxAttempts,
	}
	var (
		challenges  service.ChallengeStore
		revocations service.RevocationStore
		rdb         *redis.Client
	)
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		challenges = service.NewRedisChallengeStore(rdb, cfg.Redis.Prefix, challengeOpts)
		revocations = service.NewRedisRevocationStore(rdb, cfg.Redis.Prefix, cfg.Auth.BlacklistRetention, nil)
		logger.Info("using redis for otp challenges and revoked tokens", "addr", cfg.Redis.Addr)
	} else {
		challenges = service.NewMemoryChallengeStore(challengeOpts)
		revocations = service.NewMemoryRevocationStore(nil)
	}

	// 3. Auth service
	tokens, err := service.NewTokenService(service.TokenConfig{
		Secret:     cfg.Auth.JWTSecret,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})
	if err != nil {
		return fmt.Errorf("init token service: %w", err)
	}
	policy, err := service.NewTwoFactorPolicy(cfg.Auth.TwoFactor.Mode, cfg.Auth.TwoFactor.Roles)
	if err != nil {
		return err
	}
	if cfg.Auth.TwoFactor.ExposeCode {
		logger.Warn("auth.two_factor.expose_code is enabled; OTP codes are returned in login responses")
	}
	metrics := telemetry.New(nil)
	authSvc := service.NewAuthService(store, tokens, service.AuthOptions{
		Hasher:      hasher,
		Challenges:  challenges,
		Revocations: revocations,
		TwoFactor:   policy,
		Notifier:    service.LogNotifier{Logger: logger},
		Metrics:     metrics,
		Logger:      logger,
		ExposeOTP:   cfg.Auth.TwoFactor.ExposeCode,
	})

	// 4. Expiry janitor
	janitor, err := service.NewJanitor(cfg.Auth.PruneSchedule, challenges, revocations, cfg.Auth.BlacklistRetention, metrics, logger)
	if err != nil {
		return err
	}
	janitor.Start()

	// 5. HTTP server
	srvCfg := server.Config{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		ShutdownTimeout:    cfg.Server.ShutdownTimeout,
		CORSOrigins:        cfg.Server.CORSOrigins,
		LoginRatePerMinute: cfg.Auth.LoginRatePerMinute,
		EmailDomain:        cfg.Auth.EmailDomain,
	}
	srv := server.New(srvCfg, store, authSvc, metrics, logger)
	if rdb != nil {
		srv.AddReadinessCheck("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	srv.OnShutdown(janitor.Stop)

	printBanner(cfg, store)
	return srv.ListenAndServe(ctx)
}

func printBanner(cfg *config.AppConfig, store *config.Store) {
	fmt.Printf("→ LoyalBridge admin %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ API docs:   http://%s:%d/api-docs\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Store:      %s\n", store.Driver())
	fmt.Printf("→ 2FA:        %s\n", twoFactorSummary(cfg.Auth.TwoFactor))
	fmt.Println()
}

func twoFactorSummary(tf config.TwoFactorConfig) string {
	switch tf.Mode {
	case "always":
		return "all admins"
	case "roles":
		return fmt.Sprintf("roles %v", tf.Roles)
	default:
		return "off"
	}
}
