package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loyalbridge/admin/internal/config"
)

var (
	cfgFile    string
	appVersion string // set in Execute, shown by serve
)

// envKeys are the config keys that can be set through LOYALBRIDGE_* env
// vars without appearing in a config file, e.g. auth.jwt_secret is read
// from LOYALBRIDGE_AUTH_JWT_SECRET.
var envKeys = []string{
	"server.host",
	"server.port",
	"server.shutdown_timeout",
	"server.cors_origins",
	"auth.jwt_secret",
	"auth.access_ttl",
	"auth.refresh_ttl",
	"auth.email_domain",
	"auth.bcrypt_cost",
	"auth.login_rate_per_minute",
	"auth.blacklist_retention",
	"auth.prune_schedule",
	"auth.two_factor.mode",
	"auth.two_factor.roles",
	"auth.two_factor.otp_ttl",
	"auth.two_factor.max_attempts",
	"auth.two_factor.expose_code",
	"store.driver",
	"store.dsn",
	"store.data_dir",
	"store.seed_defaults",
	"redis.addr",
	"redis.password",
	"redis.db",
	"redis.prefix",
	"logging.level",
	"logging.format",
}

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loyalbridge",
		Short: "LoyalBridge admin authentication server",
		Long: `LoyalBridge admin authentication server.

Serves the /api/auth endpoints used by the back-office dashboard: password
login with an optional one-time-code second factor, JWT access and refresh
tokens, logout with token revocation, and role-gated admin management.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./loyalbridge.yaml)")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("loyalbridge")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.loyalbridge")
	}

	viper.SetEnvPrefix("LOYALBRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}
	viper.ReadInConfig() // Ignore error - config file is optional
}

// loadConfig returns the effective configuration: defaults, then the
// config file, then env vars and bound flags.
func loadConfig() (*config.AppConfig, error) {
	return config.LoadAppConfig(viper.GetViper())
}
