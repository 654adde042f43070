package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loyalbridge/admin/internal/config"
	"github.com/loyalbridge/admin/internal/model"
	"github.com/loyalbridge/admin/internal/service"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin users",
		Long:  "Create, list, enable and disable the back-office admins who can sign in to the dashboard.",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())
	cmd.AddCommand(newAdminStatusCmd("disable", false))
	cmd.AddCommand(newAdminStatusCmd("enable", true))
	cmd.AddCommand(newAdminSeedCmd())

	return cmd
}

// withStore loads the config, opens the credential store and hands both to
// fn.
func withStore(fn func(cfg *config.AppConfig, store *config.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

// ---------- admin create ----------

type adminCreateOptions struct {
	Email     string
	Password  string
	Role      string
	FirstName string
	LastName  string
}

func newAdminCreateCmd() *cobra.Command {
	var opts adminCreateOptions

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new admin user",
		Example: `  loyalbridge admin create --email ops@loyalbridge.io --role SUPER_ADMIN
  loyalbridge admin create --email finance@loyalbridge.io --role FINANCE_TEAM --first-name Dana`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Password == "" {
				pw, err := readPassword(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				opts.Password = pw
			}
			return withStore(func(cfg *config.AppConfig, store *config.Store) error {
				hasher := service.NewBcryptHasher(cfg.Auth.BcryptCost)
				return runAdminCreate(cmd.Context(), cmd.OutOrStdout(), store, hasher, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "Admin password (prompted if omitted)")
	cmd.Flags().StringVar(&opts.Role, "role", string(model.RoleSupportStaff), "Admin role: SUPER_ADMIN, FINANCE_TEAM, SUPPORT_STAFF or PARTNER_ADMIN")
	cmd.Flags().StringVar(&opts.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&opts.LastName, "last-name", "", "Last name")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runAdminCreate(ctx context.Context, out io.Writer, store *config.Store, hasher service.PasswordHasher, opts adminCreateOptions) error {
	email := model.NormalizeEmail(opts.Email)
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %q", opts.Email)
	}
	role, err := model.ParseAdminRole(opts.Role)
	if err != nil {
		return err
	}
	if err := service.ValidatePasswordStrength(opts.Password); err != nil {
		return err
	}
	hash, err := hasher.Hash(opts.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	admin := &model.Admin{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		FirstName:    strings.TrimSpace(opts.FirstName),
		LastName:     strings.TrimSpace(opts.LastName),
		IsActive:     true,
	}
	if err := store.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, config.ErrDuplicate) {
			return fmt.Errorf("admin %q already exists", email)
		}
		return fmt.Errorf("create admin: %w", err)
	}

	fmt.Fprintf(out, "Created admin %q (id %d, role %s)\n", admin.Email, admin.ID, admin.Role)
	return nil
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	var (
		jsonOutput bool
		role       string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List admin users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(_ *config.AppConfig, store *config.Store) error {
				return runAdminList(cmd.Context(), cmd.OutOrStdout(), store, role, jsonOutput)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&role, "role", "", "Only list admins with this role")

	return cmd
}

func runAdminList(ctx context.Context, out io.Writer, store *config.Store, roleFilter string, jsonOutput bool) error {
	var (
		admins []model.Admin
		err    error
	)
	if roleFilter != "" {
		role, perr := model.ParseAdminRole(roleFilter)
		if perr != nil {
			return perr
		}
		admins, err = store.ListAdminsByRole(ctx, role)
	} else {
		admins, err = store.ListAdmins(ctx)
	}
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	if jsonOutput {
		infos := make([]model.AdminInfo, 0, len(admins))
		for i := range admins {
			infos = append(infos, admins[i].Info())
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	if len(admins) == 0 {
		fmt.Fprintln(out, "No admin users configured. Use 'loyalbridge admin create' to create one.")
		return nil
	}

	fmt.Fprintf(out, "%-5s %-32s %-24s %-14s %-8s\n", "ID", "EMAIL", "NAME", "ROLE", "ACTIVE")
	fmt.Fprintf(out, "%-5s %-32s %-24s %-14s %-8s\n", "--", "-----", "----", "----", "------")
	for i := range admins {
		a := &admins[i]
		active := "yes"
		if !a.IsActive {
			active = "no"
		}
		fmt.Fprintf(out, "%-5d %-32s %-24s %-14s %-8s\n", a.ID, a.Email, a.FullName(), a.Role, active)
	}

	return nil
}

// ---------- admin enable / disable ----------

func newAdminStatusCmd(verb string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <email>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " an admin user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(_ *config.AppConfig, store *config.Store) error {
				return runAdminSetActive(cmd.Context(), cmd.OutOrStdout(), store, args[0], active)
			})
		},
	}
}

func runAdminSetActive(ctx context.Context, out io.Writer, store *config.Store, email string, active bool) error {
	admin, err := store.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return fmt.Errorf("admin %q not found", email)
		}
		return err
	}
	if !active && admin.IsActive && admin.Role == model.RoleSuperAdmin {
		supers, err := store.ListAdminsByRole(ctx, model.RoleSuperAdmin)
		if err != nil {
			return err
		}
		n := 0
		for _, a := range supers {
			if a.IsActive {
				n++
			}
		}
		if n <= 1 {
			return fmt.Errorf("refusing to disable %q: it is the last active super admin", admin.Email)
		}
	}
	if err := store.SetAdminActive(ctx, admin.ID, active); err != nil {
		return fmt.Errorf("update admin: %w", err)
	}

	state := "enabled"
	if !active {
		state = "disabled"
	}
	fmt.Fprintf(out, "Admin %q %s\n", admin.Email, state)
	return nil
}

// ---------- admin seed ----------

func newAdminSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo admin accounts (development only)",
		Long: `Create one demo admin per role with well-known passwords. Existing
accounts are left untouched. Never run this against a production database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(cfg *config.AppConfig, store *config.Store) error {
				hasher := service.NewBcryptHasher(cfg.Auth.BcryptCost)
				n, err := service.SeedAdmins(cmd.Context(), store, hasher, service.DefaultSeedAdmins(), nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d admin account(s)\n", n)
				return nil
			})
		},
	}
}
