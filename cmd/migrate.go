package cmd

import (
	"github.com/spf13/cobra"

	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/migrations"
)

// Migrate command flags.
var (
	migrateFlagTo    int
	migrateFlagForce bool
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate [command]",
	Short: "Apply and inspect data migrations",
	Long: `Apply and inspect data migrations. Only one process migrates at a time;
a lock left behind by a crashed run can be released with 'migrate unlock'.

Examples:
  livedesk migrate status
  livedesk migrate up
  livedesk migrate up --to 197`,
	RunE: runMigrateStatus,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the applied and latest migration versions",
	Args:  cobra.NoArgs,
	RunE:  runMigrateStatus,
}

var migrateUnlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Release the migration lock",
	Args:  cobra.NoArgs,
	RunE:  runMigrateUnlock,
}

func init() {
	migrateUpCmd.Flags().IntVar(&migrateFlagTo, "to", 0, "Target version (default latest)")
	migrateUnlockCmd.Flags().BoolVar(&migrateFlagForce, "force", false, "Skip confirmation")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateUnlockCmd)

	rootCmd.AddCommand(migrateCmd)
}

// migrationView is the JSON shape of migrate status.
type migrationView struct {
	migrations.Status
	Pending []pendingMigration `json:"pending"`
}

type pendingMigration struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	runner, err := ctx.MigrationRunner()
	if err != nil {
		return err
	}
	status, err := runner.Status(cmd.Context())
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		view := migrationView{Status: status, Pending: []pendingMigration{}}
		for _, m := range status.Pending {
			view.Pending = append(view.Pending, pendingMigration{Version: m.Version, Name: m.Name})
		}
		return ctx.JSONFormatter().JSON(view)
	}

	cli := ctx.CLIFormatter()
	cli.Title("Migrations")
	cli.Field("Current", itoa(status.Current))
	cli.Field("Latest", itoa(status.Latest))
	if status.Locked {
		cli.Field("Locked", cli.State("stale")+" (run 'livedesk migrate unlock' if no migration is running)")
	}
	if len(status.Pending) == 0 {
		cli.Muted("Up to date.")
		return nil
	}
	cli.Println("")
	for _, m := range status.Pending {
		cli.Field("Pending", itoa(m.Version)+" "+m.Name)
	}
	return nil
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	if migrateFlagTo < 0 {
		return lderrors.NewUserErrorWithField("to", itoa(migrateFlagTo),
			"Invalid target version", "Pass a positive version or omit --to")
	}
	runner, err := ctx.MigrationRunner()
	if err != nil {
		return err
	}

	applied, err := runner.Up(cmd.Context(), migrateFlagTo)
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		if applied == nil {
			applied = []int{}
		}
		return ctx.JSONFormatter().PrintResult("migrated", map[string][]int{"applied": applied})
	}
	cli := ctx.CLIFormatter()
	if len(applied) == 0 {
		cli.Muted("No pending migrations.")
		return nil
	}
	for _, v := range applied {
		cli.Success("Applied migration " + itoa(v))
	}
	return nil
}

func runMigrateUnlock(cmd *cobra.Command, args []string) error {
	if !migrateFlagForce {
		ok, err := confirm("Release the migration lock? Only do this when no migration is running.")
		if err != nil {
			return err
		}
		if !ok {
			ctx.Formatter.Println("Cancelled.")
			return nil
		}
	}
	if err := ctx.Migrations.Unlock(cmd.Context()); err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintResult("unlocked", nil)
	}
	ctx.CLIFormatter().Success("Migration lock released")
	return nil
}
