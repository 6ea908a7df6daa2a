package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/validate"
)

// Import command flags.
var (
	importFlagDryRun bool
	importFlagForce  bool
)

// importCmd represents the import command.
var importCmd = &cobra.Command{
	Use:     "import FILE",
	Aliases: []string{"imp", "restore"},
	Short:   "Restore a backup written by export",
	Long: `Restore business hours, webhooks and team members from a backup file.
Records that already exist are skipped unless --force is given. Cron times
are recomputed for this server's timezone.

Examples:
  livedesk import backup.json
  livedesk import backup.json --dry-run
  livedesk import backup.json --force`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importFlagDryRun, "dry-run", false, "Preview import without making changes")
	importCmd.Flags().BoolVar(&importFlagForce, "force", false, "Overwrite existing records")

	rootCmd.AddCommand(importCmd)
}

// importStats counts what an import did or would do.
type importStats struct {
	BusinessHours int `json:"business_hours"`
	Webhooks      int `json:"webhooks"`
	TeamMembers   int `json:"team_members"`
	Duplicates    int `json:"duplicates"`
	Invalid       int `json:"invalid"`
}

// readBackup reads and checks a backup file.
func readBackup(path string) (*Backup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	var backup Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return nil, lderrors.NewUserErrorWithField("file", path,
			"Not a livedesk backup: "+err.Error(),
			"Create a backup with 'livedesk export -o FILE'")
	}
	if backup.Version != backupVersion {
		return nil, lderrors.NewUserErrorWithField("version", backup.Version,
			"Unsupported backup version",
			"Create a backup with this version of livedesk")
	}
	return &backup, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	backup, err := readBackup(args[0])
	if err != nil {
		return err
	}

	var stats importStats
	if err := importBusinessHours(cmd, backup.BusinessHours, &stats); err != nil {
		return err
	}
	if err := importWebhooks(cmd, backup.Webhooks, &stats); err != nil {
		return err
	}
	if err := importTeamMembers(cmd, backup.TeamMembers, &stats); err != nil {
		return err
	}

	if ctx.IsJSON() {
		status := "imported"
		if importFlagDryRun {
			status = "dry_run"
		}
		return ctx.JSONFormatter().PrintResult(status, stats)
	}

	cli := ctx.CLIFormatter()
	if importFlagDryRun {
		cli.Title("Would import")
	} else {
		cli.Success("Import complete")
	}
	cli.Field("Business hours", itoa(stats.BusinessHours))
	cli.Field("Webhooks", itoa(stats.Webhooks))
	cli.Field("Team members", itoa(stats.TeamMembers))
	if stats.Duplicates > 0 {
		cli.Field("Skipped", itoa(stats.Duplicates)+" existing (use --force to overwrite)")
	}
	if stats.Invalid > 0 {
		cli.Field("Invalid", itoa(stats.Invalid))
	}
	return nil
}

func importBusinessHours(cmd *cobra.Command, hours []*model.BusinessHour, stats *importStats) error {
	c := cmd.Context()
	def, err := ctx.BusinessHours.FindDefault(c)
	if err != nil {
		return err
	}

	for _, b := range hours {
		if b == nil || b.ID == "" || !(b.Type.IsValid() || b.Type.IsLegacy()) {
			stats.Invalid++
			continue
		}
		// A second default would make FindDefault ambiguous.
		if b.Type == model.BusinessHourDefault && def != nil && def.ID != b.ID {
			stats.Duplicates++
			continue
		}
		existing, err := ctx.BusinessHours.FindByID(c, b.ID)
		if err != nil {
			return err
		}
		if existing != nil && !importFlagForce {
			stats.Duplicates++
			continue
		}

		bld, err := builder(b.Timezone.Name)
		if err != nil {
			stats.Invalid++
			continue
		}
		bld.Rebuild(b)

		if !importFlagDryRun {
			if existing != nil {
				err = ctx.BusinessHours.Update(c, b)
			} else {
				err = ctx.BusinessHours.Insert(c, b)
			}
			if err != nil {
				return fmt.Errorf("failed to import business hour %s: %w", b.ID, err)
			}
		}
		if b.Type == model.BusinessHourDefault {
			def = b
		}
		stats.BusinessHours++
	}
	return nil
}

func importWebhooks(cmd *cobra.Command, webhooks []*model.Webhook, stats *importStats) error {
	c := cmd.Context()
	for _, wh := range webhooks {
		if wh == nil ||
			validate.WebhookName(wh.Name) != nil ||
			validate.WebhookType(wh.Type) != nil ||
			validate.URL(wh.URL) != nil {
			stats.Invalid++
			continue
		}

		_, err := ctx.Webhooks.Get(c, wh.Name)
		switch {
		case err == nil && !importFlagForce:
			stats.Duplicates++
			continue
		case err != nil && !errors.Is(err, lderrors.ErrWebhookNotFound):
			return err
		}

		if !importFlagDryRun {
			if err := ctx.Webhooks.Create(c, wh); err != nil {
				return fmt.Errorf("failed to import webhook %s: %w", wh.Name, err)
			}
		}
		stats.Webhooks++
	}
	return nil
}

func importTeamMembers(cmd *cobra.Command, members []*model.TeamMember, stats *importStats) error {
	c := cmd.Context()
	for _, m := range members {
		if m == nil || teamArgs(m.TeamID, m.UserID) != nil || validate.Roles(m.Roles) != nil {
			stats.Invalid++
			continue
		}

		existing, err := ctx.Teams.FindOneByUserAndTeam(c, m.UserID, m.TeamID)
		if err != nil {
			return err
		}
		if existing != nil && !importFlagForce {
			stats.Duplicates++
			continue
		}

		if !importFlagDryRun {
			if existing != nil {
				if _, err := ctx.Teams.DeleteByUserAndTeam(c, m.UserID, m.TeamID); err != nil {
					return err
				}
			}
			if err := ctx.Teams.CreateOne(c, m); err != nil {
				return fmt.Errorf("failed to import member %s of %s: %w", m.UserID, m.TeamID, err)
			}
		}
		stats.TeamMembers++
	}
	return nil
}
