package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/livedesk/internal/config"
	"github.com/manav03panchal/livedesk/internal/daemon"
	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/output"
	"github.com/manav03panchal/livedesk/internal/storage"
)

var storeFlagForce bool

// storeCmd represents the store command.
var storeCmd = &cobra.Command{
	Use:   "store [command]",
	Short: "Maintain the embedded badger store",
	Long: `Check, back up and recover the embedded badger store. These commands
need exclusive access, so stop the daemon first.

Examples:
  livedesk store check
  livedesk store backup
  livedesk store salvage dump.json
  livedesk store recover`,
	Annotations: noStore,
	RunE:        runStoreCheck,
}

var storeCheckCmd = &cobra.Command{
	Use:         "check",
	Short:       "Scan the store for corrupted values",
	Args:        cobra.NoArgs,
	Annotations: noStore,
	RunE:        runStoreCheck,
}

var storeBackupCmd = &cobra.Command{
	Use:         "backup",
	Short:       "Copy the store directory to a timestamped backup",
	Args:        cobra.NoArgs,
	Annotations: noStore,
	RunE:        runStoreBackup,
}

var storeSalvageCmd = &cobra.Command{
	Use:         "salvage FILE",
	Short:       "Write every readable entry to a JSON file",
	Args:        cobra.ExactArgs(1),
	Annotations: noStore,
	RunE:        runStoreSalvage,
}

var storeRecoverCmd = &cobra.Command{
	Use:         "recover",
	Short:       "Back up the store and compact it",
	Args:        cobra.NoArgs,
	Annotations: noStore,
	RunE:        runStoreRecover,
}

func init() {
	storeRecoverCmd.Flags().BoolVar(&storeFlagForce, "force", false, "Skip confirmation")

	storeCmd.AddCommand(storeCheckCmd)
	storeCmd.AddCommand(storeBackupCmd)
	storeCmd.AddCommand(storeSalvageCmd)
	storeCmd.AddCommand(storeRecoverCmd)

	rootCmd.AddCommand(storeCmd)
}

// storePath resolves the badger directory and takes the maintenance lock
// next to it. The returned release func must be called when done.
func storePath() (string, *output.CLIFormatter, func(), error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return "", nil, nil, err
	}
	initLogging(cfg)
	cli := output.NewCLIFormatter(configFormatter())

	if cfg.Store.Driver != config.DriverBadger {
		return "", nil, nil, lderrors.NewUserErrorWithField("store.driver", cfg.Store.Driver,
			"Store maintenance is only available for the badger driver",
			"Use the mongo tooling to back up a mongo store")
	}
	if daemon.NewDaemon(nil).IsRunning() {
		return "", nil, nil, lderrors.NewUserError("The daemon holds the store",
			"Stop it first with 'livedesk daemon stop'")
	}

	path := cfg.Store.Path
	if path == "" {
		path = storage.DefaultPath()
	}

	if err := storage.EnsureDirectory(filepath.Dir(path)); err != nil {
		return "", nil, nil, err
	}
	lock := storage.NewFileLock(filepath.Dir(path))
	if err := lock.Acquire(); err != nil {
		return "", nil, nil, storage.NewLockError(err)
	}
	return path, cli, func() { _ = lock.Release() }, nil
}

func runStoreCheck(cmd *cobra.Command, args []string) error {
	path, cli, release, err := storePath()
	if err != nil {
		return err
	}
	defer release()

	db, err := storage.Open(storage.Options{Path: path})
	if err != nil {
		return err
	}
	defer db.Close()

	status := storage.CheckDatabaseIntegrity(db)
	disk, _ := storage.GetDiskSpace(path)
	if cli.Format == output.FormatJSON {
		return cli.JSON(map[string]any{"integrity": status, "disk": disk})
	}

	cli.Title("Store")
	cli.Field("Path", path)
	if disk != nil {
		cli.Field("Disk", fmt.Sprintf("%d MB free (%.0f%%)", disk.FreeBytes/(1024*1024), disk.FreePercent()))
	}
	if status.Healthy {
		cli.Field("Status", cli.State("healthy"))
		return nil
	}
	cli.Field("Status", cli.State("corrupted"))
	for _, e := range status.Errors {
		cli.Error(e)
	}
	if status.Recoverable {
		cli.Muted("Try 'livedesk store recover'.")
	} else {
		cli.Muted("Salvage readable entries with 'livedesk store salvage FILE'.")
	}
	return nil
}

func runStoreBackup(cmd *cobra.Command, args []string) error {
	path, cli, release, err := storePath()
	if err != nil {
		return err
	}
	defer release()

	backup, err := storage.CreateBackup(path)
	if err != nil {
		return err
	}
	if cli.Format == output.FormatJSON {
		return cli.JSON(map[string]string{"status": "created", "path": backup})
	}
	cli.Success("Backup written to " + backup)
	return nil
}

func runStoreSalvage(cmd *cobra.Command, args []string) error {
	path, cli, release, err := storePath()
	if err != nil {
		return err
	}
	defer release()

	db, err := storage.Open(storage.Options{Path: path})
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := storage.ExportSalvageableData(db, args[0])
	if err != nil {
		return err
	}
	if cli.Format == output.FormatJSON {
		return cli.JSON(map[string]any{"status": "exported", "path": args[0], "count": n})
	}
	cli.Success("Exported " + itoa(n) + " entries to " + args[0])
	return nil
}

func runStoreRecover(cmd *cobra.Command, args []string) error {
	path, cli, release, err := storePath()
	if err != nil {
		return err
	}
	defer release()

	if !storeFlagForce {
		ok, err := confirm("Back up and compact the store at " + path + "?")
		if err != nil {
			return err
		}
		if !ok {
			cli.Println("Cancelled.")
			return nil
		}
	}

	if err := storage.AttemptRecovery(path); err != nil {
		return err
	}
	if cli.Format == output.FormatJSON {
		return cli.JSON(map[string]string{"status": "recovered", "path": path})
	}
	cli.Success("Store recovered")
	return nil
}
