package cli

import (
	"fmt"

	"github.com/rovshanmuradov/solana-sim/internal/export"
	"github.com/rovshanmuradov/solana-sim/internal/store"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportToken  string
)

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "export format: csv or json")
	exportCmd.Flags().StringVarP(&exportToken, "token", "t", "", "only export trades for this mint")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the closed trade history to a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		kv, err := store.OpenSQLite(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer kv.Close()

		snap, ok, err := store.NewSnapshotStore(kv).LoadSnapshot()
		if err != nil {
			return err
		}
		if !ok || len(snap.ClosedTrades) == 0 {
			return fmt.Errorf("no trade history to export")
		}

		path, err := export.NewExporter(log.Named("export")).Export(snap.ClosedTrades, export.Options{
			Format:      export.Format(exportFormat),
			TokenFilter: exportToken,
			OutputDir:   cfg.ExportDir,
		})
		if err != nil {
			return err
		}

		fmt.Println("exported to", path)
		return nil
	},
}
