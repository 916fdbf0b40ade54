package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rovshanmuradov/solana-sim/internal/maintenance"
	"github.com/rovshanmuradov/solana-sim/internal/store"
	"github.com/spf13/cobra"
)

var assumeYes bool

func init() {
	for _, cmd := range []*cobra.Command{resetCmd, wipeTokenCmd, resetTokenCmd} {
		cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
	}
}

// withManager opens the database and hands a maintenance manager to fn.
// These commands edit persisted snapshots directly; the live session must
// not be running at the same time.
func withManager(fn func(m *maintenance.Manager) error) error {
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

	return fn(maintenance.NewManager(kv, cfg.InitialBalance, log.Named("maintenance")))
}

func confirm(prompt string) bool {
	if assumeYes {
		return true
	}
	fmt.Printf("%s [y/N]: ", prompt)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset everything: clear all trading history and restore the initial balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(m *maintenance.Manager) error {
			if !confirm("Reset everything? This clears all trading history") {
				fmt.Println("aborted")
				return nil
			}
			return m.ResetToInitial()
		})
	},
}

var wipeTokenCmd = &cobra.Command{
	Use:   "wipe-token <mint>",
	Short: "Delete all trades for a token and back their PnL out of the balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(m *maintenance.Manager) error {
			if !confirm(fmt.Sprintf("Delete all trades for %s?", args[0])) {
				fmt.Println("aborted")
				return nil
			}
			return m.DeleteTradesForToken(args[0])
		})
	},
}

var resetTokenCmd = &cobra.Command{
	Use:   "reset-token <mint>",
	Short: "Remove a token's trades and positions without touching the balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(m *maintenance.Manager) error {
			if !confirm(fmt.Sprintf("Reset records for %s?", args[0])) {
				fmt.Println("aborted")
				return nil
			}
			return m.ResetTokenBalance(args[0])
		})
	},
	Args: cobra.ExactArgs(1),
}
