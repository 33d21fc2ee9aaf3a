package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/payment-splitter/internal/util"
	"github.com/alphabill-org/payment-splitter/pkg/splitter"
)

func newLockCmd(config *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock <amount>",
		Short: "locks amount of lovelace to the payment splitter script",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execLockCmd(cmd, config, args)
		},
	}
	addSettlementFlags(cmd)
	return cmd
}

func execLockCmd(cmd *cobra.Command, config *baseConfiguration, args []string) error {
	if len(args) == 0 {
		printLockUsage()
		return nil
	}
	amount, err := util.ParsePositiveUint64(args[0])
	if err != nil {
		printLockUsage()
		return nil
	}

	am, err := loadExistingAccountManager(cmd, config.keysDir())
	if err != nil {
		return err
	}
	defer am.Close()

	s, err := newSession(cmd, config, am)
	if err != nil {
		return reportFailure("lock funds", err)
	}
	ctx, cancel, err := commandContext(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	txHash, err := s.orchestrator.Lock(ctx, amount)
	if splitter.KindOf(err) == splitter.KindUnconfirmed {
		reportUnconfirmed(s.networkName, txHash, err)
		return nil
	}
	if err != nil {
		return reportFailure("lock funds", err)
	}
	consoleWriter.Println(fmt.Sprintf("Successfully locked %d lovelace to the script address %s.", amount, s.orchestrator.ScriptAddress()))
	consoleWriter.Println("See: " + explorerTxURL(s.networkName, txHash))
	return nil
}

func printLockUsage() {
	consoleWriter.Println("Expected a positive number (lovelace amount) as the argument.")
	consoleWriter.Println("Example usage: splitter lock 10000000")
}
