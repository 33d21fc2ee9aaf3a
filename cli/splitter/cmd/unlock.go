package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/payment-splitter/pkg/splitter"
)

func newUnlockCmd(config *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "unlocks the funds of the script and splits them equally between the payees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execUnlockCmd(cmd, config)
		},
	}
	addSettlementFlags(cmd)
	return cmd
}

func execUnlockCmd(cmd *cobra.Command, config *baseConfiguration) error {
	am, err := loadExistingAccountManager(cmd, config.keysDir())
	if err != nil {
		return err
	}
	defer am.Close()

	s, err := newSession(cmd, config, am)
	if err != nil {
		return reportFailure("unlock funds", err)
	}
	ctx, cancel, err := commandContext(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	res, err := s.orchestrator.Unlock(ctx)
	if splitter.KindOf(err) == splitter.KindUnconfirmed {
		reportUnconfirmed(s.networkName, res.TxHash, err)
		return nil
	}
	if err != nil {
		return reportFailure("unlock funds", err)
	}
	consoleWriter.Println(fmt.Sprintf("Successfully unlocked the lovelace from the script address %s and split it equally (%d lovelace) to all payees.",
		s.orchestrator.ScriptAddress(), res.Plan.PerPayeeAmount))
	if r := res.Plan.Remainder(); r > 0 {
		consoleWriter.Println(fmt.Sprintf("Rounding remainder of %d lovelace was returned to the signer.", r))
	}
	consoleWriter.Println("See: " + explorerTxURL(s.networkName, res.TxHash))
	return nil
}
