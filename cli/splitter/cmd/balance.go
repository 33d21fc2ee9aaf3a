package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBalanceCmd(config *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "prints the lovelace held by the signer, the script and the payees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execBalanceCmd(cmd, config)
		},
	}
	addScriptFlags(cmd)
	return cmd
}

func execBalanceCmd(cmd *cobra.Command, config *baseConfiguration) error {
	am, err := loadExistingAccountManager(cmd, config.keysDir())
	if err != nil {
		return err
	}
	defer am.Close()

	s, err := newSession(cmd, config, am)
	if err != nil {
		return reportFailure("derive the script", err)
	}
	ctx, cancel, err := commandContext(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	balances, err := s.orchestrator.Balances(ctx)
	if err != nil {
		return err
	}
	for _, b := range balances {
		consoleWriter.Println(fmt.Sprintf("%s %s %d", b.Label, b.Address, b.Amount))
	}
	return nil
}
