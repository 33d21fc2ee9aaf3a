package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAddressesCmd(config *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "addresses",
		Short: "prints the payee and script addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execAddressesCmd(cmd, config)
		},
	}
	addScriptFlags(cmd)
	return cmd
}

func execAddressesCmd(cmd *cobra.Command, config *baseConfiguration) error {
	am, err := loadExistingAccountManager(cmd, config.keysDir())
	if err != nil {
		return err
	}
	defer am.Close()

	s, err := newSession(cmd, config, am)
	if err != nil {
		return reportFailure("derive the script", err)
	}
	signerIdx, err := am.SignerIndex()
	if err != nil {
		return err
	}
	network := s.orchestrator.ScriptAddress().Network()
	for _, payee := range am.GetPayees() {
		addr, err := payee.Address(network)
		if err != nil {
			return err
		}
		marker := ""
		if payee.Index == signerIdx {
			marker = " (signer)"
		}
		consoleWriter.Println(fmt.Sprintf("#%d %s %s%s", payee.Index, addr, payee.PaymentKeyHash, marker))
	}
	script := s.orchestrator.Script()
	consoleWriter.Println(fmt.Sprintf("Script %X", script.Hash()))
	consoleWriter.Println(fmt.Sprintf("Script address %s", s.orchestrator.ScriptAddress()))
	return nil
}
