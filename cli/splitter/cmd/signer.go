package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSignerCmd(config *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signer [index]",
		Short: "prints or sets the payee signing the transactions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execSignerCmd(cmd, config, args)
		},
	}
	addPasswordFlags(cmd)
	return cmd
}

func execSignerCmd(cmd *cobra.Command, config *baseConfiguration, args []string) error {
	am, err := loadExistingAccountManager(cmd, config.keysDir())
	if err != nil {
		return err
	}
	defer am.Close()

	if len(args) == 1 {
		index, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid payee index %q: %w", args[0], err)
		}
		if err := am.SetSignerIndex(index); err != nil {
			return err
		}
	}
	index, err := am.SignerIndex()
	if err != nil {
		return err
	}
	consoleWriter.Println(fmt.Sprintf("Signer is payee %d", index))
	return nil
}
