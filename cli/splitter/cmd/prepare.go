package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/payment-splitter/internal/ledger"
	"github.com/alphabill-org/payment-splitter/internal/util"
	"github.com/alphabill-org/payment-splitter/pkg/wallet/account"
)

const seedsCmdName = "seeds"

func newPrepareCmd(config *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepare <count>",
		Short: "generates the seed phrases of count payees",
		Long:  "Generates count payees, each with its own seed phrase, and stores them in $SPLITTER_HOME/payees. Payee 0 signs the lock and unlock transactions.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execPrepareCmd(cmd, config, args)
		},
	}
	cmd.Flags().String(networkCmdName, defaultNetwork, "network name, one of: preprod, preview, mainnet")
	cmd.Flags().String(seedsCmdName, "", "directory of payee_<n>.txt seed phrase files to import instead of generating new ones")
	addPasswordFlags(cmd)
	return cmd
}

func execPrepareCmd(cmd *cobra.Command, config *baseConfiguration, args []string) error {
	seedsDir, err := cmd.Flags().GetString(seedsCmdName)
	if err != nil {
		return err
	}
	var count uint64
	if seedsDir == "" {
		if len(args) == 0 {
			printPrepareUsage()
			return nil
		}
		if count, err = util.ParsePositiveUint64(args[0]); err != nil {
			printPrepareUsage()
			return nil
		}
	}
	_, network, err := networkFromFlags(cmd)
	if err != nil {
		return err
	}

	keysDir := config.keysDir()
	if util.FileExists(filepath.Join(keysDir, account.AccountFileName)) {
		consoleWriter.Println(fmt.Sprintf("Payees already exist in %s. Please remove them before preparing new ones.", keysDir))
		return nil
	}
	var mnemonics []string
	if seedsDir != "" {
		if mnemonics, err = readSeedFiles(seedsDir); err != nil {
			return err
		}
	}
	pw, err := createPassphrase(cmd)
	if err != nil {
		return err
	}
	am, err := account.NewAccountManager(keysDir, pw, true)
	if err != nil {
		return fmt.Errorf("failed to create payee key store: %w", err)
	}
	defer am.Close()

	var payees []account.Payee
	if len(mnemonics) > 0 {
		for _, m := range mnemonics {
			p, err := am.ImportPayee(m)
			if err != nil {
				return err
			}
			payees = append(payees, p)
		}
	} else if payees, err = am.CreatePayees(count); err != nil {
		return err
	}
	signer, err := payees[0].Address(network)
	if err != nil {
		return err
	}
	consoleWriter.Println(fmt.Sprintf("Successfully prepared %d payees (seed phrases).", len(payees)))
	consoleWriter.Println(fmt.Sprintf("Make sure to send some %s to payee 0 %s", adaTicker(network), signer))
	consoleWriter.Println("as this payee submits the transactions. Enough funds for the fees and the collateral are needed.")
	return nil
}

// readSeedFiles reads payee_0.txt, payee_1.txt and so on until the first
// missing file. Every file holds the seed phrase as a JSON string.
func readSeedFiles(dir string) ([]string, error) {
	var res []string
	for i := 0; ; i++ {
		path := filepath.Join(dir, seedFileName(i))
		if !util.FileExists(path) {
			break
		}
		var mnemonic string
		if _, err := util.ReadJsonFile(path, &mnemonic); err != nil {
			return nil, fmt.Errorf("reading seed file %s: %w", path, err)
		}
		res = append(res, mnemonic)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("no seed files (%s) in %s", seedFileName(0), dir)
	}
	return res, nil
}

func seedFileName(index int) string {
	return fmt.Sprintf("payee_%d.txt", index)
}

func printPrepareUsage() {
	consoleWriter.Println("Expected a positive number (of seed phrases to prepare) as the argument.")
	consoleWriter.Println("Example usage: splitter prepare 5")
}

func adaTicker(network ledger.Network) string {
	if network == ledger.Mainnet {
		return "ADA"
	}
	return "tADA"
}
