package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/payment-splitter/internal/util"
)

func newExportCmd(config *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "writes the seed phrase of every payee to dir",
		Long:  "Writes the seed phrase of payee n to dir/payee_<n>.txt. Existing files are not overwritten. The files can be imported with prepare --seeds.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execExportCmd(cmd, config, args[0])
		},
	}
	addPasswordFlags(cmd)
	return cmd
}

func execExportCmd(cmd *cobra.Command, config *baseConfiguration, dir string) error {
	am, err := loadExistingAccountManager(cmd, config.keysDir())
	if err != nil {
		return err
	}
	defer am.Close()

	if err := os.MkdirAll(dir, 0700); err != nil { // -rwx------
		return err
	}
	payees := am.GetPayees()
	for _, p := range payees {
		mnemonic, err := am.GetMnemonic(p.Index)
		if err != nil {
			return err
		}
		b, err := json.Marshal(mnemonic)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, seedFileName(int(p.Index)))
		if err := util.WriteSecretFile(path, b); err != nil {
			return fmt.Errorf("writing seed file: %w", err)
		}
	}
	consoleWriter.Println(fmt.Sprintf("Exported the seed phrases of %d payees to %s.", len(payees), dir))
	return nil
}
