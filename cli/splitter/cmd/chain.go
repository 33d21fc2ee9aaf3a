package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/payment-splitter/internal/ledger"
	"github.com/alphabill-org/payment-splitter/internal/logger"
	"github.com/alphabill-org/payment-splitter/pkg/koios"
	"github.com/alphabill-org/payment-splitter/pkg/splitter"
	"github.com/alphabill-org/payment-splitter/pkg/wallet/account"
)

// koiosRequestTimeout bounds a single request, the whole command is bounded
// by the timeout flag.
const koiosRequestTimeout = 30 * time.Second

const (
	networkCmdName         = "network"
	koiosUrlCmdName        = "koios-url"
	koiosTokenCmdName      = "koios-token"
	validatorCmdName       = "validator"
	validatorTitleCmdName  = "validator-title"
	timeoutCmdName         = "timeout"
	collateralCmdName      = "collateral"
	redeemerMessageCmdName = "redeemer-message"
	confirmCmdName         = "confirm"

	defaultNetwork = "preprod"
)

// addNetworkFlags adds the flags of the commands reading the chain.
func addNetworkFlags(cmd *cobra.Command) {
	cmd.Flags().String(networkCmdName, defaultNetwork, "network name, one of: preprod, preview, mainnet")
	cmd.Flags().String(koiosUrlCmdName, "", "Koios API URL (default is the public endpoint of the network)")
	cmd.Flags().String(koiosTokenCmdName, "", "Koios API bearer token")
	cmd.Flags().Duration(timeoutCmdName, defaultTimeout, "time limit of the command")
	addPasswordFlags(cmd)
}

// addScriptFlags adds the flags of the commands building the script.
func addScriptFlags(cmd *cobra.Command) {
	addNetworkFlags(cmd)
	cmd.Flags().String(validatorCmdName, "", fmt.Sprintf("compiled validator blueprint or text envelope (default is $SPLITTER_HOME/%s)", defaultValidatorFile))
	cmd.Flags().String(validatorTitleCmdName, "", "title of the validator in the blueprint (default is the first validator)")
}

// addSettlementFlags adds the flags of the commands submitting transactions.
func addSettlementFlags(cmd *cobra.Command) {
	addScriptFlags(cmd)
	cmd.Flags().Uint64(collateralCmdName, splitter.DefaultCollateralAmount, "lovelace reserved as collateral of the unlock transaction")
	cmd.Flags().String(redeemerMessageCmdName, "", "message carried by the unlock redeemer")
	cmd.Flags().Bool(confirmCmdName, false, "wait until the transaction appears on chain")
}

func networkFromFlags(cmd *cobra.Command) (string, ledger.Network, error) {
	name, err := cmd.Flags().GetString(networkCmdName)
	if err != nil {
		return "", 0, err
	}
	network, err := ledger.ParseNetwork(name)
	if err != nil {
		return "", 0, err
	}
	return name, network, nil
}

func newKoiosClient(cmd *cobra.Command, networkName string) (*koios.Client, error) {
	uri, err := cmd.Flags().GetString(koiosUrlCmdName)
	if err != nil {
		return nil, err
	}
	if uri == "" {
		uri = koios.URLForNetwork(networkName)
	}
	token, err := cmd.Flags().GetString(koiosTokenCmdName)
	if err != nil {
		return nil, err
	}
	opts := []koios.Option{koios.WithHttpClient(http.Client{Timeout: koiosRequestTimeout})}
	if token != "" {
		opts = append(opts, koios.WithToken(token))
	}
	return koios.New(uri, opts...)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc, error) {
	timeout, err := cmd.Flags().GetDuration(timeoutCmdName)
	if err != nil {
		return nil, nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}

// session is the state shared by the commands working with the script.
type session struct {
	networkName  string
	orchestrator *splitter.Orchestrator
}

/*
newSession loads the payees and the validator and derives the script. The
settlement flags are read only when the command defines them.
*/
func newSession(cmd *cobra.Command, config *baseConfiguration, am account.Manager) (*session, error) {
	networkName, network, err := networkFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	logger.SetContext("network", networkName)
	chain, err := newKoiosClient(cmd, networkName)
	if err != nil {
		return nil, err
	}
	validatorPath, err := cmd.Flags().GetString(validatorCmdName)
	if err != nil {
		return nil, err
	}
	if validatorPath == "" {
		validatorPath = config.defaultValidatorPath()
	}
	title, err := cmd.Flags().GetString(validatorTitleCmdName)
	if err != nil {
		return nil, err
	}
	validator, err := splitter.LoadCompiledValidator(validatorPath, title)
	if err != nil {
		return nil, err
	}
	signer, err := am.Signer(network)
	if err != nil {
		return nil, fmt.Errorf("loading signer: %w", err)
	}

	payees := am.GetPayees()
	addresses := make([]ledger.Address, 0, len(payees))
	for _, p := range payees {
		addr, err := p.Address(network)
		if err != nil {
			return nil, fmt.Errorf("payee %d address: %w", p.Index, err)
		}
		addresses = append(addresses, addr)
	}

	env := splitter.Env{
		Network:   network,
		Chain:     chain,
		Signer:    signer,
		Validator: validator,
		Payees:    addresses,
	}
	if cmd.Flags().Lookup(collateralCmdName) != nil {
		if env.CollateralAmount, err = cmd.Flags().GetUint64(collateralCmdName); err != nil {
			return nil, err
		}
		msg, err := cmd.Flags().GetString(redeemerMessageCmdName)
		if err != nil {
			return nil, err
		}
		if msg != "" {
			env.RedeemerMessage = []byte(msg)
		}
		if env.Confirm, err = cmd.Flags().GetBool(confirmCmdName); err != nil {
			return nil, err
		}
		if env.ConfirmTimeout, err = cmd.Flags().GetDuration(timeoutCmdName); err != nil {
			return nil, err
		}
	}

	o, err := splitter.Setup(env)
	if err != nil {
		return nil, err
	}
	return &session{networkName: networkName, orchestrator: o}, nil
}

func explorerTxURL(networkName string, hash ledger.TxHash) string {
	switch networkName {
	case "mainnet":
		return "https://cexplorer.io/tx/" + hash.String()
	case "preview":
		return "https://preview.cexplorer.io/tx/" + hash.String()
	default:
		return "https://preprod.cexplorer.io/tx/" + hash.String()
	}
}

// reportUnconfirmed prints the hash of a transaction the ledger accepted but
// that was not seen in a block before the timeout.
func reportUnconfirmed(networkName string, hash ledger.TxHash, err error) {
	consoleWriter.Println(fmt.Sprintf("Transaction %s was submitted but is not confirmed yet: %v", hash, err))
	consoleWriter.Println("See: " + explorerTxURL(networkName, hash))
}

/*
reportFailure prints the failures the user can act on and returns nil for
them. Errors of unknown kind are returned to fail the command.
*/
func reportFailure(action string, err error) error {
	kind := splitter.KindOf(err)
	if kind == splitter.KindUnknown {
		return err
	}
	consoleWriter.Println(fmt.Sprintf("Failed to %s, %s: %v", action, kind, err))
	if errors.Is(err, ledger.ErrInputAlreadySpent) {
		consoleWriter.Println("The funds were spent by another transaction, check the balances and retry.")
	}
	return nil
}
