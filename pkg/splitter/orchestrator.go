package splitter

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alphabill-org/payment-splitter/internal/ledger"
	"github.com/alphabill-org/payment-splitter/internal/logger"
	"github.com/alphabill-org/payment-splitter/internal/plutus"
	"github.com/alphabill-org/payment-splitter/pkg/wallet/txsubmitter"
)

var log = logger.CreateForPackage()

type (
	// Env holds the collaborators and settings of one invocation.
	Env struct {
		Network   ledger.Network
		Chain     ChainProvider
		Signer    Signer
		Assembler Assembler
		Validator plutus.CompiledValidator
		// Payees in the order baked into the script.
		Payees []ledger.Address

		RedeemerMessage  []byte
		CollateralAmount uint64

		Confirm        bool
		PollInterval   time.Duration
		ConfirmTimeout time.Duration
	}

	// Orchestrator locks funds to the script and settles them between the
	// payees. The script is derived once in Setup.
	Orchestrator struct {
		env           Env
		payees        *PayeeSet
		script        *plutus.Script
		scriptAddress ledger.Address
	}

	// Settlement is the outcome of a successful unlock.
	Settlement struct {
		TxHash ledger.TxHash
		Plan   SplitPlan
		Inputs int
	}

	// Balance of a known address.
	Balance struct {
		Label   string
		Address ledger.Address
		Amount  uint64
	}
)

func Setup(env Env) (*Orchestrator, error) {
	if !env.Network.Valid() {
		return nil, stepError("setup", "", fmt.Errorf("%w: %d", ledger.ErrInvalidNetwork, env.Network))
	}
	if env.Signer == nil {
		return nil, stepError("setup", "", ErrMissingSigner)
	}
	if env.Chain == nil {
		return nil, stepError("setup", "", fmt.Errorf("chain provider is not configured"))
	}
	if len(env.Validator.Code) == 0 {
		return nil, stepError("setup", "", ErrMissingValidator)
	}
	if env.Assembler == nil {
		env.Assembler = ledger.NewAssembler()
	}
	if env.RedeemerMessage == nil {
		env.RedeemerMessage = []byte(plutus.DefaultRedeemerMessage)
	}
	if env.CollateralAmount == 0 {
		env.CollateralAmount = DefaultCollateralAmount
	}

	payees, err := PayeeSetFromAddresses(env.Payees)
	if err != nil {
		return nil, stepError("register payees", "", err)
	}
	script, err := DeriveScript(env.Validator, payees)
	if err != nil {
		return nil, stepError("derive script", env.Validator.Version.String(), err)
	}
	addr, err := DeriveAddress(script, env.Network)
	if err != nil {
		return nil, stepError("derive script address", "", err)
	}
	log.Debug("script %X of %d payees at %s", script.Hash(), payees.Len(), addr)
	return &Orchestrator{env: env, payees: payees, script: script, scriptAddress: addr}, nil
}

func (o *Orchestrator) ScriptAddress() ledger.Address {
	return o.scriptAddress
}

func (o *Orchestrator) Script() *plutus.Script {
	return o.script
}

func (o *Orchestrator) Payees() *PayeeSet {
	return o.payees
}

// Lock sends amount from the signer to the script address with the signer
// as the authorizer. When the transaction is submitted but not confirmed in
// time the hash is returned together with the error.
func (o *Orchestrator) Lock(ctx context.Context, amount uint64) (ledger.TxHash, error) {
	signerAddr := o.env.Signer.Address()
	datum := plutus.NewLockDatum(o.env.Signer.PaymentKeyHash().Bytes())
	draft, err := BuildLockTx(o.scriptAddress, datum, amount, signerAddr)
	if err != nil {
		return ledger.TxHash{}, stepError("build lock tx", o.scriptAddress.String(), err)
	}

	var walletUTxOs []ledger.UTxO
	var params *ledger.ProtocolParams
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		walletUTxOs, err = o.fetchUTxOs(gctx, signerAddr)
		return err
	})
	g.Go(func() (err error) {
		params, err = o.protocolParameters(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return ledger.TxHash{}, err
	}

	tx, err := o.env.Assembler.Assemble(draft, walletUTxOs, params)
	if err != nil {
		return ledger.TxHash{}, stepError("assemble lock tx", signerAddr.String(), err)
	}
	if err := o.signAndSubmit(ctx, tx, false); err != nil {
		if KindOf(err) == KindUnconfirmed {
			return tx.ID, err
		}
		return ledger.TxHash{}, err
	}
	log.Info("locked %d lovelace to %s in tx %s", amount, o.scriptAddress, tx.ID)
	return tx.ID, nil
}

// Unlock spends everything at the script address and pays every payee an
// equal share. Like Lock, an unconfirmed settlement is returned along with
// the error.
func (o *Orchestrator) Unlock(ctx context.Context) (*Settlement, error) {
	signerAddr := o.env.Signer.Address()

	var scriptUTxOs, signerUTxOs []ledger.UTxO
	var params *ledger.ProtocolParams
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		scriptUTxOs, err = o.fetchUTxOs(gctx, o.scriptAddress)
		return err
	})
	g.Go(func() (err error) {
		signerUTxOs, err = o.fetchUTxOs(gctx, signerAddr)
		return err
	})
	g.Go(func() (err error) {
		params, err = o.protocolParameters(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	draft, plan, err := BuildUnlockTx(&UnlockRequest{
		ScriptUTxOs:         scriptUTxOs,
		Script:              o.script,
		Datum:               plutus.NewLockDatum(o.env.Signer.PaymentKeyHash().Bytes()),
		Redeemer:            plutus.NewUnlockRedeemer(o.env.RedeemerMessage),
		Payees:              o.env.Payees,
		CollateralSource:    signerUTxOs,
		Signer:              o.env.Signer.PaymentKeyHash(),
		ChangeAddress:       signerAddr,
		CollateralAmount:    o.env.CollateralAmount,
		MaxCollateralInputs: params.MaxCollateralInputs,
	})
	if err != nil {
		return nil, stepError("build unlock tx", o.scriptAddress.String(), err)
	}
	log.Debug("splitting %d lovelace of %d UTxOs, %d to each of %d payees", plan.TotalConsumed, len(scriptUTxOs), plan.PerPayeeAmount, plan.PayeeCount)

	tx, err := o.env.Assembler.Assemble(draft, signerUTxOs, params)
	if err != nil {
		return nil, stepError("assemble unlock tx", o.scriptAddress.String(), err)
	}
	// the signer's witness covers the collateral, the script input needs none
	settlement := &Settlement{TxHash: tx.ID, Plan: *plan, Inputs: len(scriptUTxOs)}
	if err := o.signAndSubmit(ctx, tx, true); err != nil {
		if KindOf(err) == KindUnconfirmed {
			return settlement, err
		}
		return nil, err
	}
	log.Info("unlocked %d lovelace from %s in tx %s", plan.TotalConsumed, o.scriptAddress, tx.ID)
	return settlement, nil
}

// Balances returns the lovelace held by the signer, the script and the
// payees.
func (o *Orchestrator) Balances(ctx context.Context) ([]Balance, error) {
	res := []Balance{
		{Label: "signer", Address: o.env.Signer.Address()},
		{Label: "script", Address: o.scriptAddress},
	}
	for i, p := range o.env.Payees {
		res = append(res, Balance{Label: fmt.Sprintf("payee %d", i), Address: p})
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := range res {
		b := &res[i]
		g.Go(func() error {
			amount, err := o.env.Chain.FetchBalance(gctx, b.Address)
			if err != nil {
				return stepError("fetch balance", b.Address.String(), err)
			}
			b.Amount = amount
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) fetchUTxOs(ctx context.Context, addr ledger.Address) ([]ledger.UTxO, error) {
	utxos, err := o.env.Chain.FetchUTxOs(ctx, addr)
	if err != nil {
		return nil, stepError("fetch UTxOs", addr.String(), err)
	}
	return utxos, nil
}

func (o *Orchestrator) protocolParameters(ctx context.Context) (*ledger.ProtocolParams, error) {
	params, err := o.env.Chain.ProtocolParameters(ctx)
	if err != nil {
		return nil, stepError("fetch protocol parameters", "", err)
	}
	return params, nil
}

func (o *Orchestrator) signAndSubmit(ctx context.Context, tx *ledger.UnsignedTx, partial bool) error {
	signed, err := o.env.Signer.SignTx(ctx, tx, partial)
	if err != nil {
		return stepError("sign tx", tx.ID.String(), err)
	}
	sub := &txsubmitter.TxSubmission{TxHash: tx.ID, Transaction: signed}
	batch := sub.ToBatch(o.env.Chain).WithPolling(o.env.PollInterval, o.env.ConfirmTimeout)
	if err := batch.SendTx(ctx, false); err != nil {
		return stepError("submit tx", tx.ID.String(), err)
	}
	if !o.env.Confirm {
		return nil
	}
	if err := batch.ConfirmTxs(ctx); err != nil {
		for _, s := range batch.Submissions() {
			if !s.Confirmed {
				log.Warning("tx %s was submitted but is not confirmed", s.TxHash)
			}
		}
		return stepError("confirm tx", tx.ID.String(), err)
	}
	return nil
}
