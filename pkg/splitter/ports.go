package splitter

import (
	"context"

	"github.com/alphabill-org/payment-splitter/internal/ledger"
)

type (
	// ChainProvider reads ledger state and accepts signed transactions.
	ChainProvider interface {
		FetchUTxOs(ctx context.Context, addr ledger.Address) ([]ledger.UTxO, error)
		FetchBalance(ctx context.Context, addr ledger.Address) (uint64, error)
		ProtocolParameters(ctx context.Context) (*ledger.ProtocolParams, error)
		Submit(ctx context.Context, tx []byte) (ledger.TxHash, error)
		TxConfirmed(ctx context.Context, txHash ledger.TxHash) (bool, error)
	}

	// Signer owns the key locking and unlocking funds.
	Signer interface {
		Address() ledger.Address
		PaymentKeyHash() ledger.KeyHash
		// SignTx returns the serialized signed transaction. Partial allows
		// other required witnesses to be missing.
		SignTx(ctx context.Context, tx *ledger.UnsignedTx, partial bool) ([]byte, error)
	}

	// Assembler balances drafts into transactions ready for signing.
	Assembler interface {
		Assemble(draft *ledger.TxDraft, wallet []ledger.UTxO, params *ledger.ProtocolParams) (*ledger.UnsignedTx, error)
	}
)
