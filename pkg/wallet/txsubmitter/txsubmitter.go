package txsubmitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alphabill-org/payment-splitter/internal/ledger"
	"github.com/alphabill-org/payment-splitter/internal/logger"
)

const defaultPollInterval = 5 * time.Second

var (
	ErrConfirmationTimeout = errors.New("confirmation timeout")

	log = logger.CreateForPackage()
)

type (
	TxSubmission struct {
		TxHash      ledger.TxHash
		Transaction []byte
		Confirmed   bool
	}

	TxSubmissionBatch struct {
		submissions  []*TxSubmission
		backend      BackendAPI
		pollInterval time.Duration
		maxWait      time.Duration
	}

	BackendAPI interface {
		Submit(ctx context.Context, tx []byte) (ledger.TxHash, error)
		// TxConfirmed returns true once the transaction is included in a block.
		TxConfirmed(ctx context.Context, txHash ledger.TxHash) (bool, error)
	}
)

func (s *TxSubmission) ToBatch(backend BackendAPI) *TxSubmissionBatch {
	b := NewBatch(backend)
	b.Add(s)
	return b
}

func NewBatch(backend BackendAPI) *TxSubmissionBatch {
	return &TxSubmissionBatch{
		backend:      backend,
		pollInterval: defaultPollInterval,
	}
}

// WithPolling sets the confirmation poll interval and the maximum wait, zero
// maxWait waits until the context is done.
func (t *TxSubmissionBatch) WithPolling(interval, maxWait time.Duration) *TxSubmissionBatch {
	if interval > 0 {
		t.pollInterval = interval
	}
	t.maxWait = maxWait
	return t
}

func (t *TxSubmissionBatch) Add(sub *TxSubmission) {
	t.submissions = append(t.submissions, sub)
}

func (t *TxSubmissionBatch) Submissions() []*TxSubmission {
	return t.submissions
}

// SendTx submits the transactions in order and optionally waits until all
// of them are confirmed.
func (t *TxSubmissionBatch) SendTx(ctx context.Context, confirmTx bool) error {
	if len(t.submissions) == 0 {
		return errors.New("no transactions to send")
	}
	for _, sub := range t.submissions {
		l := log.With("tx", sub.TxHash.String())
		txHash, err := t.backend.Submit(ctx, sub.Transaction)
		if err != nil {
			return fmt.Errorf("submitting tx %s: %w", sub.TxHash, err)
		}
		if txHash != sub.TxHash {
			l.Warning("ledger returned tx hash %s", txHash)
		}
		l.Info("submitted %d bytes", len(sub.Transaction))
	}
	if confirmTx {
		return t.ConfirmTxs(ctx)
	}
	return nil
}

// ConfirmTxs polls the backend until every submitted transaction is in a
// block. ErrConfirmationTimeout is returned when the maximum wait passes.
func (t *TxSubmissionBatch) ConfirmTxs(ctx context.Context) error {
	log.Info("Confirming submitted transactions")
	if t.maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.maxWait)
		defer cancel()
	}
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		unconfirmed := false
		for _, sub := range t.submissions {
			if sub.Confirmed {
				continue
			}
			ok, err := t.backend.TxConfirmed(ctx, sub.TxHash)
			if err != nil {
				if ctx.Err() != nil {
					unconfirmed = true
					break
				}
				return err
			}
			if ok {
				log.Debug("tx %s is confirmed", sub.TxHash)
				sub.Confirmed = true
			}
			unconfirmed = unconfirmed || !sub.Confirmed
		}
		if !unconfirmed {
			log.Info("All transactions confirmed")
			return nil
		}

		select {
		case <-ctx.Done():
			for _, sub := range t.submissions {
				if !sub.Confirmed {
					log.Info("tx %s not confirmed", sub.TxHash)
				}
			}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrConfirmationTimeout
			}
			return fmt.Errorf("confirming transactions interrupted: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
