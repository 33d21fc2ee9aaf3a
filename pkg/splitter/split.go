package splitter

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/payment-splitter/internal/util"
)

var ErrDivisionByZero = errors.New("payee count is zero")

// SplitPlan is the equal share of every payee. PerPayeeAmount*PayeeCount
// never exceeds TotalConsumed, the rest is left to fee and change.
type SplitPlan struct {
	PerPayeeAmount uint64
	PayeeCount     uint64
	TotalConsumed  uint64
}

// ComputeSplit divides total equally, rounding down.
func ComputeSplit(total, payeeCount uint64) (*SplitPlan, error) {
	if payeeCount == 0 {
		return nil, ErrDivisionByZero
	}
	return &SplitPlan{
		PerPayeeAmount: total / payeeCount,
		PayeeCount:     payeeCount,
		TotalConsumed:  total,
	}, nil
}

// ComputeSplitPerUTxO rounds down the share of every UTxO separately and adds
// the shares up, so the remainder grows with the number of UTxOs.
func ComputeSplitPerUTxO(amounts []uint64, payeeCount uint64) (*SplitPlan, error) {
	if payeeCount == 0 {
		return nil, ErrDivisionByZero
	}
	shares := make([]uint64, len(amounts))
	for i, a := range amounts {
		shares[i] = a / payeeCount
	}
	perPayee, _, err := util.AddUint64(shares...)
	if err != nil {
		return nil, fmt.Errorf("summing shares: %w", err)
	}
	total, _, err := util.AddUint64(amounts...)
	if err != nil {
		return nil, fmt.Errorf("summing UTxO amounts: %w", err)
	}
	return &SplitPlan{
		PerPayeeAmount: perPayee,
		PayeeCount:     payeeCount,
		TotalConsumed:  total,
	}, nil
}

// Distributed returns the amount paid to payees.
func (p *SplitPlan) Distributed() uint64 {
	return p.PerPayeeAmount * p.PayeeCount
}

// Remainder returns the part of the consumed amount not paid to payees.
func (p *SplitPlan) Remainder() uint64 {
	return p.TotalConsumed - p.Distributed()
}
