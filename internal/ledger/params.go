package ledger

import (
	"errors"
	"math/big"
)

const (
	// per output overhead of the min UTxO rule, in bytes
	utxoEntryOverhead = 160

	DefaultRedeemerMem   = 7_000_000
	DefaultRedeemerSteps = 3_000_000_000
)

// ProtocolParams are the ledger parameters transaction building depends on.
type ProtocolParams struct {
	MinFeeA             uint64
	MinFeeB             uint64
	CoinsPerUTxOByte    uint64
	MaxTxSize           uint64
	PriceMem            *big.Rat
	PriceSteps          *big.Rat
	MaxTxExMem          uint64
	MaxTxExSteps        uint64
	CollateralPercent   uint64
	MaxCollateralInputs int
	CostModels          map[uint8][]int64
}

type ExUnits struct {
	Mem   uint64
	Steps uint64
}

func (p *ProtocolParams) Validate() error {
	if p == nil {
		return errors.New("protocol parameters are nil")
	}
	if p.MinFeeA == 0 && p.MinFeeB == 0 {
		return errors.New("fee parameters are not set")
	}
	if p.CoinsPerUTxOByte == 0 {
		return errors.New("coins per UTxO byte is not set")
	}
	if p.PriceMem == nil || p.PriceSteps == nil {
		return errors.New("execution unit prices are not set")
	}
	return nil
}

// Fee returns the minimum fee for a transaction of the given size spending
// the given execution budget.
func (p *ProtocolParams) Fee(txSize int, units ExUnits) uint64 {
	fee := p.MinFeeA*uint64(txSize) + p.MinFeeB
	if units.Mem == 0 && units.Steps == 0 {
		return fee
	}
	script := new(big.Rat).Mul(p.PriceMem, new(big.Rat).SetInt64(int64(units.Mem)))
	script.Add(script, new(big.Rat).Mul(p.PriceSteps, new(big.Rat).SetInt64(int64(units.Steps))))
	// ceiling of the script fee
	q, r := new(big.Int).QuoRem(script.Num(), script.Denom(), new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return fee + q.Uint64()
}

// RedeemerBudget returns the execution units assigned to each of n
// redeemers when the scripts are not evaluated. The default budget is
// lowered so that the transaction stays within the per transaction limit.
func (p *ProtocolParams) RedeemerBudget(n int) ExUnits {
	units := ExUnits{Mem: DefaultRedeemerMem, Steps: DefaultRedeemerSteps}
	if n == 0 {
		return units
	}
	if p.MaxTxExMem > 0 {
		units.Mem = min(units.Mem, p.MaxTxExMem/uint64(n))
	}
	if p.MaxTxExSteps > 0 {
		units.Steps = min(units.Steps, p.MaxTxExSteps/uint64(n))
	}
	return units
}

// MinCollateral returns the collateral required for a transaction paying
// the given fee.
func (p *ProtocolParams) MinCollateral(fee uint64) uint64 {
	c := fee * p.CollateralPercent
	return (c + 99) / 100
}
