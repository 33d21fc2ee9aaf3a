package koios

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strconv"

	"github.com/alphabill-org/payment-splitter/internal/ledger"
)

type (
	addressesRequest struct {
		Addresses []string `json:"_addresses"`
		Extended  bool     `json:"_extended,omitempty"`
	}

	txHashesRequest struct {
		TxHashes []string `json:"_tx_hashes"`
	}

	utxoResponse struct {
		TxHash      string         `json:"tx_hash"`
		TxIndex     uint32         `json:"tx_index"`
		Address     string         `json:"address"`
		Value       string         `json:"value"`
		DatumHash   *string        `json:"datum_hash"`
		InlineDatum *inlineDatum   `json:"inline_datum"`
		AssetList   []assetBalance `json:"asset_list"`
		IsSpent     bool           `json:"is_spent"`
	}

	inlineDatum struct {
		Bytes string `json:"bytes"`
	}

	assetBalance struct {
		PolicyID  string `json:"policy_id"`
		AssetName string `json:"asset_name"`
		Quantity  string `json:"quantity"`
	}

	addressInfoResponse struct {
		Address string `json:"address"`
		Balance string `json:"balance"`
	}

	txStatusResponse struct {
		TxHash           string  `json:"tx_hash"`
		NumConfirmations *uint64 `json:"num_confirmations"`
	}

	// protocolParamsResponse is the cardano-cli protocol parameters document
	protocolParamsResponse struct {
		TxFeePerByte        uint64 `json:"txFeePerByte"`
		TxFeeFixed          uint64 `json:"txFeeFixed"`
		UTxOCostPerByte     uint64 `json:"utxoCostPerByte"`
		MaxTxSize           uint64 `json:"maxTxSize"`
		CollateralPercent   uint64 `json:"collateralPercentage"`
		MaxCollateralInputs int    `json:"maxCollateralInputs"`
		ExecutionUnitPrices struct {
			PriceMemory json.Number `json:"priceMemory"`
			PriceSteps  json.Number `json:"priceSteps"`
		} `json:"executionUnitPrices"`
		MaxTxExecutionUnits struct {
			Memory uint64 `json:"memory"`
			Steps  uint64 `json:"steps"`
		} `json:"maxTxExecutionUnits"`
		CostModels map[string]json.RawMessage `json:"costModels"`
	}
)

var languageIDs = map[string]uint8{
	"PlutusV1":       0,
	"PlutusScriptV1": 0,
	"PlutusV2":       1,
	"PlutusScriptV2": 1,
	"PlutusV3":       2,
	"PlutusScriptV3": 2,
}

func (u *utxoResponse) toUTxO() (ledger.UTxO, error) {
	txID, err := ledger.ParseTxHash(u.TxHash)
	if err != nil {
		return ledger.UTxO{}, err
	}
	addr, err := ledger.ParseAddress(u.Address)
	if err != nil {
		return ledger.UTxO{}, err
	}
	amount, err := strconv.ParseUint(u.Value, 10, 64)
	if err != nil {
		return ledger.UTxO{}, fmt.Errorf("invalid value %q: %w", u.Value, err)
	}
	res := ledger.UTxO{
		Input:  ledger.Input{TxID: txID, Index: u.TxIndex},
		Output: ledger.Output{Address: addr, Amount: amount},
	}
	if u.DatumHash != nil && *u.DatumHash != "" {
		if res.DatumHash, err = hex.DecodeString(*u.DatumHash); err != nil {
			return ledger.UTxO{}, fmt.Errorf("invalid datum hash: %w", err)
		}
	}
	if u.InlineDatum != nil && u.InlineDatum.Bytes != "" {
		if res.InlineDatum, err = hex.DecodeString(u.InlineDatum.Bytes); err != nil {
			return ledger.UTxO{}, fmt.Errorf("invalid inline datum: %w", err)
		}
	}
	for _, a := range u.AssetList {
		asset, err := a.toAsset()
		if err != nil {
			return ledger.UTxO{}, err
		}
		res.Assets = append(res.Assets, asset)
	}
	return res, nil
}

func (a *assetBalance) toAsset() (ledger.Asset, error) {
	policy, err := hex.DecodeString(a.PolicyID)
	if err != nil {
		return ledger.Asset{}, fmt.Errorf("invalid policy id: %w", err)
	}
	name, err := hex.DecodeString(a.AssetName)
	if err != nil {
		return ledger.Asset{}, fmt.Errorf("invalid asset name: %w", err)
	}
	qty, err := strconv.ParseUint(a.Quantity, 10, 64)
	if err != nil {
		return ledger.Asset{}, fmt.Errorf("invalid asset quantity %q: %w", a.Quantity, err)
	}
	return ledger.Asset{PolicyID: policy, Name: name, Quantity: qty}, nil
}

func (p *protocolParamsResponse) toProtocolParams() (*ledger.ProtocolParams, error) {
	priceMem, ok := new(big.Rat).SetString(p.ExecutionUnitPrices.PriceMemory.String())
	if !ok {
		return nil, fmt.Errorf("invalid memory price %q", p.ExecutionUnitPrices.PriceMemory)
	}
	priceSteps, ok := new(big.Rat).SetString(p.ExecutionUnitPrices.PriceSteps.String())
	if !ok {
		return nil, fmt.Errorf("invalid step price %q", p.ExecutionUnitPrices.PriceSteps)
	}
	res := &ledger.ProtocolParams{
		MinFeeA:             p.TxFeePerByte,
		MinFeeB:             p.TxFeeFixed,
		CoinsPerUTxOByte:    p.UTxOCostPerByte,
		MaxTxSize:           p.MaxTxSize,
		PriceMem:            priceMem,
		PriceSteps:          priceSteps,
		MaxTxExMem:          p.MaxTxExecutionUnits.Memory,
		MaxTxExSteps:        p.MaxTxExecutionUnits.Steps,
		CollateralPercent:   p.CollateralPercent,
		MaxCollateralInputs: p.MaxCollateralInputs,
		CostModels:          map[uint8][]int64{},
	}
	for name, raw := range p.CostModels {
		lang, ok := languageIDs[name]
		if !ok {
			continue
		}
		costs, err := decodeCostModel(raw)
		if err != nil {
			return nil, fmt.Errorf("cost model %s: %w", name, err)
		}
		res.CostModels[lang] = costs
	}
	return res, res.Validate()
}

// decodeCostModel accepts the list form and the older named form, named
// parameters are ordered by name.
func decodeCostModel(raw json.RawMessage) ([]int64, error) {
	var list []int64
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var named map[string]int64
	if err := json.Unmarshal(raw, &named); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(named))
	for n := range named {
		names = append(names, n)
	}
	sort.Strings(names)
	res := make([]int64, 0, len(names))
	for _, n := range names {
		res = append(res, named[n])
	}
	return res, nil
}
