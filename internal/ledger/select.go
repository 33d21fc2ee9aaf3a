package ledger

import (
	"fmt"
	"slices"
	"sort"
)

// SelectLargestFirst picks UTxOs accepted by the filter, largest first,
// until their sum reaches target. At most maxCount UTxOs are picked when
// maxCount is positive.
func SelectLargestFirst(utxos []UTxO, target uint64, maxCount int, accept func(UTxO) bool) ([]UTxO, error) {
	var candidates []UTxO
	for _, u := range utxos {
		if accept == nil || accept(u) {
			candidates = append(candidates, u)
		}
	}
	sortLargestFirst(candidates)

	var selected []UTxO
	var sum uint64
	for _, u := range candidates {
		if sum >= target {
			break
		}
		if maxCount > 0 && len(selected) == maxCount {
			break
		}
		selected = append(selected, u)
		sum += u.Amount
	}
	if sum < target {
		return nil, fmt.Errorf("%w: selected %d lovelace in %d UTxOs, target %d", ErrInsufficientFunds, sum, len(selected), target)
	}
	return selected, nil
}

// IsPureAdaKeyOutput accepts key locked outputs holding only lovelace, the
// kind of outputs usable as collateral.
func IsPureAdaKeyOutput(u UTxO) bool {
	return !u.Address.IsScript() && u.PureAda()
}

func sortLargestFirst(utxos []UTxO) {
	sort.SliceStable(utxos, func(i, j int) bool {
		if utxos[i].Amount != utxos[j].Amount {
			return utxos[i].Amount > utxos[j].Amount
		}
		return utxos[i].Input.less(utxos[j].Input)
	})
}

// WithoutInputs returns the UTxOs not in exclude.
func WithoutInputs(utxos []UTxO, exclude []Input) []UTxO {
	return slices.DeleteFunc(slices.Clone(utxos), func(u UTxO) bool {
		return slices.Contains(exclude, u.Input)
	})
}
