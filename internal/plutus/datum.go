package plutus

// DefaultRedeemerMessage is the payload of the unlock redeemer unless
// configured otherwise.
const DefaultRedeemerMessage = "Hello, World!"

// NewLockDatum returns the datum attached to locked funds, constructor 0
// holding the payment key hash of the party allowed to unlock.
func NewLockDatum(authorizer []byte) Data {
	return NewConstr(0, NewBytes(authorizer))
}

// NewUnlockRedeemer returns constructor 0 holding payload.
func NewUnlockRedeemer(payload []byte) Data {
	return NewConstr(0, NewBytes(payload))
}

// PayeeParameter encodes payee key hashes as a list of byte strings keeping
// their order.
func PayeeParameter(hashes [][]byte) Data {
	items := make([]Data, len(hashes))
	for i, h := range hashes {
		items[i] = NewBytes(h)
	}
	return NewList(items...)
}
