package account

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/alphabill-org/payment-splitter/internal/ledger"
	"github.com/alphabill-org/payment-splitter/internal/logger"
)

type (
	// Manager manages payee keys
	Manager interface {
		CreatePayees(count uint64) ([]Payee, error)
		ImportPayee(mnemonic string) (Payee, error)
		GetPayees() []Payee
		GetPayeeKeys(index uint64) (*Keys, error)
		GetMnemonic(index uint64) (string, error)
		SignerIndex() (uint64, error)
		SetSignerIndex(index uint64) error
		Signer(network ledger.Network) (*Signer, error)
		IsEncrypted() (bool, error)
		Close()
	}

	managerImpl struct {
		db       Db
		dir      string
		payees   *payees
		password string
	}
)

var (
	ErrInvalidPassword  = errors.New("invalid password")
	ErrAccountsNotFound = errors.New("account store not found")
	ErrPayeesExist      = errors.New("payees already exist")
	ErrPayeeNotFound    = errPayeeNotFound

	log = logger.CreateForPackage()
)

func NewAccountManager(dir string, password string, create bool) (Manager, error) {
	return newManager(dir, password, create)
}

func newManager(dir string, password string, create bool) (*managerImpl, error) {
	db, err := getDb(dir, create, password)
	if err != nil {
		return nil, err
	}
	ok, err := db.Do().VerifyPassword()
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	if !ok {
		return nil, errors.Join(ErrInvalidPassword, db.Close())
	}

	keys, err := db.Do().GetAllPayeeKeys()
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	p := &payees{}
	for idx, k := range keys {
		p.add(newPayee(uint64(idx), k))
	}
	return &managerImpl{db: db, dir: dir, payees: p, password: password}, nil
}

// CreatePayees generates count payees, each with its own mnemonic.
func (m *managerImpl) CreatePayees(count uint64) ([]Payee, error) {
	if count == 0 {
		return nil, errors.New("payee count must be positive")
	}
	existing, err := m.db.Do().GetPayeeCount()
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, fmt.Errorf("%w: %d payees in %s", ErrPayeesExist, existing, m.dir)
	}

	created := make([]Payee, 0, count)
	err = m.db.WithTransaction(func(tx TxContext) error {
		for i := uint64(0); i < count; i++ {
			keys, err := NewKeys("")
			if err != nil {
				return err
			}
			if err := tx.AddPayee(i, keys); err != nil {
				return err
			}
			created = append(created, newPayee(i, keys))
		}
		return tx.SetPayeeCount(count)
	})
	if err != nil {
		return nil, fmt.Errorf("creating payees: %w", err)
	}
	for _, p := range created {
		m.payees.add(p)
	}
	log.Info("created %d payees", count)
	return created, nil
}

// ImportPayee appends a payee restored from mnemonic.
func (m *managerImpl) ImportPayee(mnemonic string) (Payee, error) {
	keys, err := NewKeys(mnemonic)
	if err != nil {
		return Payee{}, err
	}
	var payee Payee
	err = m.db.WithTransaction(func(tx TxContext) error {
		index, err := tx.GetPayeeCount()
		if err != nil {
			return err
		}
		if err := tx.AddPayee(index, keys); err != nil {
			return err
		}
		payee = newPayee(index, keys)
		return tx.SetPayeeCount(index + 1)
	})
	if err != nil {
		return Payee{}, fmt.Errorf("importing payee: %w", err)
	}
	m.payees.add(payee)
	return payee, nil
}

func (m *managerImpl) GetPayees() []Payee {
	return m.payees.getAll()
}

func (m *managerImpl) GetPayeeKeys(index uint64) (*Keys, error) {
	keys, err := m.db.Do().GetPayeeKeys(index)
	if err != nil {
		return nil, fmt.Errorf("payee %d: %w", index, err)
	}
	return keys, nil
}

func (m *managerImpl) GetMnemonic(index uint64) (string, error) {
	keys, err := m.GetPayeeKeys(index)
	if err != nil {
		return "", err
	}
	return keys.Mnemonic, nil
}

func (m *managerImpl) SignerIndex() (uint64, error) {
	return m.db.Do().GetSignerIndex()
}

func (m *managerImpl) SetSignerIndex(index uint64) error {
	if _, err := m.GetPayeeKeys(index); err != nil {
		return err
	}
	return m.db.Do().SetSignerIndex(index)
}

// Signer returns the signer of the payee locking and unlocking funds.
func (m *managerImpl) Signer(network ledger.Network) (*Signer, error) {
	index, err := m.SignerIndex()
	if err != nil {
		return nil, err
	}
	keys, err := m.GetPayeeKeys(index)
	if err != nil {
		return nil, err
	}
	return NewSigner(keys, network)
}

func (m *managerImpl) IsEncrypted() (bool, error) {
	return m.db.Do().IsEncrypted()
}

func (m *managerImpl) Close() {
	if err := m.db.Close(); err != nil {
		log.Warning("closing account db: %v", err)
	}
}

func getDb(dir string, create bool, pw string) (Db, error) {
	if create {
		return createNewDb(dir, pw)
	}
	return openDb(filepath.Join(dir, AccountFileName), pw, false)
}
