package account

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/alphabill-org/payment-splitter/internal/crypto"
	"github.com/alphabill-org/payment-splitter/internal/util"
)

var (
	payeesBucket = []byte("payees")
	metaBucket   = []byte("meta")

	payeeKeysName      = []byte("payeeKeys")
	isEncryptedKeyName = []byte("isEncryptedKey")
	payeeCountKeyName  = []byte("payeeCountKey")
	signerKeyName      = []byte("signerKey")

	errPayeeNotFound = errors.New("payee does not exist")
)

const AccountFileName = "accounts.db"

type Db interface {
	Do() TxContext
	WithTransaction(func(tx TxContext) error) error
	Close() error
}

type TxContext interface {
	AddPayee(index uint64, keys *Keys) error
	GetPayeeKeys(index uint64) (*Keys, error)
	GetAllPayeeKeys() ([]*Keys, error)
	GetPayeeCount() (uint64, error)
	SetPayeeCount(count uint64) error

	GetSignerIndex() (uint64, error)
	SetSignerIndex(index uint64) error

	IsEncrypted() (bool, error)
	SetEncrypted(encrypted bool) error
	VerifyPassword() (bool, error)
}

type adb struct {
	db         *bolt.DB
	dbFilePath string
	password   string
}

type adbtx struct {
	adb *adb
	tx  *bolt.Tx
}

func (a *adbtx) AddPayee(index uint64, keys *Keys) error {
	return a.withTx(a.tx, func(tx *bolt.Tx) error {
		val, err := json.Marshal(keys)
		if err != nil {
			return err
		}
		val, err = a.encryptValue(val)
		if err != nil {
			return err
		}
		payeeBucket, err := tx.Bucket(payeesBucket).CreateBucketIfNotExists(util.Uint64ToBytes(index))
		if err != nil {
			return err
		}
		return payeeBucket.Put(payeeKeysName, val)
	}, true)
}

func (a *adbtx) GetPayeeKeys(index uint64) (*Keys, error) {
	var keys *Keys
	err := a.withTx(a.tx, func(tx *bolt.Tx) error {
		bkt, err := getPayeeBucket(tx, util.Uint64ToBytes(index))
		if err != nil {
			return err
		}
		keys, err = a.decodeKeys(bkt.Get(payeeKeysName))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// GetAllPayeeKeys returns keys of all payees ordered by payee index.
func (a *adbtx) GetAllPayeeKeys() ([]*Keys, error) {
	var res []*Keys
	err := a.withTx(a.tx, func(tx *bolt.Tx) error {
		// bucket keys are big endian indexes, iteration order is the payee order
		return tx.Bucket(payeesBucket).ForEach(func(index, v []byte) error {
			if v != nil { // v is nil if entry is a bucket
				return nil
			}
			bkt, err := getPayeeBucket(tx, index)
			if err != nil {
				return err
			}
			keys, err := a.decodeKeys(bkt.Get(payeeKeysName))
			if err != nil {
				return fmt.Errorf("payee %d: %w", util.BytesToUint64(index), err)
			}
			res = append(res, keys)
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (a *adbtx) decodeKeys(val []byte) (*Keys, error) {
	decrypted, err := a.decryptValue(val)
	if err != nil {
		return nil, err
	}
	var keys *Keys
	if err := json.Unmarshal(decrypted, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func (a *adbtx) SetPayeeCount(count uint64) error {
	return a.withTx(a.tx, func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put(payeeCountKeyName, util.Uint64ToBytes(count))
	}, true)
}

func (a *adbtx) GetPayeeCount() (uint64, error) {
	var res uint64
	err := a.withTx(a.tx, func(tx *bolt.Tx) error {
		if count := tx.Bucket(metaBucket).Get(payeeCountKeyName); count != nil {
			res = util.BytesToUint64(count)
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	return res, nil
}

func (a *adbtx) SetSignerIndex(index uint64) error {
	return a.withTx(a.tx, func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put(signerKeyName, util.Uint64ToBytes(index))
	}, true)
}

// GetSignerIndex returns the index of the payee locking and unlocking
// funds, the first payee unless set otherwise.
func (a *adbtx) GetSignerIndex() (uint64, error) {
	var res uint64
	err := a.withTx(a.tx, func(tx *bolt.Tx) error {
		if idx := tx.Bucket(metaBucket).Get(signerKeyName); idx != nil {
			res = util.BytesToUint64(idx)
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	return res, nil
}

func (a *adbtx) SetEncrypted(encrypted bool) error {
	return a.withTx(a.tx, func(tx *bolt.Tx) error {
		var b byte
		if encrypted {
			b = 0x01
		}
		return tx.Bucket(metaBucket).Put(isEncryptedKeyName, []byte{b})
	}, true)
}

func (a *adbtx) IsEncrypted() (bool, error) {
	var res bool
	err := a.withTx(a.tx, func(tx *bolt.Tx) error {
		encrypted := tx.Bucket(metaBucket).Get(isEncryptedKeyName)
		res = bytes.Equal(encrypted, []byte{0x01})
		return nil
	}, false)
	if err != nil {
		return false, err
	}
	return res, nil
}

func (a *adbtx) VerifyPassword() (bool, error) {
	encrypted, err := a.IsEncrypted()
	if err != nil {
		return false, err
	}
	if !encrypted {
		return true, nil
	}
	if _, err := a.GetAllPayeeKeys(); err != nil {
		if errors.Is(err, crypto.ErrDecryptingValue) || errors.Is(err, crypto.ErrInvalidCiphertext) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func getPayeeBucket(tx *bolt.Tx, index []byte) (*bolt.Bucket, error) {
	bkt := tx.Bucket(payeesBucket).Bucket(index)
	if bkt == nil {
		return nil, errPayeeNotFound
	}
	return bkt, nil
}

func (a *adbtx) encryptValue(val []byte) ([]byte, error) {
	isEncrypted, err := a.IsEncrypted()
	if err != nil {
		return nil, err
	}
	if !isEncrypted {
		return val, nil
	}
	encryptedValue, err := crypto.Encrypt(a.adb.password, val)
	if err != nil {
		return nil, err
	}
	return []byte(encryptedValue), nil
}

func (a *adbtx) decryptValue(val []byte) ([]byte, error) {
	isEncrypted, err := a.IsEncrypted()
	if err != nil {
		return nil, err
	}
	if !isEncrypted {
		return val, nil
	}
	return crypto.Decrypt(a.adb.password, string(val))
}

func openDb(dbFilePath string, pw string, create bool) (*adb, error) {
	exists := util.FileExists(dbFilePath)
	if create && exists {
		return nil, fmt.Errorf("cannot create account db, file (%s) already exists", dbFilePath)
	} else if !create && !exists {
		return nil, fmt.Errorf("%w: file (%s) does not exist", ErrAccountsNotFound, dbFilePath)
	}

	db, err := bolt.Open(dbFilePath, 0600, &bolt.Options{Timeout: 3 * time.Second}) // -rw-------
	if err != nil {
		return nil, err
	}

	a := &adb{db, dbFilePath, pw}
	if err = a.createBuckets(); err != nil {
		return nil, errors.Join(err, a.Close())
	}

	if create {
		if err := a.Do().SetEncrypted(pw != ""); err != nil {
			return nil, errors.Join(err, a.Close())
		}
	}
	return a, nil
}

func (a *adb) Close() error {
	if a.db == nil {
		return nil
	}
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("closing db: %w", err)
	}
	return nil
}

func (a *adb) WithTransaction(fn func(txc TxContext) error) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		return fn(&adbtx{adb: a, tx: tx})
	})
}

func (a *adb) Do() TxContext {
	return &adbtx{adb: a, tx: nil}
}

func createNewDb(dir string, pw string) (*adb, error) {
	if err := os.MkdirAll(dir, 0700); err != nil { // -rwx------
		return nil, err
	}
	return openDb(filepath.Join(dir, AccountFileName), pw, true)
}

func (a *adb) createBuckets() error {
	return a.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{payeesBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *adbtx) withTx(dbTx *bolt.Tx, myFunc func(tx *bolt.Tx) error, writeTx bool) error {
	if dbTx != nil {
		return myFunc(dbTx)
	} else if writeTx {
		return a.adb.db.Update(myFunc)
	} else {
		return a.adb.db.View(myFunc)
	}
}
