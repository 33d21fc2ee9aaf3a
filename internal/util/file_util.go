package util

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func ReadJsonFile[T any](path string, res *T) (*T, error) {
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(bytes, res); err != nil {
		return nil, err
	}
	return res, nil
}

// WriteSecretFile writes data readable by the owner only, refusing to
// overwrite an existing file.
func WriteSecretFile(path string, data []byte) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return errors.Join(err, f.Close())
	}
	return f.Close()
}
