package file

import (
	"errors"
	"os"
	"path/filepath"
)

var errEmptyPath = errors.New("file path is empty")

// Exists returns whether or not a file or path exists
func Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// Write writes selected data to a file or returns an error if it fails. This
// func also ensures that all files are set to this permission (only rw access
// for the running user and the group the user is a member of)
func Write(file string, data []byte) error {
	if file == "" {
		return errEmptyPath
	}
	basePath := filepath.Dir(file)
	if !Exists(basePath) {
		if err := os.MkdirAll(basePath, 0o770); err != nil {
			return err
		}
	}
	return os.WriteFile(file, data, 0o660)
}

// WriteSafe writes the data to a temporary file first and renames it into
// place so readers never observe a partially written file
func WriteSafe(file string, data []byte) error {
	if file == "" {
		return errEmptyPath
	}
	basePath := filepath.Dir(file)
	if !Exists(basePath) {
		if err := os.MkdirAll(basePath, 0o770); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(basePath, filepath.Base(file)+".tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	_, err = tmp.Write(data)
	if cErr := tmp.Close(); cErr != nil && err == nil {
		err = cErr
	}
	if err != nil {
		os.Remove(tmpName)
		return err
	}
	if err = os.Rename(tmpName, file); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
