// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package fsutil resolves the paths of the matrix files read and written by spamm.
package fsutil

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ExpandHome replaces a leading "~" or "~user" in path by the home directory of the user.
// Other paths are returned unchanged.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	rest := path[1:]
	userName, tail, _ := strings.Cut(rest, string(filepath.Separator))
	var (
		usr *user.User
		err error
	)
	if userName == "" {
		usr, err = user.Current()
	} else {
		usr, err = user.Lookup(userName)
	}
	if err != nil {
		return "", errors.Wrapf(err, "looking up home directory for %q", path)
	}
	return filepath.Join(usr.HomeDir, tail), nil
}

// FileExists returns whether path exists, or an error if the file system failed to tell.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrapf(err, "stat %q", path)
}

// CreateFile expands path and creates the file, creating its parent directories if needed.
// It returns the expanded path along with the file.
func CreateFile(path string) (*os.File, string, error) {
	path, err := ExpandHome(path)
	if err != nil {
		return nil, "", err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, path, errors.Wrapf(err, "creating directory %q", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, path, errors.Wrapf(err, "creating %q", path)
	}
	return f, path, nil
}

// OpenFile expands path and opens it for reading.
func OpenFile(path string) (*os.File, string, error) {
	path, err := ExpandHome(path)
	if err != nil {
		return nil, "", err
	}
	exists, err := FileExists(path)
	if err != nil {
		return nil, path, err
	}
	if !exists {
		return nil, path, errors.Wrapf(os.ErrNotExist, "file %q", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, path, errors.Wrapf(err, "opening %q", path)
	}
	return f, path, nil
}
