// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package fsutil contains utilities for the paths of configuration files.
package fsutil

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// FileExists returns whether the file exists, or an error if something went wrong in the filesystem.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrapf(err, "checking %q", path)
}

// ExpandHome replaces a leading "~" or "~user" in path by the home directory.
// Other paths are returned unchanged.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	userName, rest, _ := strings.Cut(path[1:], "/")
	var home string
	if userName == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return "", errors.Wrapf(err, "expanding %q", path)
		}
	} else {
		usr, err := user.Lookup(userName)
		if err != nil {
			return "", errors.Wrapf(err, "expanding %q", path)
		}
		home = usr.HomeDir
	}
	return filepath.Join(home, rest), nil
}

// ReadFile reads the file at path, after ExpandHome.
func ReadFile(path string) ([]byte, error) {
	expanded, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}
	exists, err := FileExists(expanded)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.Errorf("file %q not found", expanded)
	}
	data, err := os.ReadFile(expanded)
	return data, errors.Wrapf(err, "reading %q", expanded)
}
