// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/bno055_node/internal/bno055"
)

// Store keeps a calibration record in a file.
type Store struct {
	Path   string
	Logger *zap.SugaredLogger
}

// NewStore returns a store for path. logger may be nil.
func NewStore(path string, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{Path: path, Logger: logger}
}

// Load reads the stored record. ok is false when there is no usable prior
// calibration: the file is missing, unreadable, short or malformed.
func (s *Store) Load() (bno055.Offsets, bool) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger().Infof("no calibration record at %s", s.Path)
		return bno055.Offsets{}, false
	}
	if err != nil {
		s.logger().Warnf("cannot read calibration record %s, starting uncalibrated: %v", s.Path, err)
		return bno055.Offsets{}, false
	}
	o, err := Unmarshal(b)
	if err != nil {
		s.logger().Warnf("ignoring calibration record %s: %v", s.Path, err)
		return bno055.Offsets{}, false
	}
	return o, true
}

// Save replaces the stored record with o. The file is written to a temporary
// name in the same directory and renamed into place.
func (s *Store) Save(o bno055.Offsets) (err error) {
	dir := filepath.Dir(s.Path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".*")
	if err != nil {
		return fmt.Errorf("save calibration record: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			err = multierr.Append(err, ignoreNotExist(os.Remove(tmp)))
		}
	}()

	if _, err = f.Write(Marshal(o)); err != nil {
		return multierr.Append(fmt.Errorf("save calibration record: %w", err), f.Close())
	}
	if err = f.Sync(); err != nil {
		return multierr.Append(fmt.Errorf("save calibration record: %w", err), f.Close())
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("save calibration record: %w", err)
	}
	if err = os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("save calibration record: %w", err)
	}
	s.logger().Infof("calibration saved to %s", s.Path)
	return nil
}

// Delete removes the stored record. Deleting a missing record is not an
// error.
func (s *Store) Delete() error {
	if err := ignoreNotExist(os.Remove(s.Path)); err != nil {
		return fmt.Errorf("delete calibration record: %w", err)
	}
	s.logger().Infof("calibration record %s deleted", s.Path)
	return nil
}

func (s *Store) logger() *zap.SugaredLogger {
	if s.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return s.Logger
}

func ignoreNotExist(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
