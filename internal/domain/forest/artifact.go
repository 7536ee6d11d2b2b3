package forest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FormatVersion identifies the JSON artifact layout.
const FormatVersion = 1

// File permission constants.
const (
	modelDirPermission  = 0o755
	modelFilePermission = 0o644
)

// Save writes the fitted forest as JSON. The file is written to a temporary
// name in the same directory and renamed, so readers never observe a partial
// artifact.
func (f *Forest) Save(path string) error {
	if len(f.Trees) == 0 {
		return ErrNotFitted
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, modelDirPermission); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model: %w", err)
	}
	if err := os.Chmod(tmpName, modelFilePermission); err != nil {
		return fmt.Errorf("chmod model: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename model: %w", err)
	}
	return nil
}

// Load reads and validates a forest artifact.
func Load(path string) (*Forest, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var f Forest
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, fmt.Errorf("decode model: %v: %w", err, ErrCorrupt)
	}
	if f.Version != FormatVersion {
		return nil, fmt.Errorf("format version %d, want %d: %w", f.Version, FormatVersion, ErrIncompatible)
	}
	if f.Classes != binaryClasses {
		return nil, fmt.Errorf("%d classes, want %d: %w", f.Classes, binaryClasses, ErrIncompatible)
	}
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("no trees: %w", ErrCorrupt)
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(len(f.FeatureNames), f.Classes); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	f.workers = 1
	return &f, nil
}
