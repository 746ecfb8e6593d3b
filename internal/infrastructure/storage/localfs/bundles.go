package localfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/bundle"
	"github.com/kirillkom/koi-classifier/internal/core/ml/classifier"
	"github.com/kirillkom/koi-classifier/internal/core/ml/transform"
)

var errNoBundle = errors.New("no bundle has been saved")

const (
	bundlesDir   = "bundles"
	stagingDir   = "staging"
	currentFile  = "CURRENT"
	imputerFile  = "imputer.json"
	scalerFile   = "scaler.json"
	selectorFile = "selector.json"
	modelFile    = "model.json"
	manifestFile = "manifest.yaml"
)

// BundleStore keeps artifact bundles under <dir>/bundles/<run-id>. The CURRENT
// file names the active bundle and is only ever replaced by rename, after the
// bundle directory is complete.
type BundleStore struct {
	dir string
	mu  sync.Mutex
}

func NewBundleStore(dir string) (*BundleStore, error) {
	if dir == "" {
		dir = "./data/artifacts"
	}
	for _, sub := range []string{bundlesDir, stagingDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create artifact dir: %w", err)
		}
	}
	return &BundleStore{dir: dir}, nil
}

func (s *BundleStore) Save(ctx context.Context, b *bundle.Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	runID := b.Manifest.RunID
	if !validRunID(runID) {
		return domain.WrapError(domain.ErrInvalidInput, "save bundle", fmt.Errorf("invalid run id %q", runID))
	}
	files, err := encodeBundle(b)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	final := filepath.Join(s.dir, bundlesDir, runID)
	if _, err := os.Stat(final); err == nil {
		return fmt.Errorf("bundle %s already exists", runID)
	}

	staging := filepath.Join(s.dir, stagingDir, runID+"-"+uuid.NewString())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	for name, data := range files {
		if err := writeFileSynced(filepath.Join(staging, name), data); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := syncDir(staging); err != nil {
		return err
	}
	if err := os.Rename(staging, final); err != nil {
		return fmt.Errorf("publish bundle: %w", err)
	}

	previous, _ := s.current()
	if err := writeFileAtomic(filepath.Join(s.dir, currentFile), strings.NewReader(runID+"\n")); err != nil {
		return fmt.Errorf("switch current bundle: %w", err)
	}
	s.prune(runID, previous)
	return nil
}

func (s *BundleStore) Load(ctx context.Context) (*bundle.Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Held so that pruning by a concurrent Save cannot remove files mid-read.
	s.mu.Lock()
	defer s.mu.Unlock()

	runID, err := s.current()
	if err != nil {
		return nil, domain.WrapError(domain.ErrModelNotReady, "load bundle", err)
	}
	dir := filepath.Join(s.dir, bundlesDir, runID)

	var manifest bundle.Manifest
	if err := readYAML(filepath.Join(dir, manifestFile), &manifest); err != nil {
		return nil, domain.WrapError(domain.ErrModelNotReady, "load bundle", err)
	}
	ops := &transform.Operators{}
	for name, dst := range map[string]any{
		imputerFile:  &ops.Imputer,
		scalerFile:   &ops.Scaler,
		selectorFile: &ops.Selector,
	} {
		if err := readJSON(filepath.Join(dir, name), dst); err != nil {
			return nil, domain.WrapError(domain.ErrModelNotReady, "load bundle", err)
		}
	}
	raw, err := os.ReadFile(filepath.Join(dir, modelFile))
	if err != nil {
		return nil, domain.WrapError(domain.ErrModelNotReady, "load bundle", err)
	}
	model, err := classifier.Unmarshal(raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrModelNotReady, "load bundle", err)
	}

	b := &bundle.Bundle{Manifest: manifest, Operators: ops, Model: model}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *BundleStore) current() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", errNoBundle
	}
	if err != nil {
		return "", err
	}
	runID := strings.TrimSpace(string(data))
	if !validRunID(runID) {
		return "", fmt.Errorf("corrupt current pointer %q", runID)
	}
	return runID, nil
}

// prune removes every bundle except the active one and the one it replaced.
func (s *BundleStore) prune(keep ...string) {
	entries, err := os.ReadDir(filepath.Join(s.dir, bundlesDir))
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		retained := false
		for _, k := range keep {
			if k != "" && name == k {
				retained = true
			}
		}
		if !retained {
			_ = os.RemoveAll(filepath.Join(s.dir, bundlesDir, name))
		}
	}
}

func encodeBundle(b *bundle.Bundle) (map[string][]byte, error) {
	files := make(map[string][]byte, 5)
	for name, v := range map[string]any{
		imputerFile:  b.Operators.Imputer,
		scalerFile:   b.Operators.Scaler,
		selectorFile: b.Operators.Selector,
	} {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		files[name] = data
	}
	model, err := classifier.Marshal(b.Model)
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	files[modelFile] = model
	manifest, err := yaml.Marshal(b.Manifest)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	files[manifestFile] = manifest
	return files, nil
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readYAML(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func validRunID(id string) bool {
	return id != "" && id == filepath.Base(id) && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
