// Package bundle ties one fitted model to the transform operators it was trained
// behind. A bundle is only ever used whole.
package bundle

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/classifier"
	"github.com/kirillkom/koi-classifier/internal/core/ml/transform"
)

type Manifest struct {
	RunID       string    `yaml:"run_id"`
	ModelName   string    `yaml:"model_name"`
	F1          float64   `yaml:"f1"`
	Rows        int       `yaml:"rows"`
	Features    []string  `yaml:"features"`
	Selected    []string  `yaml:"selected"`
	K           int       `yaml:"k"`
	Fingerprint string    `yaml:"fingerprint"`
	CreatedAt   time.Time `yaml:"created_at"`
}

type Bundle struct {
	Manifest  Manifest
	Operators *transform.Operators
	Model     classifier.Classifier
}

func New(runID string, model classifier.Classifier, ops *transform.Operators, f1 float64, rows int, createdAt time.Time) (*Bundle, error) {
	b := &Bundle{
		Manifest: Manifest{
			RunID:     runID,
			ModelName: model.Name(),
			F1:        f1,
			Rows:      rows,
			CreatedAt: createdAt.UTC(),
		},
		Operators: ops,
		Model:     model,
	}
	if err := ops.Validate(); err != nil {
		return nil, domain.WrapError(domain.ErrModelNotReady, "build bundle", err)
	}
	b.Manifest.Features = append([]string(nil), ops.Features()...)
	b.Manifest.Selected = ops.Selected()
	b.Manifest.K = ops.Selector.K
	b.Manifest.Fingerprint = Fingerprint(ops)
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Fingerprint hashes the fit-time feature order and the selection mask. Two
// bundles with equal fingerprints expect identical input columns.
func Fingerprint(ops *transform.Operators) string {
	h := sha256.New()
	for _, name := range ops.Features() {
		h.Write([]byte(name))
		h.Write([]byte{0})
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(ops.Selector.K))
	h.Write(buf[:])
	for _, idx := range ops.Selector.Indices {
		binary.BigEndian.PutUint64(buf[:], uint64(idx))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Validate checks that the parts of b belong together.
func (b *Bundle) Validate() error {
	if b == nil || b.Model == nil || b.Operators == nil {
		return domain.WrapError(domain.ErrModelNotReady, "validate bundle", errors.New("bundle is incomplete"))
	}
	if err := b.Operators.Validate(); err != nil {
		return domain.WrapError(domain.ErrModelNotReady, "validate bundle", err)
	}
	if got, want := b.Model.NumFeatures(), b.Operators.Width(); got != want {
		return domain.WrapError(domain.ErrModelNotReady, "validate bundle", fmt.Errorf("model expects %d features, selector yields %d", got, want))
	}
	if fp := Fingerprint(b.Operators); fp != b.Manifest.Fingerprint {
		return domain.WrapError(domain.ErrModelNotReady, "validate bundle", fmt.Errorf("fingerprint mismatch: manifest %s, operators %s", b.Manifest.Fingerprint, fp))
	}
	return nil
}

func (b *Bundle) Info() domain.ModelInfo {
	return domain.ModelInfo{
		RunID:       b.Manifest.RunID,
		ModelName:   b.Manifest.ModelName,
		F1:          b.Manifest.F1,
		Features:    b.Manifest.Features,
		Selected:    b.Manifest.Selected,
		Fingerprint: b.Manifest.Fingerprint,
		CreatedAt:   b.Manifest.CreatedAt,
	}
}
