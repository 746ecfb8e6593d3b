// Package csvfile stores the prediction log as an append-only CSV file with a
// kepid,prediction header.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
)

var header = []string{domain.ColumnKepID, "prediction"}

type Log struct {
	path string
	mu   sync.Mutex
}

func New(path string) (*Log, error) {
	if path == "" {
		path = "./data/predictions.csv"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create prediction log dir: %w", err)
	}
	return &Log{path: path}, nil
}

// Append adds rows at the end of the file. The header is written only when the
// file is created.
func (l *Log) Append(_ context.Context, predictions []domain.Prediction) error {
	if len(predictions) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	_, statErr := os.Stat(l.path)
	fresh := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open prediction log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, p := range predictions {
		if err := w.Write([]string{strconv.FormatInt(p.KepID, 10), string(p.Prediction)}); err != nil {
			return fmt.Errorf("write prediction: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush prediction log: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync prediction log: %w", err)
	}
	return nil
}

// Latest returns the last row written for kepID.
func (l *Log) Latest(_ context.Context, kepID int64) (*domain.Prediction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrPredictionNotFound, "latest prediction", errors.New("no predictions recorded"))
		}
		return nil, fmt.Errorf("open prediction log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	head, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.WrapError(domain.ErrLogFormat, "latest prediction", errors.New("log is empty"))
		}
		return nil, fmt.Errorf("read prediction log header: %w", err)
	}
	idCol, labelCol := -1, -1
	for i, name := range head {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case domain.ColumnKepID:
			idCol = i
		case "prediction":
			labelCol = i
		}
	}
	if idCol < 0 || labelCol < 0 {
		return nil, domain.WrapError(domain.ErrLogFormat, "latest prediction", fmt.Errorf("header %v", head))
	}

	want := strconv.FormatInt(kepID, 10)
	var found *domain.Prediction
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read prediction log: %w", err)
		}
		if idCol >= len(record) || labelCol >= len(record) {
			continue
		}
		if strings.TrimSpace(record[idCol]) == want {
			found = &domain.Prediction{KepID: kepID, Prediction: domain.Disposition(record[labelCol])}
		}
	}
	if found == nil {
		return nil, domain.WrapError(domain.ErrPredictionNotFound, "latest prediction", fmt.Errorf("kepid %d", kepID))
	}
	return found, nil
}
