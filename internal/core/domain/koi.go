package domain

import "time"

// Disposition is the three-way outcome assigned to a Kepler Object of Interest.
type Disposition string

const (
	DispositionConfirmed     Disposition = "CONFIRMED"
	DispositionFalsePositive Disposition = "FALSE POSITIVE"
	DispositionCandidate     Disposition = "CANDIDATE"

	// DispositionUnknown is reported for a predicted class that has no label.
	DispositionUnknown Disposition = "UNKNOWN"
)

// Class codes used for modeling. The mapping is fixed and not ordinal.
const (
	ClassFalsePositive = 0
	ClassConfirmed     = 1
	ClassCandidate     = 2
)

var dispositionToClass = map[Disposition]int{
	DispositionConfirmed:     ClassConfirmed,
	DispositionFalsePositive: ClassFalsePositive,
	DispositionCandidate:     ClassCandidate,
}

var classToDisposition = map[int]Disposition{
	ClassConfirmed:     DispositionConfirmed,
	ClassFalsePositive: DispositionFalsePositive,
	ClassCandidate:     DispositionCandidate,
}

// EncodeDisposition maps label text to its class code.
func EncodeDisposition(label string) (int, bool) {
	class, ok := dispositionToClass[Disposition(label)]
	return class, ok
}

// DecodeClass maps a class code back to label text, falling back to DispositionUnknown.
func DecodeClass(class int) Disposition {
	if d, ok := classToDisposition[class]; ok {
		return d
	}
	return DispositionUnknown
}

// Column names shared by the schema, transform and use cases.
const (
	ColumnKepID       = "kepid"
	ColumnKOIName     = "kepoi_name"
	ColumnDisposition = "koi_disposition"
)

type Prediction struct {
	KepID      int64       `json:"kepid"`
	Prediction Disposition `json:"prediction"`
}

type TrainingReport struct {
	RunID      string        `json:"run_id"`
	ModelName  string        `json:"model_name"`
	F1         float64       `json:"f1"`
	Rows       int           `json:"rows"`
	Features   int           `json:"features"`
	Duration   time.Duration `json:"duration"`
	Candidates []ModelScore  `json:"candidates,omitempty"`
}

type ModelScore struct {
	Name     string  `json:"name"`
	Accuracy float64 `json:"accuracy"`
	F1       float64 `json:"f1"`
}

type UploadResult struct {
	RowsUploaded        int            `json:"rows_uploaded"`
	RowsTotalAfterMerge int            `json:"rows_total_after_merge"`
	Training            TrainingReport `json:"training"`
}

type PredictionBatch struct {
	RowsUploaded int          `json:"rows_uploaded"`
	Predictions  []Prediction `json:"predictions"`
}

// ModelInfo describes the active artifact bundle.
type ModelInfo struct {
	RunID       string    `json:"run_id"`
	ModelName   string    `json:"model_name"`
	F1          float64   `json:"f1"`
	Features    []string  `json:"features"`
	Selected    []string  `json:"selected"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

// PreviewRow is one dataset row keyed by column name.
type PreviewRow map[string]any

type DatasetPreview struct {
	Data []PreviewRow `json:"data"`
	Rows int          `json:"rows"`
}
