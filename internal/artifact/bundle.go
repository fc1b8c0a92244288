// Package artifact saves, validates and loads trained model bundles: the
// classifier, the fitted preprocessing state and their metadata, stored as
// JSON files in one directory.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/model"
	"station-forecast-lab/internal/preprocess"
)

// Bundle file names.
const (
	ModelFile          = "model.json"
	PreprocessorFile   = "preprocessor.json"
	FeatureColumnsFile = "feature_columns.json"
	LabelEncodersFile  = "label_encoders.json"
	MetadataFile       = "metadata.json"
)

// RequiredFiles must all exist for a directory to be a bundle.
var RequiredFiles = []string{ModelFile, PreprocessorFile, FeatureColumnsFile, LabelEncodersFile, MetadataFile}

// Bundle metadata values.
const (
	ModelType     = "gbt"
	FormatVersion = "2.0"
	DefaultPrefix = "gbt_model"
)

var (
	// ErrNoModel is returned when neither local disk nor the bucket holds a valid bundle.
	ErrNoModel = errors.New("no model bundle available")

	// ErrInvalidBundle is returned for bundles with missing or inconsistent files.
	ErrInvalidBundle = errors.New("invalid model bundle")
)

// Metadata describes a bundle.
type Metadata struct {
	ModelType         string        `json:"model_type"`
	Version           string        `json:"version"`
	TrainedAt         time.Time     `json:"trained_at"`
	FeatureCount      int           `json:"feature_count"`
	TargetClasses     []int         `json:"target_classes"`
	BestParams        *model.Params `json:"best_params"` // nil when not tuned
	NSelectedFeatures int           `json:"n_selected_features"`
	RunID             string        `json:"run_id"`
}

// Bundle is everything inference needs.
type Bundle struct {
	Model          *model.Classifier
	Pipeline       *preprocess.FittedPipelineState
	FeatureColumns []string
	LabelEncoders  map[string][]string
	Metadata       Metadata
}

// NewMetadata fills the constant metadata fields.
func NewMetadata(runID string, trainedAt time.Time, featureCount, nSelected int, best *model.Params) Metadata {
	classes := make([]int, domain.NumClasses)
	for i := range classes {
		classes[i] = i
	}
	return Metadata{
		ModelType:         ModelType,
		Version:           FormatVersion,
		TrainedAt:         trainedAt.UTC(),
		FeatureCount:      featureCount,
		TargetClasses:     classes,
		BestParams:        best,
		NSelectedFeatures: nSelected,
		RunID:             runID,
	}
}

// DirName returns the directory name of a bundle trained at t. Names sort
// chronologically.
func DirName(prefix string, t time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "_" + t.UTC().Format("20060102T150405")
}

// Save writes b into dir, creating it if needed.
func Save(dir string, b *Bundle) error {
	if b == nil || b.Model == nil || b.Pipeline == nil {
		return fmt.Errorf("save bundle: %w: missing model or pipeline", ErrInvalidBundle)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bundle dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, ModelFile))
	if err != nil {
		return fmt.Errorf("create %s: %w", ModelFile, err)
	}
	if err := b.Model.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", ModelFile, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", ModelFile, err)
	}

	for name, v := range map[string]any{
		PreprocessorFile:   b.Pipeline,
		FeatureColumnsFile: b.FeatureColumns,
		LabelEncodersFile:  b.LabelEncoders,
		MetadataFile:       b.Metadata,
	} {
		if err := writeJSON(filepath.Join(dir, name), v); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that dir holds every required file.
func Validate(dir string) error {
	for _, name := range RequiredFiles {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("%w: missing %s in %s", ErrInvalidBundle, name, dir)
		}
		if info.IsDir() {
			return fmt.Errorf("%w: %s in %s is a directory", ErrInvalidBundle, name, dir)
		}
	}
	return nil
}

// Load reads and cross-checks the bundle in dir.
func Load(dir string) (*Bundle, error) {
	if err := Validate(dir); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(dir, ModelFile))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ModelFile, err)
	}
	m, err := model.Load(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}

	b := &Bundle{Model: m}
	for name, v := range map[string]any{
		PreprocessorFile:   &b.Pipeline,
		FeatureColumnsFile: &b.FeatureColumns,
		LabelEncodersFile:  &b.LabelEncoders,
		MetadataFile:       &b.Metadata,
	} {
		if err := readJSON(filepath.Join(dir, name), v); err != nil {
			return nil, err
		}
	}

	if err := b.check(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidBundle, dir, err)
	}
	return b, nil
}

func (b *Bundle) check() error {
	if b.Pipeline == nil || b.Pipeline.Scaler == nil || b.Pipeline.Selector == nil || b.Pipeline.Cleaning == nil {
		return errors.New("incomplete preprocessor state")
	}
	if !slices.Equal(b.FeatureColumns, b.Pipeline.FeatureColumns) {
		return errors.New("feature_columns disagree with preprocessor state")
	}
	if len(b.FeatureColumns) != b.Model.NumFeatures {
		return fmt.Errorf("model expects %d features, bundle lists %d", b.Model.NumFeatures, len(b.FeatureColumns))
	}
	if b.Model.NumClasses != domain.NumClasses {
		return fmt.Errorf("model has %d classes", b.Model.NumClasses)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrInvalidBundle, filepath.Base(path), err)
	}
	return nil
}
