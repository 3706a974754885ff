package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"flockwatch/internal/metrics"
	"flockwatch/internal/models"
)

// Artifact file names inside a version directory. The training
// collaborator writes all four; the registry only ever reads them.
const (
	modelFile    = "model.json"
	scalerFile   = "scaler.json"
	featuresFile = "features.json"
	metricsFile  = "metrics.json"
)

// LinearModel is a deserialized regression model: one coefficient per
// feature plus an intercept.
type LinearModel struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// Predict evaluates the model on an already-scaled feature vector.
func (m *LinearModel) Predict(features []float64) (float64, error) {
	if len(features) != len(m.Coefficients) {
		return 0, &models.ValidationError{
			Artifact: modelFile,
			Err:      fmt.Errorf("feature vector has %d values, model expects %d", len(features), len(m.Coefficients)),
		}
	}
	sum := m.Intercept
	for i, c := range m.Coefficients {
		sum += c * features[i]
	}
	return sum, nil
}

// StandardScaler holds the per-feature mean and scale the model was
// trained with.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Transform standardizes a feature vector in place order.
func (s *StandardScaler) Transform(features []float64) ([]float64, error) {
	if len(features) != len(s.Mean) || len(s.Mean) != len(s.Scale) {
		return nil, &models.ValidationError{
			Artifact: scalerFile,
			Err:      fmt.Errorf("feature vector has %d values, scaler expects %d", len(features), len(s.Mean)),
		}
	}
	out := make([]float64, len(features))
	for i, v := range features {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}

// ModelArtifact is the model + scaler + feature-order triple. It is only
// ever constructed fully loaded; callers never see a partial artifact.
type ModelArtifact struct {
	Model        LinearModel
	Scaler       StandardScaler
	FeatureOrder []string
}

// LoadArtifact reads a complete artifact triple from a version directory.
// Any missing or malformed file fails the whole load.
func LoadArtifact(dir string) (*ModelArtifact, error) {
	start := time.Now()
	artifact, err := loadArtifact(dir)
	metrics.RecordModelLoad(time.Since(start), err)
	return artifact, err
}

func loadArtifact(dir string) (*ModelArtifact, error) {
	a := &ModelArtifact{}
	if err := readJSON(filepath.Join(dir, modelFile), &a.Model); err != nil {
		return nil, &models.ValidationError{Artifact: modelFile, Err: err}
	}
	if err := readJSON(filepath.Join(dir, scalerFile), &a.Scaler); err != nil {
		return nil, &models.ValidationError{Artifact: scalerFile, Err: err}
	}
	if err := readJSON(filepath.Join(dir, featuresFile), &a.FeatureOrder); err != nil {
		return nil, &models.ValidationError{Artifact: featuresFile, Err: err}
	}
	if len(a.Model.Coefficients) != len(a.FeatureOrder) {
		return nil, &models.ValidationError{
			Artifact: modelFile,
			Err:      fmt.Errorf("model has %d coefficients but %d features are declared", len(a.Model.Coefficients), len(a.FeatureOrder)),
		}
	}
	return a, nil
}

func readJSON(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readMetrics(dir string) (models.ModelMetrics, error) {
	var m models.ModelMetrics
	if err := readJSON(filepath.Join(dir, metricsFile), &m); err != nil {
		return m, err
	}
	return m, nil
}
