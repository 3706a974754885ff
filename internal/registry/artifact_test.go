package registry

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"flockwatch/internal/models"
)

func TestLinearModel_Predict(t *testing.T) {
	m := LinearModel{Coefficients: []float64{0.5, 2.0}, Intercept: 1.0}

	got, err := m.Predict([]float64{2, 3})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if math.Abs(got-8.0) > 1e-9 {
		t.Errorf("Predict() = %v, want 8.0", got)
	}
}

func TestLinearModel_Predict_LengthMismatch(t *testing.T) {
	m := LinearModel{Coefficients: []float64{0.5, 2.0}, Intercept: 1.0}

	_, err := m.Predict([]float64{2})
	if err == nil {
		t.Fatal("Expected error for mismatched feature vector")
	}
	var valErr *models.ValidationError
	if !errors.As(err, &valErr) {
		t.Errorf("Expected ValidationError, got %T", err)
	}
}

func TestStandardScaler_Transform(t *testing.T) {
	s := StandardScaler{Mean: []float64{10, 0}, Scale: []float64{2, 1}}

	got, err := s.Transform([]float64{14, 3})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if got[0] != 2 || got[1] != 3 {
		t.Errorf("Transform() = %v, want [2 3]", got)
	}
}

func TestStandardScaler_ZeroScale(t *testing.T) {
	// A constant training feature yields scale 0; dividing by it would
	// produce Inf, so it falls back to 1.
	s := StandardScaler{Mean: []float64{5}, Scale: []float64{0}}

	got, err := s.Transform([]float64{8})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if got[0] != 3 {
		t.Errorf("Transform() = %v, want 3", got[0])
	}
}

func TestLoadArtifact_MissingFile(t *testing.T) {
	dir := t.TempDir()
	writeVersion(t, dir, "v1", testMetrics(0.08, 0.11, 0.90, 0.85, "2026-08-01T10:00:00Z"))
	versionDir := filepath.Join(dir, "v1")

	if _, err := LoadArtifact(versionDir); err != nil {
		t.Fatalf("Expected complete artifact to load, got %v", err)
	}

	os.Remove(filepath.Join(versionDir, scalerFile))
	_, err := LoadArtifact(versionDir)
	if err == nil {
		t.Fatal("Expected load failure with scaler missing")
	}
	var valErr *models.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("Expected ValidationError, got %T: %v", err, err)
	}
	if valErr.Artifact != scalerFile {
		t.Errorf("Expected failing artifact %q, got %q", scalerFile, valErr.Artifact)
	}
}

func TestLoadArtifact_CoefficientFeatureMismatch(t *testing.T) {
	dir := t.TempDir()
	writeVersion(t, dir, "v1", testMetrics(0.08, 0.11, 0.90, 0.85, "2026-08-01T10:00:00Z"))
	versionDir := filepath.Join(dir, "v1")

	// Three declared features against the two stored coefficients.
	if err := os.WriteFile(filepath.Join(versionDir, featuresFile),
		[]byte(`["flock_age","weight_trend","extra"]`), 0o644); err != nil {
		t.Fatalf("Failed to rewrite features: %v", err)
	}

	if _, err := LoadArtifact(versionDir); err == nil {
		t.Error("Expected load failure on coefficient/feature count mismatch")
	}
}
