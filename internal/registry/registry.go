package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"flockwatch/internal/logger"
	"flockwatch/internal/models"
)

// activeMarker is the file at the registry root naming the one active
// version. Rewritten atomically on every activation.
const activeMarker = "ACTIVE"

// Registry tracks every trained model version under a single directory,
// one subdirectory per version. Exactly one version is active at a time.
type Registry struct {
	dir string
	log *logger.Logger

	mu       sync.RWMutex
	versions map[string]*models.ModelVersion
	activeID string
}

// New scans the registry directory and builds the version index.
// A missing directory is created empty.
func New(dir string, log *logger.Logger) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create registry dir %s: %w", dir, err)
	}

	r := &Registry{
		dir:      dir,
		log:      log,
		versions: make(map[string]*models.ModelVersion),
	}
	if err := r.scan(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) scan() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("failed to read registry dir: %w", err)
	}

	activeID := ""
	if data, err := os.ReadFile(filepath.Join(r.dir, activeMarker)); err == nil {
		activeID = strings.TrimSpace(string(data))
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		versionDir := filepath.Join(r.dir, id)

		m, err := readMetrics(versionDir)
		if err != nil {
			r.log.Warn("skipping version without readable metrics", "version", id, "error", err)
			continue
		}

		v := &models.ModelVersion{
			ID:           id,
			ModelType:    m.ModelType,
			TrainedAt:    parseTrainedAt(m.TrainedAt, versionDir),
			Metrics:      m,
			ArtifactPath: versionDir,
			Status:       models.StatusTrained,
		}
		if features, err := loadFeatureList(versionDir); err == nil {
			v.Features = features
		}
		if id == activeID {
			v.IsActive = true
			v.Status = models.StatusDeployed
		}
		r.versions[id] = v
	}

	if activeID != "" {
		if _, ok := r.versions[activeID]; !ok {
			r.log.Warn("active marker names a missing version", "version", activeID)
			activeID = ""
		}
	}
	r.activeID = activeID

	r.log.Info("registry loaded", "versions", len(r.versions), "active", r.activeID)
	return nil
}

func parseTrainedAt(raw string, dir string) time.Time {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	if info, err := os.Stat(dir); err == nil {
		return info.ModTime()
	}
	return time.Time{}
}

func loadFeatureList(dir string) ([]string, error) {
	var features []string
	if err := readJSON(filepath.Join(dir, featuresFile), &features); err != nil {
		return nil, err
	}
	return features, nil
}

// ListVersions returns all known versions ordered by training time,
// newest first.
func (r *Registry) ListVersions() []models.ModelVersion {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ModelVersion, 0, len(r.versions))
	for _, v := range r.versions {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TrainedAt.After(out[j].TrainedAt)
	})
	return out
}

// ArtifactPresence reports which artifact files exist for a version.
type ArtifactPresence struct {
	Model    bool `json:"model"`
	Scaler   bool `json:"scaler"`
	Features bool `json:"features"`
	Metrics  bool `json:"metrics"`
}

// GetVersion returns a version's metadata plus a per-artifact presence
// check.
func (r *Registry) GetVersion(id string) (models.ModelVersion, ArtifactPresence, error) {
	r.mu.RLock()
	v, ok := r.versions[id]
	r.mu.RUnlock()
	if !ok {
		return models.ModelVersion{}, ArtifactPresence{}, fmt.Errorf("model version %s: %w", id, models.ErrNotFound)
	}

	presence := ArtifactPresence{
		Model:    fileExists(filepath.Join(v.ArtifactPath, modelFile)),
		Scaler:   fileExists(filepath.Join(v.ArtifactPath, scalerFile)),
		Features: fileExists(filepath.Join(v.ArtifactPath, featuresFile)),
		Metrics:  fileExists(filepath.Join(v.ArtifactPath, metricsFile)),
	}
	return *v, presence, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ValidationReport carries per-artifact load results for one version.
type ValidationReport struct {
	Version string            `json:"version"`
	Valid   bool              `json:"valid"`
	Checks  map[string]bool   `json:"checks"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Validate attempts to load each artifact independently. The version is
// valid only when model, scaler and feature list all load and the metrics
// metadata is present.
func (r *Registry) Validate(id string) (ValidationReport, error) {
	r.mu.RLock()
	v, ok := r.versions[id]
	r.mu.RUnlock()
	if !ok {
		return ValidationReport{}, fmt.Errorf("model version %s: %w", id, models.ErrNotFound)
	}

	report := ValidationReport{
		Version: id,
		Checks:  make(map[string]bool),
		Errors:  make(map[string]string),
	}

	var m LinearModel
	if err := readJSON(filepath.Join(v.ArtifactPath, modelFile), &m); err != nil {
		report.Errors["model"] = err.Error()
	} else {
		report.Checks["model"] = true
	}

	var s StandardScaler
	if err := readJSON(filepath.Join(v.ArtifactPath, scalerFile), &s); err != nil {
		report.Errors["scaler"] = err.Error()
	} else {
		report.Checks["scaler"] = true
	}

	var features []string
	if err := readJSON(filepath.Join(v.ArtifactPath, featuresFile), &features); err != nil {
		report.Errors["features"] = err.Error()
	} else {
		report.Checks["features"] = true
	}

	report.Checks["metrics"] = fileExists(filepath.Join(v.ArtifactPath, metricsFile))

	report.Valid = report.Checks["model"] && report.Checks["scaler"] &&
		report.Checks["features"] && report.Checks["metrics"]
	return report, nil
}

// SetActive atomically makes id the single active version. Validation
// runs first; a version that fails validation leaves the previous active
// version untouched.
func (r *Registry) SetActive(id string) error {
	report, err := r.Validate(id)
	if err != nil {
		return err
	}
	if !report.Valid {
		return &models.ValidationError{
			Artifact: id,
			Err:      fmt.Errorf("version failed validation, active model unchanged"),
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.versions[id]
	if !ok {
		return fmt.Errorf("model version %s: %w", id, models.ErrNotFound)
	}

	// Persist the marker before mutating in-memory state so a crash
	// between the two cannot leave memory ahead of disk.
	if err := r.writeActiveMarker(id); err != nil {
		return err
	}

	for _, other := range r.versions {
		if other.IsActive && other.ID != id {
			other.IsActive = false
			other.Status = models.StatusArchived
		}
	}
	v.IsActive = true
	v.Status = models.StatusDeployed
	r.activeID = id

	r.log.Info("active model changed", "version", id, "model_type", v.ModelType)
	return nil
}

func (r *Registry) writeActiveMarker(id string) error {
	tmp := filepath.Join(r.dir, activeMarker+".tmp")
	if err := os.WriteFile(tmp, []byte(id+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write active marker: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(r.dir, activeMarker)); err != nil {
		return fmt.Errorf("failed to commit active marker: %w", err)
	}
	return nil
}

// Active returns the currently active version.
func (r *Registry) Active() (models.ModelVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.activeID == "" {
		return models.ModelVersion{}, models.ErrNoActiveModel
	}
	v, ok := r.versions[r.activeID]
	if !ok {
		return models.ModelVersion{}, models.ErrNoActiveModel
	}
	return *v, nil
}

// Delete removes a version's artifacts and metadata. The active version
// cannot be deleted.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.versions[id]
	if !ok {
		return fmt.Errorf("model version %s: %w", id, models.ErrNotFound)
	}
	if v.IsActive || id == r.activeID {
		return fmt.Errorf("cannot delete active model version %s", id)
	}

	if err := os.RemoveAll(v.ArtifactPath); err != nil {
		return fmt.Errorf("failed to remove artifacts for %s: %w", id, err)
	}
	delete(r.versions, id)

	r.log.Info("model version deleted", "version", id)
	return nil
}

// Register records a freshly trained artifact set under a new version id
// and returns the created metadata. The version starts out inactive.
func (r *Registry) Register(artifact *ModelArtifact, m models.ModelMetrics) (models.ModelVersion, error) {
	id := fmt.Sprintf("v%s-%s", time.Now().UTC().Format("20060102_150405"), uuid.NewString()[:8])
	versionDir := filepath.Join(r.dir, id)

	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		return models.ModelVersion{}, fmt.Errorf("failed to create version dir: %w", err)
	}

	files := map[string]interface{}{
		modelFile:    artifact.Model,
		scalerFile:   artifact.Scaler,
		featuresFile: artifact.FeatureOrder,
		metricsFile:  m,
	}
	for name, payload := range files {
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return models.ModelVersion{}, fmt.Errorf("failed to encode %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(versionDir, name), data, 0o644); err != nil {
			os.RemoveAll(versionDir)
			return models.ModelVersion{}, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	v := &models.ModelVersion{
		ID:           id,
		ModelType:    m.ModelType,
		TrainedAt:    parseTrainedAt(m.TrainedAt, versionDir),
		Metrics:      m,
		Features:     append([]string(nil), artifact.FeatureOrder...),
		ArtifactPath: versionDir,
		Status:       models.StatusTrained,
	}

	r.mu.Lock()
	r.versions[id] = v
	r.mu.Unlock()

	r.log.Info("model version registered", "version", id, "model_type", m.ModelType)
	return *v, nil
}

// History returns past training records, newest first, excluding nothing;
// the dashboard filters as it pleases.
func (r *Registry) History() []models.ModelMetrics {
	versions := r.ListVersions()
	out := make([]models.ModelMetrics, 0, len(versions))
	for _, v := range versions {
		out = append(out, v.Metrics)
	}
	return out
}

// IsNotFound reports whether err denotes a missing version.
func IsNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
