package model

import (
	"fmt"
	"slices"
	"time"

	"solana-surge-lab/internal/storage/flatfile"
)

// ArtifactFormat is bumped when the on-disk layout changes.
const ArtifactFormat = 1

// Artifact is a trained classifier plus what is needed to score new rows.
type Artifact struct {
	Format         int         `json:"format"`
	RunID          string      `json:"run_id"`
	TrainedAt      time.Time   `json:"trained_at"`
	FeatureVersion string      `json:"feature_version"`
	Columns        []string    `json:"columns"`
	Threshold      float64     `json:"threshold"`
	Scaled         bool        `json:"scaled"`
	Model          *Classifier `json:"model"`
}

// CheckFeatures fails with ErrFeatureMismatch unless version and columns
// match the artifact exactly.
func (a *Artifact) CheckFeatures(version string, columns []string) error {
	if a.FeatureVersion != version {
		return fmt.Errorf("%w: artifact version %q, engineer version %q", ErrFeatureMismatch, a.FeatureVersion, version)
	}
	if !slices.Equal(a.Columns, columns) {
		return fmt.Errorf("%w: artifact has %d columns, engineer has %d", ErrFeatureMismatch, len(a.Columns), len(columns))
	}
	return nil
}

// SaveArtifact writes a as JSON.
func SaveArtifact(path string, a *Artifact) error {
	if a.Model == nil {
		return ErrNotFitted
	}
	a.Format = ArtifactFormat
	if err := flatfile.WriteJSON(path, a); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	return nil
}

// LoadArtifact reads an artifact written by SaveArtifact.
func LoadArtifact(path string) (*Artifact, error) {
	var a Artifact
	if err := flatfile.ReadJSON(path, &a); err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if a.Format != ArtifactFormat {
		return nil, fmt.Errorf("load model: unsupported format %d", a.Format)
	}
	if a.Model == nil || len(a.Model.Trees) == 0 {
		return nil, fmt.Errorf("load model: %w", ErrNotFitted)
	}
	return &a, nil
}

// SaveScaler writes s as JSON.
func SaveScaler(path string, s *StandardScaler) error {
	if err := flatfile.WriteJSON(path, s); err != nil {
		return fmt.Errorf("save scaler: %w", err)
	}
	return nil
}

// LoadScaler reads a scaler written by SaveScaler.
func LoadScaler(path string) (*StandardScaler, error) {
	var s StandardScaler
	if err := flatfile.ReadJSON(path, &s); err != nil {
		return nil, fmt.Errorf("load scaler: %w", err)
	}
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
		return nil, fmt.Errorf("load scaler: %w", ErrFeatureMismatch)
	}
	return &s, nil
}
