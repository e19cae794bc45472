package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ScoringWeights weights the signals the confidence scorer adds on top of an
// algorithm's raw confidence.
type ScoringWeights struct {
	AttributeMatch      float64 `yaml:"attribute_match"`
	SourceQuality       float64 `yaml:"source_quality"`
	TemporalConsistency float64 `yaml:"temporal_consistency"`
	Uniqueness          float64 `yaml:"uniqueness"`
}

// CorrelationConfig collects every tunable of the correlation algorithms and
// the scorer. Each engine owns its own copy, so differently tuned engines can
// coexist in one process.
type CorrelationConfig struct {
	// FuzzyThreshold is the minimum edit-distance similarity for a fuzzy
	// username match (default: 0.85).
	FuzzyThreshold float64

	// DomainSimilarityThreshold is the minimum similarity for a look-alike
	// domain (default: 0.85).
	DomainSimilarityThreshold float64

	// BioOverlapThreshold is the minimum trigram overlap for similar bios
	// (default: 0.7).
	BioOverlapThreshold float64

	// CreationWindow bounds the account creation-date gap that still counts
	// as temporally correlated (default: 30 days).
	CreationWindow time.Duration

	// ActivityWindow is the distance within which two activity timestamps
	// are considered overlapping (default: 24h).
	ActivityWindow time.Duration

	// ActivityOverlapThreshold is the minimum fraction of overlapping
	// activity timestamps (default: 0.3).
	ActivityOverlapThreshold float64

	// Weights weights the scorer signals.
	Weights ScoringWeights

	// AdjustmentScale converts the weighted signal sum (0..1) into
	// confidence points (default: 10).
	AdjustmentScale float64

	// ClusterMinConfidence is the edge floor used when clustering (default: 50).
	ClusterMinConfidence float64

	// ClusterMinSize is the smallest reported cluster (default: 2).
	ClusterMinSize int

	// SourceReliability maps a lowercase source name to a reliability score
	// in [0,1]. Unknown sources score DefaultSourceReliability.
	SourceReliability map[string]float64

	// DefaultSourceReliability scores sources missing from SourceReliability
	// (default: 0.7).
	DefaultSourceReliability float64
}

// DefaultCorrelationConfig returns the stock tuning.
func DefaultCorrelationConfig() CorrelationConfig {
	return CorrelationConfig{
		FuzzyThreshold:            0.85,
		DomainSimilarityThreshold: 0.85,
		BioOverlapThreshold:       0.7,
		CreationWindow:            30 * 24 * time.Hour,
		ActivityWindow:            24 * time.Hour,
		ActivityOverlapThreshold:  0.3,
		Weights: ScoringWeights{
			AttributeMatch:      0.3,
			SourceQuality:       0.2,
			TemporalConsistency: 0.2,
			Uniqueness:          0.3,
		},
		AdjustmentScale:      10,
		ClusterMinConfidence: 50,
		ClusterMinSize:       2,
		SourceReliability: map[string]float64{
			"verified": 1.0,
			"manual":   0.95,
			"api":      0.9,
			"sherlock": 0.8,
		},
		DefaultSourceReliability: 0.7,
	}
}

// Validate fails fast on out-of-range values.
func (c CorrelationConfig) Validate() error {
	unit := map[string]float64{
		"fuzzy_threshold":              c.FuzzyThreshold,
		"domain_similarity_threshold":  c.DomainSimilarityThreshold,
		"bio_overlap_threshold":        c.BioOverlapThreshold,
		"activity_overlap_threshold":   c.ActivityOverlapThreshold,
		"default_source_reliability":   c.DefaultSourceReliability,
		"weights.attribute_match":      c.Weights.AttributeMatch,
		"weights.source_quality":       c.Weights.SourceQuality,
		"weights.temporal_consistency": c.Weights.TemporalConsistency,
		"weights.uniqueness":           c.Weights.Uniqueness,
	}
	for _, name := range sortedKeys(unit) {
		if v := unit[name]; v != v || v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be within [0,1], got %v", ErrInvalidConfig, name, v)
		}
	}
	if c.FuzzyThreshold == 0 {
		return fmt.Errorf("%w: fuzzy_threshold must be greater than 0", ErrInvalidConfig)
	}
	if c.CreationWindow <= 0 {
		return fmt.Errorf("%w: creation_window must be positive, got %s", ErrInvalidConfig, c.CreationWindow)
	}
	if c.ActivityWindow <= 0 {
		return fmt.Errorf("%w: activity_window must be positive, got %s", ErrInvalidConfig, c.ActivityWindow)
	}
	if c.AdjustmentScale < 0 || c.AdjustmentScale > 100 {
		return fmt.Errorf("%w: adjustment_scale must be within [0,100], got %v", ErrInvalidConfig, c.AdjustmentScale)
	}
	if c.ClusterMinConfidence < 0 || c.ClusterMinConfidence > 100 {
		return fmt.Errorf("%w: cluster_min_confidence must be within [0,100], got %v", ErrInvalidConfig, c.ClusterMinConfidence)
	}
	if c.ClusterMinSize < 2 {
		return fmt.Errorf("%w: cluster_min_size must be at least 2, got %d", ErrInvalidConfig, c.ClusterMinSize)
	}
	for source, score := range c.SourceReliability {
		if score != score || score < 0 || score > 1 {
			return fmt.Errorf("%w: source_reliability[%s] must be within [0,1], got %v", ErrInvalidConfig, source, score)
		}
	}
	return nil
}

// SourceScore returns the reliability of a named source.
func (c CorrelationConfig) SourceScore(source string) float64 {
	if score, ok := c.SourceReliability[strings.ToLower(strings.TrimSpace(source))]; ok {
		return score
	}
	return c.DefaultSourceReliability
}

// correlationFile is the YAML shape of a correlation config file. Pointer
// fields distinguish "absent" from an explicit zero.
type correlationFile struct {
	FuzzyThreshold            *float64           `yaml:"fuzzy_threshold"`
	DomainSimilarityThreshold *float64           `yaml:"domain_similarity_threshold"`
	BioOverlapThreshold       *float64           `yaml:"bio_overlap_threshold"`
	CreationWindow            *string            `yaml:"creation_window"`
	ActivityWindow            *string            `yaml:"activity_window"`
	ActivityOverlapThreshold  *float64           `yaml:"activity_overlap_threshold"`
	Weights                   *ScoringWeights    `yaml:"weights"`
	AdjustmentScale           *float64           `yaml:"adjustment_scale"`
	ClusterMinConfidence      *float64           `yaml:"cluster_min_confidence"`
	ClusterMinSize            *int               `yaml:"cluster_min_size"`
	SourceReliability         map[string]float64 `yaml:"source_reliability"`
	DefaultSourceReliability  *float64           `yaml:"default_source_reliability"`
}

// ParseCorrelationConfig overlays a YAML document onto the defaults and
// validates the result. Unknown keys are rejected.
func ParseCorrelationConfig(data []byte) (*CorrelationConfig, error) {
	cfg := DefaultCorrelationConfig()

	var file correlationFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if file.FuzzyThreshold != nil {
		cfg.FuzzyThreshold = *file.FuzzyThreshold
	}
	if file.DomainSimilarityThreshold != nil {
		cfg.DomainSimilarityThreshold = *file.DomainSimilarityThreshold
	}
	if file.BioOverlapThreshold != nil {
		cfg.BioOverlapThreshold = *file.BioOverlapThreshold
	}
	if file.CreationWindow != nil {
		d, err := ParseDuration(*file.CreationWindow)
		if err != nil {
			return nil, fmt.Errorf("%w: creation_window: %v", ErrInvalidConfig, err)
		}
		cfg.CreationWindow = d
	}
	if file.ActivityWindow != nil {
		d, err := ParseDuration(*file.ActivityWindow)
		if err != nil {
			return nil, fmt.Errorf("%w: activity_window: %v", ErrInvalidConfig, err)
		}
		cfg.ActivityWindow = d
	}
	if file.ActivityOverlapThreshold != nil {
		cfg.ActivityOverlapThreshold = *file.ActivityOverlapThreshold
	}
	if file.Weights != nil {
		cfg.Weights = *file.Weights
	}
	if file.AdjustmentScale != nil {
		cfg.AdjustmentScale = *file.AdjustmentScale
	}
	if file.ClusterMinConfidence != nil {
		cfg.ClusterMinConfidence = *file.ClusterMinConfidence
	}
	if file.ClusterMinSize != nil {
		cfg.ClusterMinSize = *file.ClusterMinSize
	}
	for source, score := range file.SourceReliability {
		cfg.SourceReliability[strings.ToLower(source)] = score
	}
	if file.DefaultSourceReliability != nil {
		cfg.DefaultSourceReliability = *file.DefaultSourceReliability
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadCorrelationConfigFile reads and parses a YAML correlation config.
func LoadCorrelationConfigFile(path string) (*CorrelationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read correlation config: %w", err)
	}
	cfg, err := ParseCorrelationConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
