package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Database  DatabaseConfig
	Campus    CampusConfig
	Pipeline  PipelineConfig
	Embedding EmbeddingConfig
	Face      FaceConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// CampusConfig points at an existing campus academic database (MySQL/MariaDB).
// When DSN is set, the reference directory (students, classes, courses) is
// read from there instead of the service's own PostgreSQL tables.
type CampusConfig struct {
	DSN string // e.g. elearn:secret@tcp(db.campus.local:3306)/siakad
}

// PipelineConfig points at the face-pipeline sidecar that performs face
// detection and embedding extraction (MTCNN + FaceNet or equivalent).
type PipelineConfig struct {
	URL string // defaults to http://localhost:8000
}

type EmbeddingConfig struct {
	Dir     string // directory for per-student embedding files (default "embeddings")
	Dim     int    // embedding vector dimension (default 512)
	Backend string // "file" (default) or "postgres"
}

// FaceConfig carries the matching and verification policy loaded from the
// embedded thresholds.yaml.
type FaceConfig struct {
	MatchThreshold      float64 `yaml:"match_threshold"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	LockoutLimit        int     `yaml:"lockout_limit"`
}

type thresholdsFile struct {
	Face FaceConfig `yaml:"face"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func Load() *Config {
	var thresholds thresholdsFile
	if err := yaml.Unmarshal(thresholdsYAML, &thresholds); err != nil {
		// Embedded file, so this can only fail on a bad edit caught at build time.
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}

	// The embedded thresholds are the baseline policy; each can be
	// overridden per environment.
	face := thresholds.Face
	face.MatchThreshold = envFloat("FACE_MATCH_THRESHOLD", face.MatchThreshold)
	face.ConfidenceThreshold = envFloat("FACE_CONFIDENCE_THRESHOLD", face.ConfidenceThreshold)
	face.LockoutLimit = envInt("FACE_LOCKOUT_LIMIT", face.LockoutLimit)

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Campus: CampusConfig{
			DSN: os.Getenv("CAMPUS_DATABASE_DSN"),
		},
		Pipeline: PipelineConfig{
			URL: envString("FACE_PIPELINE_URL", "http://localhost:8000"),
		},
		Embedding: EmbeddingConfig{
			Dir:     envString("EMBEDDINGS_DIR", "embeddings"),
			Dim:     envInt("EMBEDDING_DIM", 512),
			Backend: envString("EMBEDDING_BACKEND", "file"),
		},
		Face: face,
	}
}
