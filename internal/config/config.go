package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

type Config struct {
	Database   DatabaseConfig
	Embedder   EmbedderConfig
	Attendance AttendanceConfig
	Upload     UploadConfig
	Auth       AuthConfig
	Models     ModelsConfig
}

type DatabaseConfig struct {
	Driver       string // "postgres" (default) or "mysql"
	URL          string // PostgreSQL connection URL
	MySQLDSN     string // MySQL DSN, used when Driver is "mysql"
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type EmbedderConfig struct {
	URL   string // defaults to http://localhost:8000
	Model string // defaults to vgg-face
	Dim   int    // embedding dimension, resolved from the model catalog if 0
}

type AttendanceConfig struct {
	// Threshold is the cosine distance below which a face is accepted
	// as a match. Faces at or above the threshold are UNKNOWN.
	Threshold float64
}

type UploadConfig struct {
	Dir          string // directory for uploaded class photos
	FacesDir     string // directory for enrollment photos
	MaxBytes     int64  // maximum upload size (default 10 MiB)
	MaxImageSize int    // max width/height before downscaling for the embedder
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  int // token lifetime in minutes (default 480)
}

// ModelsConfig is the embedding model catalog loaded from the embedded
// models.yaml. It maps a model name to its vector dimension so the
// storage schema and the extractor agree without manual configuration.
type ModelsConfig struct {
	Models map[string]ModelSpec `yaml:"models"`
}

type ModelSpec struct {
	Dim int `yaml:"dim"`
}

// DefaultThreshold is the accept/reject cosine distance boundary.
// Matches the VGG-Face operating point of the original deployment.
const DefaultThreshold = 0.50

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

// envFloat reads an environment variable and parses it as a float in (0, 2].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 2 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var models ModelsConfig
	if err := yaml.Unmarshal(modelsYAML, &models); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:       envString("DATABASE_DRIVER", "postgres"),
			URL:          os.Getenv("DATABASE_URL"),
			MySQLDSN:     os.Getenv("MYSQL_DSN"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Embedder: EmbedderConfig{
			URL:   envString("EMBEDDER_URL", "http://localhost:8000"),
			Model: envString("EMBEDDER_MODEL", "vgg-face"),
			Dim:   envInt("EMBEDDER_DIM", 0),
		},
		Attendance: AttendanceConfig{
			Threshold: envFloat("ATTENDANCE_THRESHOLD", DefaultThreshold),
		},
		Upload: UploadConfig{
			Dir:          envString("UPLOAD_DIR", "uploads"),
			FacesDir:     envString("STUDENT_FACES_DIR", "student_faces"),
			MaxBytes:     int64(envInt("UPLOAD_MAX_BYTES", 10*1024*1024)),
			MaxImageSize: envInt("UPLOAD_MAX_IMAGE_SIZE", 1920),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			TokenTTL:  envInt("JWT_TTL_MINUTES", 480),
		},
		Models: models,
	}

	if cfg.Embedder.Dim == 0 {
		cfg.Embedder.Dim = cfg.EmbeddingDim(cfg.Embedder.Model)
	}

	return cfg
}

// EmbeddingDim returns the vector dimension for a model from the catalog.
// Unknown models fall back to 4096 (VGG-Face).
func (c *Config) EmbeddingDim(model string) int {
	if spec, ok := c.Models.Models[model]; ok && spec.Dim > 0 {
		return spec.Dim
	}
	return 4096
}
