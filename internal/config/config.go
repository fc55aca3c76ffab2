package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Vision   VisionConfig   `yaml:"vision"`
	Match    MatchConfig    `yaml:"match"`
	Video    VideoConfig    `yaml:"video"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	ModelsDir        string  `yaml:"models_dir"`
	StrictThreshold  float64 `yaml:"strict_threshold"`
	RelaxedThreshold float64 `yaml:"relaxed_threshold"`
	MinEmbeddingNorm float64 `yaml:"min_embedding_norm"`
	MinFacePixels    int     `yaml:"min_face_pixels"`
}

type MatchConfig struct {
	// Threshold is the maximum cosine distance for an accepted
	// case/sighting match.
	Threshold float64 `yaml:"threshold"`
}

type VideoConfig struct {
	IntervalSeconds float64 `yaml:"interval_seconds"`
	MaxWidth        int     `yaml:"max_width"`
	MaxHeight       int     `yaml:"max_height"`
	MaxFileBytes    int64   `yaml:"max_file_bytes"`
	// MaxDurationMinutes caps accepted footage length; see MaxDuration().
	MaxDurationMinutes int `yaml:"max_duration_minutes"`
	// Threshold is the default distance cap for video detections; more
	// relaxed than photo matching because of CCTV conditions.
	Threshold   float64 `yaml:"threshold"`
	FlushFrames int     `yaml:"flush_frames"`
	CropPadding int     `yaml:"crop_padding"`
	WorkerCount int     `yaml:"worker_count"`
}

func (v VideoConfig) MaxDuration() time.Duration {
	return time.Duration(v.MaxDurationMinutes) * time.Minute
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Vision.StrictThreshold == 0 {
		cfg.Vision.StrictThreshold = 0.6
	}
	if cfg.Vision.RelaxedThreshold == 0 {
		cfg.Vision.RelaxedThreshold = 0.3
	}
	if cfg.Vision.MinEmbeddingNorm == 0 {
		cfg.Vision.MinEmbeddingNorm = 1.0
	}
	if cfg.Vision.MinFacePixels == 0 {
		cfg.Vision.MinFacePixels = 15
	}
	if cfg.Match.Threshold == 0 {
		cfg.Match.Threshold = 0.6
	}
	if cfg.Video.IntervalSeconds == 0 {
		cfg.Video.IntervalSeconds = 1.0
	}
	if cfg.Video.MaxWidth == 0 {
		cfg.Video.MaxWidth = 1280
	}
	if cfg.Video.MaxHeight == 0 {
		cfg.Video.MaxHeight = 720
	}
	if cfg.Video.MaxFileBytes == 0 {
		cfg.Video.MaxFileBytes = 2 << 30 // 2 GiB
	}
	if cfg.Video.MaxDurationMinutes == 0 {
		cfg.Video.MaxDurationMinutes = 30
	}
	if cfg.Video.Threshold == 0 {
		cfg.Video.Threshold = 0.85
	}
	if cfg.Video.FlushFrames == 0 {
		cfg.Video.FlushFrames = 10
	}
	if cfg.Video.CropPadding == 0 {
		cfg.Video.CropPadding = 20
	}
	if cfg.Video.WorkerCount == 0 {
		cfg.Video.WorkerCount = 1
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RE_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("RE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("RE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("RE_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("RE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("RE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("RE_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("RE_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("RE_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("RE_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("RE_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("RE_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("RE_MATCH_THRESHOLD"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Match.Threshold = t
		}
	}
	if v := os.Getenv("RE_VIDEO_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Video.WorkerCount = n
		}
	}
}
