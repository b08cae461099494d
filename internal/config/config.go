package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// GeminiEmbedderConfig holds configuration for the Google embedding model.
type GeminiEmbedderConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
	MaxRetries  int    `yaml:"max_retries"`
}

type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string                `yaml:"type"`
	Gemini  GeminiEmbedderConfig  `yaml:"gemini"`
	OpenAI  OpenAIEmbedderConfig  `yaml:"openai"`
	Hashing HashingEmbedderConfig `yaml:"hashing"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type         string `yaml:"type"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string       `yaml:"type"`
	Location string       `yaml:"location"`
	File     FileConfig   `yaml:"file"`
	SQLite   SQLiteConfig `yaml:"sqlite"`
	Qdrant   QdrantConfig `yaml:"qdrant"`
}

type FileConfig struct {
	Dir string `yaml:"dir"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL              string `yaml:"url"`
	APIKey           string `yaml:"api_key"`
	CollectionPrefix string `yaml:"collection_prefix"`
	TimeoutSecs      int    `yaml:"timeout_secs"`
}

type GeminiSynthConfig struct {
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

type OpenAISynthConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries"`
}

type ExtractiveConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// SynthesizerConfig selects the answer synthesizer.
type SynthesizerConfig struct {
	Type       string            `yaml:"type"`
	Gemini     GeminiSynthConfig `yaml:"gemini"`
	OpenAI     OpenAISynthConfig `yaml:"openai"`
	Extractive ExtractiveConfig  `yaml:"extractive"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// GuardConfig tunes the breaker and limiter in front of remote models.
type GuardConfig struct {
	RequestsPerMinute int     `yaml:"requests_per_minute"`
	FailureRatio      float64 `yaml:"failure_ratio"`
}

type HTTPConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	MaxUploadMB int      `yaml:"max_upload_mb"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Synthesizer SynthesizerConfig `yaml:"synthesizer"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Guard       GuardConfig       `yaml:"guard"`
	HTTP        HTTPConfig        `yaml:"http"`
	Log         LogConfig         `yaml:"log"`
}

// Credentials are API keys resolved once from the environment.
type Credentials struct {
	GeminiEmbedder string
	OpenAIEmbedder string
	GeminiSynth    string
	OpenAISynth    string
}

// Credentials reads the env vars named by the api_key_env settings.
func (c *AppConfig) Credentials() Credentials {
	return Credentials{
		GeminiEmbedder: os.Getenv(c.Embedder.Gemini.APIKeyEnv),
		OpenAIEmbedder: os.Getenv(c.Embedder.OpenAI.APIKeyEnv),
		GeminiSynth:    os.Getenv(c.Synthesizer.Gemini.APIKeyEnv),
		OpenAISynth:    os.Getenv(c.Synthesizer.OpenAI.APIKeyEnv),
	}
}

// LoadEnv loads .env files into the process environment. Missing files are ignored.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/paperpal/config.yaml.
// If neither exists, it writes defaults to ~/.config/paperpal/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings no component could run with.
func (c *AppConfig) Validate() error {
	if c.Chunker.ChunkSize <= 0 {
		return fmt.Errorf("chunker.chunk_size must be positive, got %d", c.Chunker.ChunkSize)
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunker.chunk_overlap must be in [0, %d), got %d", c.Chunker.ChunkSize, c.Chunker.ChunkOverlap)
	}
	switch c.Embedder.Type {
	case "gemini", "openai", "hashing":
	default:
		return fmt.Errorf("unknown embedder: %s", c.Embedder.Type)
	}
	switch c.VectorStore.Type {
	case "file", "sqlite", "qdrant", "memory":
	default:
		return fmt.Errorf("unknown vector store: %s", c.VectorStore.Type)
	}
	if c.VectorStore.Type == "qdrant" && c.VectorStore.Qdrant.URL == "" {
		return errors.New("vector_store.qdrant.url is required")
	}
	switch c.Synthesizer.Type {
	case "gemini", "openai", "extractive":
	default:
		return fmt.Errorf("unknown synthesizer: %s", c.Synthesizer.Type)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "paperpal", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "gemini"},
		Chunker:     ChunkerConfig{Type: "recursive", ChunkSize: 10000, ChunkOverlap: 1000},
		VectorStore: VectorStoreConfig{Type: "file", Location: "faiss_index"},
		Synthesizer: SynthesizerConfig{Type: "gemini"},
		Retrieval:   RetrievalConfig{TopK: 4},
		HTTP:        HTTPConfig{Addr: ":8080", CORSOrigins: []string{"*"}, MaxUploadMB: 32},
		Log:         LogConfig{Level: "info", Format: "text"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	e := &cfg.Embedder
	if e.Gemini.APIKeyEnv == "" {
		e.Gemini.APIKeyEnv = "GOOGLE_API_KEY"
	}
	if e.Gemini.Model == "" {
		e.Gemini.Model = "models/embedding-001"
	}
	if e.OpenAI.BaseURL == "" {
		e.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if e.OpenAI.APIKeyEnv == "" {
		e.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if e.OpenAI.Model == "" {
		e.OpenAI.Model = "text-embedding-3-small"
	}
	if e.OpenAI.BatchSize == 0 {
		e.OpenAI.BatchSize = 32
	}
	if e.OpenAI.MaxRetries == 0 {
		e.OpenAI.MaxRetries = 5
	}
	if e.Hashing.Dimension == 0 {
		e.Hashing.Dimension = 512
	}

	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "recursive"
	}

	vs := &cfg.VectorStore
	if vs.Location == "" {
		vs.Location = "faiss_index"
	}
	if vs.File.Dir == "" {
		vs.File.Dir = "."
	}
	if vs.SQLite.Path == "" {
		vs.SQLite.Path = "paperpal.db"
	}

	s := &cfg.Synthesizer
	if s.Gemini.APIKeyEnv == "" {
		s.Gemini.APIKeyEnv = "GOOGLE_API_KEY"
	}
	if s.Gemini.Model == "" {
		s.Gemini.Model = "gemini-1.5-flash"
	}
	if s.Gemini.Temperature == 0 {
		s.Gemini.Temperature = 0.3
	}
	if s.OpenAI.BaseURL == "" {
		s.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if s.OpenAI.APIKeyEnv == "" {
		s.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if s.OpenAI.Model == "" {
		s.OpenAI.Model = "gpt-4o-mini"
	}
	if s.OpenAI.Temperature == 0 {
		s.OpenAI.Temperature = 0.3
	}
	if s.OpenAI.MaxRetries == 0 {
		s.OpenAI.MaxRetries = 3
	}
	if s.Extractive.MaxSentences == 0 {
		s.Extractive.MaxSentences = 3
	}

	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Guard.FailureRatio == 0 {
		cfg.Guard.FailureRatio = 0.6
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.MaxUploadMB == 0 {
		cfg.HTTP.MaxUploadMB = 32
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
