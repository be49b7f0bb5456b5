package legalrag

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Timeout floors. Caller supplied values below these are raised.
const (
	MinGraphTimeout      = 5 * time.Second
	MinVectorTimeout     = 10 * time.Second
	MinGenerationTimeout = 180 * time.Second
)

// Config holds all configuration for the legal QA engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.legalrag/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set: "home" (default) or "local".
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// GraphBackend selects the graph store: "sqlite" (default) or "neo4j".
	GraphBackend string      `json:"graph_backend" yaml:"graph_backend"`
	Neo4j        Neo4jConfig `json:"neo4j" yaml:"neo4j"`

	// VectorBackend selects the chunk index: "sqlite" (default) or "weaviate".
	VectorBackend string         `json:"vector_backend" yaml:"vector_backend"`
	Weaviate      WeaviateConfig `json:"weaviate" yaml:"weaviate"`

	// LLM providers
	Chat      LLMConfig `json:"chat" yaml:"chat"`
	Embedding LLMConfig `json:"embedding" yaml:"embedding"`

	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`
	Evidence  EvidenceConfig  `json:"evidence" yaml:"evidence"`
	Timeouts  TimeoutConfig   `json:"timeouts" yaml:"timeouts"`

	// Rephrase rewrites the user query into a formal legal query before
	// vector search.
	Rephrase bool `json:"rephrase" yaml:"rephrase"`

	// Chunking (seed only)
	MaxChunkTokens int `json:"max_chunk_tokens" yaml:"max_chunk_tokens"`
	ChunkOverlap   int `json:"chunk_overlap" yaml:"chunk_overlap"`

	// Embedding dimensions (must match model)
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, lmstudio, openai, gemini, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// Neo4jConfig configures the Neo4j graph backend.
type Neo4jConfig struct {
	URI      string `json:"uri" yaml:"uri"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
}

// WeaviateConfig configures the Weaviate chunk index.
type WeaviateConfig struct {
	Host   string `json:"host" yaml:"host"`
	Scheme string `json:"scheme" yaml:"scheme"`
	Class  string `json:"class" yaml:"class"`
}

// RetrievalConfig tunes the constrained retriever.
type RetrievalConfig struct {
	TopK                  int `json:"top_k" yaml:"top_k"`
	ConstrainedMultiplier int `json:"constrained_multiplier" yaml:"constrained_multiplier"`
	DiversityMultiplier   int `json:"diversity_multiplier" yaml:"diversity_multiplier"`
	MinSections           int `json:"min_sections" yaml:"min_sections"`
	MinArticles           int `json:"min_articles" yaml:"min_articles"`
	MustIncludeLimit      int `json:"must_include_limit" yaml:"must_include_limit"`
}

// EvidenceConfig bounds the assembled context.
type EvidenceConfig struct {
	MaxSnippets     int `json:"max_snippets" yaml:"max_snippets"`
	MaxSnippetChars int `json:"max_snippet_chars" yaml:"max_snippet_chars"`
	MaxGraphChars   int `json:"max_graph_chars" yaml:"max_graph_chars"`
}

// TimeoutConfig bounds each external round trip.
type TimeoutConfig struct {
	Graph      time.Duration `json:"graph" yaml:"graph"`
	Vector     time.Duration `json:"vector" yaml:"vector"`
	Generation time.Duration `json:"generation" yaml:"generation"`
}

// DefaultConfig returns a Config with sensible defaults for local inference.
// Database is stored in ~/.legalrag/legalrag.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:        "legalrag",
		StorageDir:    "home",
		GraphBackend:  "sqlite",
		VectorBackend: "sqlite",
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			User:     "neo4j",
			Password: "neo4j",
		},
		Weaviate: WeaviateConfig{
			Host:   "localhost:8080",
			Scheme: "http",
			Class:  "LegalChunk",
		},
		Chat: LLMConfig{
			Provider: "ollama",
			Model:    "llama3:8b",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: LLMConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		Retrieval: RetrievalConfig{
			TopK:                  8,
			ConstrainedMultiplier: 3,
			DiversityMultiplier:   4,
			MinSections:           2,
			MinArticles:           2,
			MustIncludeLimit:      10,
		},
		Evidence: EvidenceConfig{
			MaxSnippets:     10,
			MaxSnippetChars: 600,
			MaxGraphChars:   2000,
		},
		Timeouts: TimeoutConfig{
			Graph:      15 * time.Second,
			Vector:     30 * time.Second,
			Generation: 300 * time.Second,
		},
		Rephrase:       true,
		MaxChunkTokens: 500,
		ChunkOverlap:   100,
		EmbeddingDim:   768,
	}
}

// LoadConfig builds a Config from defaults, an optional YAML file, a .env
// file in the working directory and environment variables, in that order.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("loading .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.normalize()
	return cfg, cfg.Validate()
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch c.GraphBackend {
	case "sqlite", "neo4j":
	default:
		return fmt.Errorf("%w: unknown graph backend %q", ErrInvalidConfig, c.GraphBackend)
	}
	switch c.VectorBackend {
	case "sqlite", "weaviate":
	default:
		return fmt.Errorf("%w: unknown vector backend %q", ErrInvalidConfig, c.VectorBackend)
	}
	if c.GraphBackend == "neo4j" && c.Neo4j.URI == "" {
		return fmt.Errorf("%w: neo4j uri is required", ErrInvalidConfig)
	}
	if c.VectorBackend == "weaviate" && (c.Weaviate.Host == "" || c.Weaviate.Class == "") {
		return fmt.Errorf("%w: weaviate host and class are required", ErrInvalidConfig)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidConfig, c.Retrieval.TopK)
	}
	if c.Retrieval.MinSections < 0 || c.Retrieval.MinArticles < 0 {
		return fmt.Errorf("%w: diversification quotas must not be negative", ErrInvalidConfig)
	}
	if c.Evidence.MaxSnippets <= 0 || c.Evidence.MaxSnippetChars <= 0 || c.Evidence.MaxGraphChars <= 0 {
		return fmt.Errorf("%w: evidence bounds must be positive", ErrInvalidConfig)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("%w: embedding_dim must be positive", ErrInvalidConfig)
	}
	if c.Chat.Model == "" {
		return fmt.Errorf("%w: chat model is required", ErrInvalidConfig)
	}
	return nil
}

// normalize raises multipliers and timeouts to their floors.
func (c *Config) normalize() {
	if c.Retrieval.DiversityMultiplier < 4 {
		c.Retrieval.DiversityMultiplier = 4
	}
	if c.Retrieval.ConstrainedMultiplier < 3 {
		c.Retrieval.ConstrainedMultiplier = 3
	}
	if c.Retrieval.MustIncludeLimit <= 0 {
		c.Retrieval.MustIncludeLimit = 10
	}
	c.Timeouts.Graph = max(c.Timeouts.Graph, MinGraphTimeout)
	c.Timeouts.Vector = max(c.Timeouts.Vector, MinVectorTimeout)
	c.Timeouts.Generation = max(c.Timeouts.Generation, MinGenerationTimeout)
}

func (c *Config) applyEnv() error {
	envString("LEGALRAG_DB_PATH", &c.DBPath)
	envString("LEGALRAG_GRAPH_BACKEND", &c.GraphBackend)
	envString("LEGALRAG_VECTOR_BACKEND", &c.VectorBackend)

	envString("NEO4J_URI", &c.Neo4j.URI)
	envString("NEO4J_USER", &c.Neo4j.User)
	envString("NEO4J_PASSWORD", &c.Neo4j.Password)
	envString("NEO4J_DATABASE", &c.Neo4j.Database)

	envString("WEAVIATE_HOST", &c.Weaviate.Host)
	envString("WEAVIATE_SCHEME", &c.Weaviate.Scheme)
	envString("WEAVIATE_CLASS", &c.Weaviate.Class)

	envString("OLLAMA_BASE_URL", &c.Chat.BaseURL)
	envString("OLLAMA_MODEL", &c.Chat.Model)
	envString("LEGALRAG_CHAT_PROVIDER", &c.Chat.Provider)
	envString("LEGALRAG_CHAT_MODEL", &c.Chat.Model)
	envString("LEGALRAG_CHAT_BASE_URL", &c.Chat.BaseURL)
	envString("LEGALRAG_CHAT_API_KEY", &c.Chat.APIKey)
	envString("LEGALRAG_EMBED_PROVIDER", &c.Embedding.Provider)
	envString("LEGALRAG_EMBED_MODEL", &c.Embedding.Model)
	envString("LEGALRAG_EMBED_BASE_URL", &c.Embedding.BaseURL)
	envString("LEGALRAG_EMBED_API_KEY", &c.Embedding.APIKey)

	ints := []struct {
		name string
		dst  *int
	}{
		{"LEGALRAG_TOP_K", &c.Retrieval.TopK},
		{"LEGALRAG_CONSTRAINED_MULTIPLIER", &c.Retrieval.ConstrainedMultiplier},
		{"LEGALRAG_DIVERSITY_MULTIPLIER", &c.Retrieval.DiversityMultiplier},
		{"LEGALRAG_MIN_SECTIONS", &c.Retrieval.MinSections},
		{"LEGALRAG_MIN_ARTICLES", &c.Retrieval.MinArticles},
		{"LEGALRAG_EMBEDDING_DIM", &c.EmbeddingDim},
	}
	for _, e := range ints {
		if err := envInt(e.name, e.dst); err != nil {
			return err
		}
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"OLLAMA_TIMEOUT", &c.Timeouts.Generation},
		{"LEGALRAG_GRAPH_TIMEOUT", &c.Timeouts.Graph},
		{"LEGALRAG_VECTOR_TIMEOUT", &c.Timeouts.Vector},
	}
	for _, e := range durations {
		if err := envDuration(e.name, e.dst); err != nil {
			return err
		}
	}

	if v := os.Getenv("LEGALRAG_REPHRASE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: LEGALRAG_REPHRASE: %v", ErrInvalidConfig, err)
		}
		c.Rephrase = b
	}
	return nil
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
	}
	*dst = n
	return nil
}

// envDuration accepts Go durations ("90s") or bare seconds ("300").
func envDuration(name string, dst *time.Duration) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
	}
	*dst = d
	return nil
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "legalrag"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db"
		}
		return filepath.Join(home, ".legalrag", name+".db")
	}
}
