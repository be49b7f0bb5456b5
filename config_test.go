package legalrag

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, "llama3:8b", cfg.Chat.Model)
	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4j.URI)
	assert.Equal(t, 300*time.Second, cfg.Timeouts.Generation)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown graph backend", func(c *Config) { c.GraphBackend = "dgraph" }},
		{"unknown vector backend", func(c *Config) { c.VectorBackend = "faiss" }},
		{"neo4j without uri", func(c *Config) { c.GraphBackend = "neo4j"; c.Neo4j.URI = "" }},
		{"weaviate without class", func(c *Config) { c.VectorBackend = "weaviate"; c.Weaviate.Class = "" }},
		{"zero top k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"negative quota", func(c *Config) { c.Retrieval.MinArticles = -1 }},
		{"zero snippet cap", func(c *Config) { c.Evidence.MaxSnippetChars = 0 }},
		{"zero embedding dim", func(c *Config) { c.EmbeddingDim = 0 }},
		{"no chat model", func(c *Config) { c.Chat.Model = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestNormalizeRaisesFloors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retrieval.DiversityMultiplier = 1
	cfg.Retrieval.ConstrainedMultiplier = 0
	cfg.Retrieval.MustIncludeLimit = 0
	cfg.Timeouts = TimeoutConfig{Graph: time.Second, Vector: time.Second, Generation: 30 * time.Second}

	cfg.normalize()
	assert.Equal(t, 4, cfg.Retrieval.DiversityMultiplier)
	assert.Equal(t, 3, cfg.Retrieval.ConstrainedMultiplier)
	assert.Equal(t, 10, cfg.Retrieval.MustIncludeLimit)
	assert.Equal(t, MinGraphTimeout, cfg.Timeouts.Graph)
	assert.Equal(t, MinVectorTimeout, cfg.Timeouts.Vector)
	assert.Equal(t, MinGenerationTimeout, cfg.Timeouts.Generation)

	cfg.Timeouts.Generation = 10 * time.Minute
	cfg.normalize()
	assert.Equal(t, 10*time.Minute, cfg.Timeouts.Generation, "values above the floor are kept")
}

func TestLoadConfigLayers(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "legalrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
graph_backend: neo4j
retrieval:
  top_k: 5
  min_sections: 1
chat:
  provider: ollama
  model: mistral
`), 0o644))

	t.Setenv("LEGALRAG_TOP_K", "12")
	t.Setenv("NEO4J_URI", "bolt://graph:7687")
	t.Setenv("OLLAMA_TIMEOUT", "600")
	t.Setenv("LEGALRAG_VECTOR_TIMEOUT", "45s")
	t.Setenv("LEGALRAG_REPHRASE", "false")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "neo4j", cfg.GraphBackend)
	assert.Equal(t, "mistral", cfg.Chat.Model)
	assert.Equal(t, 12, cfg.Retrieval.TopK, "environment overrides the file")
	assert.Equal(t, 1, cfg.Retrieval.MinSections)
	assert.Equal(t, 2, cfg.Retrieval.MinArticles, "unset fields keep defaults")
	assert.Equal(t, "bolt://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, 600*time.Second, cfg.Timeouts.Generation)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.Vector)
	assert.False(t, cfg.Rephrase)
}

func TestLoadConfigEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OLLAMA_MODEL=phi3\n"), 0o644))
	t.Setenv("OLLAMA_MODEL", "")
	os.Unsetenv("OLLAMA_MODEL")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "phi3", cfg.Chat.Model)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("LEGALRAG_TOP_K", "many")
	_, err := LoadConfig("")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	t.Setenv("LEGALRAG_TOP_K", "")
	t.Setenv("LEGALRAG_GRAPH_TIMEOUT", "soon")
	_, err = LoadConfig("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestResolveDBPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DBPath = "/tmp/x.db"
	assert.Equal(t, "/tmp/x.db", cfg.resolveDBPath())

	cfg.DBPath = ""
	cfg.StorageDir = "local"
	cfg.DBName = "bns"
	assert.Equal(t, "bns.db", cfg.resolveDBPath())
}
