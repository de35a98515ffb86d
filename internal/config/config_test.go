package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_SnowflakeDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"warehouse": {"snowflake": {"account": "acme", "user": "svc"}},
		"knowledge": {"table": "CS.CS_SCHEMA.CS_TABLE"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, WarehouseSnowflake, cfg.Warehouse.Type)
	require.Equal(t, BackendCortex, cfg.Knowledge.Backend)
	require.Equal(t, "QUESTION", cfg.Knowledge.QuestionColumn)
	require.Equal(t, "ANSWER", cfg.Knowledge.AnswerColumn)
	require.Equal(t, "QUESTION_EMBED", cfg.Knowledge.EmbeddingColumn)
	require.Equal(t, 3, cfg.Knowledge.DefaultTopK)
	require.Equal(t, 5, cfg.Knowledge.MaxTopK)
	require.Equal(t, "snowflake-arctic-embed-m", cfg.Embedding.Model)
	require.Equal(t, 768, cfg.Embedding.Dimension)
	require.Equal(t, []GeneratorConfig{{Provider: "cortex", Model: "mistral-large2"}}, cfg.Generation)
	require.Equal(t, TranscriptMemory, cfg.Transcript.Type)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.True(t, cfg.Chat.SourcesVisible())
	require.Equal(t, 2000, cfg.Chat.MaxQuestionChars)

	props := cfg.Properties()
	require.Equal(t, 3, props.DefaultTopK)
	require.Equal(t, 5, props.MaxTopK)
	require.True(t, props.ShowSources)
	require.Equal(t, []string{"cortex/mistral-large2"}, props.Generators)
}

func TestLoad_RejectsMismatchedEmbeddingDimension(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"knowledge": {"table": "CS.CS_SCHEMA.CS_TABLE"},
		"embedding": {"model": "snowflake-arctic-embed-m", "dimension": 1024}
	}`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "768")
}

func TestLoad_LargeEmbeddingModelPicksDimension(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"knowledge": {"table": "CS.CS_SCHEMA.CS_TABLE"},
		"embedding": {"model": "snowflake-arctic-embed-l-v2.0"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1024, cfg.Embedding.Dimension)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing port", body: `{"knowledge": {"table": "T"}}`},
		{name: "missing table", body: `{"port": 1}`},
		{name: "bad table", body: `{"port": 1, "knowledge": {"table": "T; DROP"}}`},
		{name: "bad column", body: `{"port": 1, "knowledge": {"table": "T", "answer_column": "A B"}}`},
		{name: "default above max", body: `{"port": 1, "knowledge": {"table": "T", "default_top_k": 6}}`},
		{name: "cortex on postgres", body: `{"port": 1, "warehouse": {"type": "postgres", "postgres": {"dsn": "x"}}, "knowledge": {"backend": "cortex", "table": "T"}}`},
		{name: "postgres without dsn", body: `{"port": 1, "warehouse": {"type": "postgres"}, "knowledge": {"table": "T"}}`},
		{name: "bad model", body: `{"port": 1, "knowledge": {"table": "T"}, "generation": [{"provider": "cortex", "model": "x'y"}]}`},
		{name: "redis without addr", body: `{"port": 1, "knowledge": {"table": "T"}, "transcript": {"type": "redis"}}`},
		{name: "pgvector without embedder", body: `{"port": 1, "warehouse": {"type": "postgres", "postgres": {"dsn": "x"}}, "knowledge": {"table": "kb"}, "embedding": {"model": "m", "dimension": 3}, "generation": [{"provider": "openai", "model": "gpt-4o-mini"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestLoad_PGVector(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"warehouse": {"type": "postgres", "postgres": {"dsn": "postgres://localhost/kb"}},
		"knowledge": {"table": "public.cs_table", "question_column": "question", "answer_column": "answer", "embedding_column": "question_embed"},
		"embedding": {"provider": "gemini", "model": "gemini-embedding-001", "dimension": 768},
		"generation": [{"provider": "gemini", "model": "gemini-2.0-flash"}, {"provider": "openai", "model": "gpt-4o-mini"}],
		"chat": {"show_sources": false}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendPGVector, cfg.Knowledge.Backend)
	require.Equal(t, "RETRIEVAL_QUERY", cfg.Embedding.TaskType)
	require.Len(t, cfg.Generation, 2)
	require.False(t, cfg.Chat.SourcesVisible())
}

func TestLoad_EnvOverlay(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("SNOWFLAKE_PASSWORD=from-dotenv\n"), 0o600))
	t.Setenv("SNOWFLAKE_ACCOUNT", "env-account")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	path := writeConfig(t, `{
		"port": 8080,
		"dotenv_file": "`+envPath+`",
		"warehouse": {"snowflake": {"account": "file-account"}},
		"knowledge": {"table": "CS_TABLE"},
		"providers": {"openai": {"base_url": "http://localhost:9999"}}
	}`)
	t.Cleanup(func() { _ = os.Unsetenv("SNOWFLAKE_PASSWORD") })
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "env-account", cfg.Warehouse.Snowflake.Account)
	require.Equal(t, "from-dotenv", cfg.Warehouse.Snowflake.Password)
	args, ok := cfg.ProviderArgs("openai").(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "sk-env", args["api_key"])
	require.Equal(t, "http://localhost:9999", args["base_url"])
}
