package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"

	"github.com/xxxsen/csassist/internal/pkg/dbutil"
)

const (
	WarehouseSnowflake = "snowflake"
	WarehousePostgres  = "postgres"

	BackendCortex   = "cortex"
	BackendPGVector = "pgvector"

	TranscriptMemory = "memory"
	TranscriptRedis  = "redis"
)

type Config struct {
	Port          int                    `json:"port"`
	LogConfig     logger.LogConfig       `json:"log_config"`
	DotenvFile    string                 `json:"dotenv_file"`
	CORSAllowlist []string               `json:"cors_allowlist"`
	RateLimit     RateLimitConfig        `json:"rate_limit"`
	Warehouse     WarehouseConfig        `json:"warehouse"`
	Knowledge     KnowledgeConfig        `json:"knowledge"`
	Embedding     EmbeddingConfig        `json:"embedding"`
	Generation    []GeneratorConfig      `json:"generation"`
	Providers     map[string]interface{} `json:"providers"`
	Transcript    TranscriptConfig       `json:"transcript"`
	Chat          ChatConfig             `json:"chat"`
}

type RateLimitConfig struct {
	PerMinute float64 `json:"per_minute"`
	Burst     int     `json:"burst"`
}

type WarehouseConfig struct {
	Type      string          `json:"type"`
	Snowflake SnowflakeConfig `json:"snowflake"`
	Postgres  PostgresConfig  `json:"postgres"`
}

type SnowflakeConfig struct {
	Account   string `json:"account"`
	User      string `json:"user"`
	Password  string `json:"password"`
	Warehouse string `json:"warehouse"`
	Database  string `json:"database"`
	Schema    string `json:"schema"`
	Role      string `json:"role"`
	Host      string `json:"host"`
	TokenFile string `json:"token_file"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type KnowledgeConfig struct {
	Backend         string `json:"backend"`
	Table           string `json:"table"`
	QuestionColumn  string `json:"question_column"`
	AnswerColumn    string `json:"answer_column"`
	EmbeddingColumn string `json:"embedding_column"`
	DefaultTopK     int    `json:"default_top_k"`
	MaxTopK         int    `json:"max_top_k"`
}

// EmbeddingConfig pairs the embedding model with the dimension of the stored
// vectors. Both must match what the knowledge table was built with.
type EmbeddingConfig struct {
	Provider        string `json:"provider"`
	Model           string `json:"model"`
	Dimension       int    `json:"dimension"`
	TaskType        string `json:"task_type"`
	CacheSize       int    `json:"cache_size"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds"`
}

type GeneratorConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type TranscriptConfig struct {
	Type        string      `json:"type"`
	IdleMinutes int         `json:"idle_minutes"`
	SweepSpec   string      `json:"sweep_spec"`
	Redis       RedisConfig `json:"redis"`
}

type RedisConfig struct {
	Addr      string `json:"addr"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
}

type ChatConfig struct {
	ShowSources      *bool `json:"show_sources"`
	TimeoutSeconds   int   `json:"timeout_seconds"`
	MaxQuestionChars int   `json:"max_question_chars"`
}

func (c ChatConfig) SourcesVisible() bool {
	if c.ShowSources == nil {
		return true
	}
	return *c.ShowSources
}

// cortexEmbedDimensions lists the vector size produced by each cortex embedding model.
var cortexEmbedDimensions = map[string]int{
	"snowflake-arctic-embed-m":      768,
	"snowflake-arctic-embed-m-v1.5": 768,
	"e5-base-v2":                    768,
	"snowflake-arctic-embed-l-v2.0": 1024,
	"nv-embed-qa-4":                 1024,
	"multilingual-e5-large":         1024,
	"voyage-multilingual-2":         1024,
}

func CortexEmbedDimension(model string) (int, bool) {
	dim, ok := cortexEmbedDimensions[strings.ToLower(strings.TrimSpace(model))]
	return dim, ok
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DotenvFile != "" {
		if err := godotenv.Load(cfg.DotenvFile); err != nil {
			return nil, fmt.Errorf("load dotenv %s: %w", cfg.DotenvFile, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	sf := &cfg.Warehouse.Snowflake
	overlay := map[string]*string{
		"SNOWFLAKE_ACCOUNT":   &sf.Account,
		"SNOWFLAKE_USER":      &sf.User,
		"SNOWFLAKE_PASSWORD":  &sf.Password,
		"SNOWFLAKE_WAREHOUSE": &sf.Warehouse,
		"SNOWFLAKE_DATABASE":  &sf.Database,
		"SNOWFLAKE_SCHEMA":    &sf.Schema,
		"SNOWFLAKE_ROLE":      &sf.Role,
		"SNOWFLAKE_HOST":      &sf.Host,
		"CSASSIST_PG_DSN":     &cfg.Warehouse.Postgres.DSN,
		"CSASSIST_REDIS_ADDR": &cfg.Transcript.Redis.Addr,
	}
	for key, dst := range overlay {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	keys := map[string]string{
		"gemini":    "GEMINI_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"anthropic": "ANTHROPIC_API_KEY",
	}
	for provider, env := range keys {
		v := strings.TrimSpace(os.Getenv(env))
		if v == "" {
			continue
		}
		if cfg.Providers == nil {
			cfg.Providers = map[string]interface{}{}
		}
		args, _ := cfg.Providers[provider].(map[string]interface{})
		if args == nil {
			args = map[string]interface{}{}
		}
		if existing, _ := args["api_key"].(string); existing == "" {
			args["api_key"] = v
		}
		cfg.Providers[provider] = args
	}
}

func (cfg *Config) normalize() error {
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.RateLimit.PerMinute > 0 && cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 1
	}
	if err := cfg.normalizeWarehouse(); err != nil {
		return err
	}
	if err := cfg.normalizeKnowledge(); err != nil {
		return err
	}
	if err := cfg.normalizeEmbedding(); err != nil {
		return err
	}
	if err := cfg.normalizeGeneration(); err != nil {
		return err
	}
	if err := cfg.normalizeTranscript(); err != nil {
		return err
	}
	if cfg.Chat.MaxQuestionChars <= 0 {
		cfg.Chat.MaxQuestionChars = 2000
	}
	if cfg.Chat.TimeoutSeconds < 0 {
		return fmt.Errorf("chat.timeout_seconds must not be negative")
	}
	return nil
}

func (cfg *Config) normalizeWarehouse() error {
	wh := &cfg.Warehouse
	wh.Type = strings.ToLower(strings.TrimSpace(wh.Type))
	if wh.Type == "" {
		wh.Type = WarehouseSnowflake
	}
	switch wh.Type {
	case WarehouseSnowflake:
		if wh.Snowflake.TokenFile == "" {
			wh.Snowflake.TokenFile = "/snowflake/session/token"
		}
	case WarehousePostgres:
		if wh.Postgres.DSN == "" {
			return fmt.Errorf("warehouse.postgres.dsn is required for postgres warehouse")
		}
	default:
		return fmt.Errorf("warehouse.type must be snowflake or postgres")
	}
	return nil
}

func (cfg *Config) normalizeKnowledge() error {
	kb := &cfg.Knowledge
	kb.Backend = strings.ToLower(strings.TrimSpace(kb.Backend))
	if kb.Backend == "" {
		kb.Backend = BackendCortex
		if cfg.Warehouse.Type == WarehousePostgres {
			kb.Backend = BackendPGVector
		}
	}
	switch kb.Backend {
	case BackendCortex:
		if cfg.Warehouse.Type != WarehouseSnowflake {
			return fmt.Errorf("knowledge.backend cortex requires a snowflake warehouse")
		}
	case BackendPGVector:
		if cfg.Warehouse.Type != WarehousePostgres {
			return fmt.Errorf("knowledge.backend pgvector requires a postgres warehouse")
		}
	default:
		return fmt.Errorf("knowledge.backend must be cortex or pgvector")
	}
	if kb.Table == "" {
		return fmt.Errorf("knowledge.table is required")
	}
	if !dbutil.ValidTablePath(kb.Table) {
		return fmt.Errorf("knowledge.table is not a valid table path: %s", kb.Table)
	}
	if kb.QuestionColumn == "" {
		kb.QuestionColumn = "QUESTION"
	}
	if kb.AnswerColumn == "" {
		kb.AnswerColumn = "ANSWER"
	}
	if kb.EmbeddingColumn == "" {
		kb.EmbeddingColumn = "QUESTION_EMBED"
	}
	for _, col := range []string{kb.QuestionColumn, kb.AnswerColumn, kb.EmbeddingColumn} {
		if !dbutil.ValidIdentifier(col) {
			return fmt.Errorf("knowledge column is not a valid identifier: %s", col)
		}
	}
	if kb.MaxTopK <= 0 {
		kb.MaxTopK = 5
	}
	if kb.DefaultTopK <= 0 {
		kb.DefaultTopK = 3
	}
	if kb.DefaultTopK > kb.MaxTopK {
		return fmt.Errorf("knowledge.default_top_k must not exceed knowledge.max_top_k")
	}
	return nil
}

func (cfg *Config) normalizeEmbedding() error {
	emb := &cfg.Embedding
	emb.Provider = strings.ToLower(strings.TrimSpace(emb.Provider))
	if emb.Provider == "" && cfg.Knowledge.Backend == BackendCortex {
		emb.Provider = BackendCortex
	}
	if emb.Model == "" && emb.Provider == BackendCortex {
		emb.Model = "snowflake-arctic-embed-m"
	}
	if emb.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if !dbutil.ValidModelName(emb.Model) {
		return fmt.Errorf("embedding.model is not a valid model name: %s", emb.Model)
	}
	switch cfg.Knowledge.Backend {
	case BackendCortex:
		if emb.Provider != BackendCortex {
			return fmt.Errorf("embedding.provider must be cortex for the cortex backend")
		}
		known, ok := CortexEmbedDimension(emb.Model)
		if emb.Dimension == 0 && ok {
			emb.Dimension = known
		}
		if emb.Dimension != 768 && emb.Dimension != 1024 {
			return fmt.Errorf("embedding.dimension must be 768 or 1024 for cortex")
		}
		if ok && known != emb.Dimension {
			return fmt.Errorf("embedding model %s produces %d-dim vectors, configured %d", emb.Model, known, emb.Dimension)
		}
	case BackendPGVector:
		if emb.Provider == "" || emb.Provider == BackendCortex {
			return fmt.Errorf("embedding.provider is required for the pgvector backend")
		}
		if emb.Dimension <= 0 {
			return fmt.Errorf("embedding.dimension is required")
		}
		if emb.TaskType == "" {
			emb.TaskType = "RETRIEVAL_QUERY"
		}
	}
	if emb.CacheSize < 0 || emb.CacheTTLSeconds < 0 {
		return fmt.Errorf("embedding cache settings must not be negative")
	}
	return nil
}

func (cfg *Config) normalizeGeneration() error {
	if len(cfg.Generation) == 0 {
		if cfg.Warehouse.Type != WarehouseSnowflake {
			return fmt.Errorf("generation is required")
		}
		cfg.Generation = []GeneratorConfig{{Provider: BackendCortex, Model: "mistral-large2"}}
	}
	for i := range cfg.Generation {
		item := &cfg.Generation[i]
		item.Provider = strings.ToLower(strings.TrimSpace(item.Provider))
		if item.Provider == "" {
			return fmt.Errorf("generation[%d].provider is required", i)
		}
		if item.Provider == BackendCortex && cfg.Warehouse.Type != WarehouseSnowflake {
			return fmt.Errorf("generation[%d]: cortex requires a snowflake warehouse", i)
		}
		if !dbutil.ValidModelName(item.Model) {
			return fmt.Errorf("generation[%d].model is not a valid model name: %q", i, item.Model)
		}
	}
	return nil
}

func (cfg *Config) normalizeTranscript() error {
	tr := &cfg.Transcript
	tr.Type = strings.ToLower(strings.TrimSpace(tr.Type))
	if tr.Type == "" {
		tr.Type = TranscriptMemory
	}
	if tr.IdleMinutes <= 0 {
		tr.IdleMinutes = 120
	}
	if tr.SweepSpec == "" {
		tr.SweepSpec = "*/10 * * * *"
	}
	switch tr.Type {
	case TranscriptMemory:
	case TranscriptRedis:
		if tr.Redis.Addr == "" {
			return fmt.Errorf("transcript.redis.addr is required for redis transcript")
		}
		if tr.Redis.KeyPrefix == "" {
			tr.Redis.KeyPrefix = "csassist"
		}
	default:
		return fmt.Errorf("transcript.type must be memory or redis")
	}
	return nil
}

// ProviderArgs returns the raw settings block for a named AI provider.
func (cfg *Config) ProviderArgs(name string) interface{} {
	if cfg.Providers == nil {
		return nil
	}
	return cfg.Providers[strings.ToLower(strings.TrimSpace(name))]
}

// Properties is the read-only view of the chat controls exposed to clients.
type Properties struct {
	DefaultTopK    int      `json:"default_top_k"`
	MaxTopK        int      `json:"max_top_k"`
	ShowSources    bool     `json:"show_sources"`
	Backend        string   `json:"backend"`
	EmbeddingModel string   `json:"embedding_model"`
	Generators     []string `json:"generators"`
}

func (cfg *Config) Properties() Properties {
	gens := make([]string, 0, len(cfg.Generation))
	for _, item := range cfg.Generation {
		gens = append(gens, item.Provider+"/"+item.Model)
	}
	return Properties{
		DefaultTopK:    cfg.Knowledge.DefaultTopK,
		MaxTopK:        cfg.Knowledge.MaxTopK,
		ShowSources:    cfg.Chat.SourcesVisible(),
		Backend:        cfg.Knowledge.Backend,
		EmbeddingModel: cfg.Embedding.Model,
		Generators:     gens,
	}
}
