package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultDocumentPath  = "./data/DevOpsknowledgebase.pdf"

	EnvOllamaBaseURL = "OLLAMA_BASE_URL"
	EnvDocumentPath  = "DOCUMENT_PATH"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	ChunkerWindow    = "window"
	ChunkerRecursive = "recursive"

	BackendChromem  = "chromem"
	BackendPGVector = "pgvector"

	DriverPGDriver = "pgdriver"
	DriverPQ       = "pq"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	Document DocumentConfig `yaml:"document"`
	RAG      RAGConfig      `yaml:"rag"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	ChatLLM  LLMConfig      `yaml:"chat_llm"`
	Index    IndexConfig    `yaml:"index"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// OllamaConfig holds the single backend base URL shared by embeddings,
// generation and model listing unless an LLM section overrides it.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
}

type DocumentConfig struct {
	Path string `yaml:"path"`
}

type RAGConfig struct {
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	Chunker           string `yaml:"chunker"`
	NumQueries        int    `yaml:"num_queries"`
	TopK              int    `yaml:"top_k"`
	MaxContextChars   int    `yaml:"max_context_chars"`
	SearchWorkers     int    `yaml:"search_workers"`
	RebuildPerRequest bool   `yaml:"rebuild_per_request"`
}

type LLMConfig struct {
	Provider  string        `yaml:"provider"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	Key       string        `yaml:"key"`
	BatchSize int           `yaml:"batch_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

type IndexConfig struct {
	Backend    string `yaml:"backend"`
	Collection string `yaml:"collection"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			RequestTimeout:  5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Ollama:   OllamaConfig{BaseURL: DefaultOllamaBaseURL},
		Document: DocumentConfig{Path: DefaultDocumentPath},
		RAG: RAGConfig{
			ChunkSize:     1200,
			ChunkOverlap:  300,
			Chunker:       ChunkerWindow,
			NumQueries:    3,
			TopK:          4,
			SearchWorkers: 4,
		},
		EmbedLLM: LLMConfig{
			Provider:  ProviderOllama,
			Model:     "nomic-embed-text",
			BatchSize: 32,
			Timeout:   60 * time.Second,
		},
		ChatLLM: LLMConfig{
			Provider: ProviderOllama,
			Timeout:  2 * time.Minute,
		},
		Index: IndexConfig{
			Backend:    BackendChromem,
			Collection: "devops-rag",
		},
		Database: DatabaseConfig{Driver: DriverPGDriver},
		Log:      LogConfig{Level: "info", Format: "console"},
	}
}

// LoadConfig reads the YAML file at path on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	cfg.fillDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvOllamaBaseURL)); v != "" {
		c.Ollama.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDocumentPath)); v != "" {
		c.Document.Path = v
	}
}

// fillDerived points LLM sections without their own base URL at the shared
// Ollama backend.
func (c *Config) fillDerived() {
	c.Ollama.BaseURL = strings.TrimRight(c.Ollama.BaseURL, "/")
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = DefaultOllamaBaseURL
	}
	for _, l := range []*LLMConfig{&c.EmbedLLM, &c.ChatLLM} {
		if l.Provider == "" {
			l.Provider = ProviderOllama
		}
		if l.BaseURL == "" && l.Provider == ProviderOllama {
			l.BaseURL = c.Ollama.BaseURL
		}
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Document.Path == "" {
		errs = append(errs, errors.New("document.path is required"))
	}
	if c.RAG.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk_size must be > 0, got %d", c.RAG.ChunkSize))
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk_overlap must be >= 0 and < chunk_size, got %d", c.RAG.ChunkOverlap))
	}
	if c.RAG.NumQueries < 0 {
		errs = append(errs, fmt.Errorf("rag.num_queries must be >= 0, got %d", c.RAG.NumQueries))
	}
	if c.RAG.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top_k must be > 0, got %d", c.RAG.TopK))
	}
	if c.RAG.SearchWorkers < 0 {
		errs = append(errs, fmt.Errorf("rag.search_workers must be >= 0, got %d", c.RAG.SearchWorkers))
	}
	if c.RAG.MaxContextChars < 0 {
		errs = append(errs, fmt.Errorf("rag.max_context_chars must be >= 0, got %d", c.RAG.MaxContextChars))
	}
	switch c.RAG.Chunker {
	case ChunkerWindow, ChunkerRecursive:
	default:
		errs = append(errs, fmt.Errorf("unsupported rag.chunker: %q", c.RAG.Chunker))
	}
	for name, l := range map[string]LLMConfig{"embed_llm": c.EmbedLLM, "chat_llm": c.ChatLLM} {
		switch l.Provider {
		case ProviderOllama, ProviderOpenAI:
		default:
			errs = append(errs, fmt.Errorf("unsupported %s.provider: %q", name, l.Provider))
		}
	}
	if c.EmbedLLM.Model == "" {
		errs = append(errs, errors.New("embed_llm.model is required"))
	}
	switch c.Index.Backend {
	case BackendChromem:
	case BackendPGVector:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the pgvector backend"))
		}
		if c.Database.Driver != DriverPGDriver && c.Database.Driver != DriverPQ {
			errs = append(errs, fmt.Errorf("unsupported database.driver: %q", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported index.backend: %q", c.Index.Backend))
	}
	return errors.Join(errs...)
}
