package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gorm.io/gorm"

	"medicopilot/src/core/extract"
	"medicopilot/src/core/rag"
	"medicopilot/src/core/upload"
	"medicopilot/src/fsutil"
	"medicopilot/src/infrastructure/integrations/ollama"
	"medicopilot/src/infrastructure/integrations/openai"
	"medicopilot/src/infrastructure/integrations/unstructured"
	"medicopilot/src/infrastructure/job"
	"medicopilot/src/log"
	"medicopilot/src/storage/elasticsearch"
	"medicopilot/src/storage/memory"
	"medicopilot/src/storage/minioctrl"
	"medicopilot/src/storage/weaviate"
)

// components holds the pipeline collaborators shared by every command.
type components struct {
	store     rag.VectorStore
	embedder  rag.Embedder
	generator rag.Generator
	ingestion *rag.IngestionPipeline
	retrieval *rag.RetrievalPipeline
	documents *rag.Documents
}

func buildComponents() (*components, error) {
	store, err := newVectorStore()
	if err != nil {
		return nil, err
	}

	ollamaClient, err := ollama.NewClient(viper.GetString("ollama.url"), nil)
	if err != nil {
		return nil, err
	}
	embedder := ollama.NewEmbedder(ollamaClient, viper.GetString("ollama.embedding_model"))

	generator, err := newGenerator(ollamaClient)
	if err != nil {
		return nil, err
	}

	chunker := rag.NewChunker(viper.GetInt("rag.chunk_size"), viper.GetInt("rag.chunk_overlap"))

	return &components{
		store:     store,
		embedder:  embedder,
		generator: generator,
		ingestion: rag.NewIngestionPipeline(chunker, embedder, store),
		retrieval: rag.NewRetrievalPipeline(embedder, store, generator,
			rag.WithGenerationTimeout(viper.GetDuration("rag.generation_timeout"))),
		documents: rag.NewDocuments(store),
	}, nil
}

func newVectorStore() (rag.VectorStore, error) {
	backend := viper.GetString("vectorstore.backend")
	log.Info("Using vector store", "backend", backend)

	switch backend {
	case "weaviate":
		client, err := weaviate.NewClient(viper.GetString("weaviate.url"))
		if err != nil {
			return nil, err
		}
		return weaviate.NewChunkStore(weaviate.NewSDK(client), viper.GetString("weaviate.class")), nil
	case "elasticsearch":
		es, err := elasticsearch.NewClient(viper.GetStringSlice("elasticsearch.addresses"))
		if err != nil {
			return nil, err
		}
		return elasticsearch.NewStore(es, viper.GetString("elasticsearch.index")), nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", backend)
	}
}

func newGenerator(ollamaClient *ollama.Client) (rag.Generator, error) {
	provider := viper.GetString("llm.provider")
	switch provider {
	case "ollama":
		return ollama.NewGenerator(ollamaClient, viper.GetString("ollama.chat_model"), ollama.GeneratorOptions{
			Temperature: viper.GetFloat64("llm.temperature"),
			MaxTokens:   viper.GetInt("llm.max_tokens"),
		}), nil
	case "openai", "saptiva":
		return openai.NewGenerator(openai.Config{
			BaseURL:     viper.GetString("llm.api_url"),
			APIKey:      viper.GetString("llm.api_key"),
			Model:       viper.GetString("llm.model"),
			MaxTokens:   viper.GetInt("llm.max_tokens"),
			Temperature: viper.GetFloat64("llm.temperature"),
			Timeout:     viper.GetDuration("rag.generation_timeout"),
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

func newStager(ctx context.Context) (upload.Stager, error) {
	switch backend := viper.GetString("staging.backend"); backend {
	case "local":
		return fsutil.NewStagingArea(fsutil.NewLocalFileStore(), viper.GetString("staging.dir")), nil
	case "minio":
		svc, err := minioctrl.NewMinioService(
			viper.GetString("minio.endpoint"),
			viper.GetString("minio.access_key"),
			viper.GetString("minio.secret_key"),
			viper.GetBool("minio.use_ssl"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize minio service: %w", err)
		}
		return minioctrl.NewStager(ctx, svc, viper.GetString("minio.bucket"))
	default:
		return nil, fmt.Errorf("unknown staging backend %q", backend)
	}
}

func newExtractor() *extract.Extractor {
	if url := strings.TrimSpace(viper.GetString("extract.unstructured_url")); url != "" {
		return extract.New(unstructured.NewUnstructuredService(url, nil))
	}
	return extract.New(nil)
}

func (c *components) uploadService(ctx context.Context) (*upload.Service, error) {
	stager, err := newStager(ctx)
	if err != nil {
		return nil, err
	}
	return upload.NewService(stager, newExtractor(), c.ingestion, viper.GetInt64("server.max_upload_bytes")), nil
}

func postgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		viper.GetString("postgres.host"),
		viper.GetString("postgres.user"),
		viper.GetString("postgres.password"),
		viper.GetString("postgres.db"),
		viper.GetString("postgres.port"),
	)
}

// openJobRepository connects to PostgreSQL and migrates the jobs table. The
// returned close function releases the connection pool.
func openJobRepository(ctx context.Context) (*job.PostgresJobRepository, func(), error) {
	db, err := job.OpenPostgres(postgresDSN())
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { closeDatabase(db) }

	repo, err := job.NewPostgresJobRepository(db)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	if err := repo.Migrate(ctx); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to migrate jobs table: %w", err)
	}
	return repo, closeDB, nil
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Error(err, "Failed to get underlying *sql.DB")
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Error(err, "Error closing database connection")
	}
}
