package cmd

import "github.com/spf13/viper"

func settingDefaultConfig() {
	// Enable automatic environment variable binding
	viper.AutomaticEnv()

	viper.BindEnv("app.name", "APP_NAME")
	viper.BindEnv("app.version", "APP_VERSION")
	viper.SetDefault("app.name", appName)
	viper.SetDefault("app.version", appVersion)

	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.shutdown_timeout", "SERVER_SHUTDOWN_TIMEOUT")
	viper.BindEnv("server.max_upload_bytes", "MAX_FILE_SIZE")
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.shutdown_timeout", "5s")
	viper.SetDefault("server.max_upload_bytes", 10<<20)

	// Pipeline
	viper.BindEnv("rag.chunk_size", "CHUNK_SIZE")
	viper.BindEnv("rag.chunk_overlap", "CHUNK_OVERLAP")
	viper.BindEnv("rag.max_results", "MAX_RETRIEVAL_RESULTS")
	viper.BindEnv("rag.generation_timeout", "GENERATION_TIMEOUT")
	viper.SetDefault("rag.chunk_size", 1000)
	viper.SetDefault("rag.chunk_overlap", 200)
	viper.SetDefault("rag.max_results", 5)
	viper.SetDefault("rag.generation_timeout", "30s")

	// Vector store
	viper.BindEnv("vectorstore.backend", "VECTORSTORE_BACKEND")
	viper.BindEnv("weaviate.url", "WEAVIATE_URL")
	viper.BindEnv("weaviate.class", "WEAVIATE_CLASS")
	viper.BindEnv("elasticsearch.addresses", "ELASTICSEARCH_ADDRESSES")
	viper.BindEnv("elasticsearch.index", "ELASTICSEARCH_INDEX")
	viper.SetDefault("vectorstore.backend", "weaviate")
	viper.SetDefault("weaviate.url", "http://localhost:8080")
	viper.SetDefault("weaviate.class", "DocumentChunk")
	viper.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	viper.SetDefault("elasticsearch.index", "document-chunks")

	// Models
	viper.BindEnv("ollama.url", "OLLAMA_URL")
	viper.BindEnv("ollama.embedding_model", "EMBEDDING_MODEL")
	viper.BindEnv("ollama.chat_model", "OLLAMA_CHAT_MODEL")
	viper.SetDefault("ollama.url", "http://localhost:11434")
	viper.SetDefault("ollama.embedding_model", "nomic-embed-text")
	viper.SetDefault("ollama.chat_model", "llama3.1")

	viper.BindEnv("llm.provider", "LLM_PROVIDER")
	viper.BindEnv("llm.api_url", "SAPTIVA_API_URL")
	viper.BindEnv("llm.api_key", "SAPTIVA_API_KEY")
	viper.BindEnv("llm.model", "SAPTIVA_MODEL")
	viper.BindEnv("llm.max_tokens", "LLM_MAX_TOKENS")
	viper.BindEnv("llm.temperature", "LLM_TEMPERATURE")
	viper.SetDefault("llm.provider", "ollama")
	viper.SetDefault("llm.api_url", "https://api.saptiva.com/v1")
	viper.SetDefault("llm.model", "Saptiva Turbo")
	viper.SetDefault("llm.max_tokens", 1000)
	viper.SetDefault("llm.temperature", 0.7)

	// Extraction and staging
	viper.BindEnv("extract.unstructured_url", "UNSTRUCTURED_API_URL")
	viper.BindEnv("staging.backend", "STAGING_BACKEND")
	viper.BindEnv("staging.dir", "STAGING_DIR")
	viper.SetDefault("extract.unstructured_url", "")
	viper.SetDefault("staging.backend", "local")
	viper.SetDefault("staging.dir", "data")

	// Map environment variables to Viper keys for MinIO
	viper.BindEnv("minio.endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("minio.access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("minio.secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("minio.use_ssl", "MINIO_USE_SSL")
	viper.BindEnv("minio.bucket", "MINIO_BUCKET")
	viper.SetDefault("minio.endpoint", "localhost:9000")
	viper.SetDefault("minio.access_key", "minioadmin")
	viper.SetDefault("minio.secret_key", "minioadmin")
	viper.SetDefault("minio.use_ssl", false)
	viper.SetDefault("minio.bucket", "uploads")

	// Map environment variables to Viper keys for PostgreSQL
	viper.BindEnv("postgres.host", "POSTGRES_HOST")
	viper.BindEnv("postgres.port", "POSTGRES_PORT")
	viper.BindEnv("postgres.user", "POSTGRES_USER")
	viper.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	viper.BindEnv("postgres.db", "POSTGRES_DB")
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", "5432")
	viper.SetDefault("postgres.user", "postgres")
	viper.SetDefault("postgres.password", "postgres")
	viper.SetDefault("postgres.db", "medicopilot")

	// Async ingestion is enabled when amqp.url is set
	viper.BindEnv("amqp.url", "AMQP_URL")
	viper.BindEnv("amqp.max_retries", "AMQP_MAX_RETRIES")
	viper.SetDefault("amqp.url", "")
	viper.SetDefault("amqp.max_retries", 3)

	// Logging
	viper.BindEnv("log.level", "LOG_LEVEL")
	viper.BindEnv("log.development", "LOG_DEVELOPMENT")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
}
