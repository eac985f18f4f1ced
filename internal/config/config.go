package config

import (
	"fmt"
	"os"
	"strconv"

	"platmaster/internal/logger"
)

type Config struct {
	// OpenAI Configuration
	OpenAIAPIKey        string
	OpenAIModel         string
	AzureOpenAIEndpoint string // optional; routes completions through an Azure deployment

	// OCR Backend Configuration
	OCRBackend    string // "tesseract" or "vision"
	TesseractLang string

	// Rasterization Configuration
	Pdftoppm  string // binary name or absolute path
	RasterDPI int

	// Region Clustering Configuration
	ClusterEnabled bool
	ClusterRadius  float64 // neighborhood radius in pixels
	ClusterMinSize int     // minimum regions per cluster

	// Output Configuration
	OutputDir      string
	DebugArtifacts bool

	// Server Configuration
	ServerAddr string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4.1"),
		AzureOpenAIEndpoint: getEnv("AZURE_OPENAI_ENDPOINT", ""),
		OCRBackend:          getEnv("OCR_BACKEND", "tesseract"),
		TesseractLang:       getEnv("TESSERACT_LANG", "eng"),
		Pdftoppm:            getEnv("PDFTOPPM_PATH", "pdftoppm"),
		RasterDPI:           getEnvInt("RASTER_DPI", 300),
		ClusterEnabled:      getEnvBool("CLUSTER_ENABLED", false),
		ClusterRadius:       getEnvFloat("CLUSTER_RADIUS_PX", 50),
		ClusterMinSize:      getEnvInt("CLUSTER_MIN_SIZE", 2),
		OutputDir:           getEnv("OUTPUT_DIR", "output"),
		DebugArtifacts:      getEnvBool("DEBUG_ARTIFACTS", false),
		ServerAddr:          getEnv("SERVER_ADDR", ":7777"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:       getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:           getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.OCRBackend != "tesseract" && c.OCRBackend != "vision" {
		return fmt.Errorf("OCR_BACKEND must be 'tesseract' or 'vision', got %q", c.OCRBackend)
	}
	if c.RasterDPI <= 0 {
		return fmt.Errorf("RASTER_DPI must be positive, got %d", c.RasterDPI)
	}
	if c.ClusterRadius <= 0 {
		return fmt.Errorf("CLUSTER_RADIUS_PX must be positive, got %v", c.ClusterRadius)
	}
	if c.ClusterMinSize < 2 {
		return fmt.Errorf("CLUSTER_MIN_SIZE must be at least 2, got %d", c.ClusterMinSize)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
