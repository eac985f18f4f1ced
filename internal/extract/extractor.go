package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sashabaranov/go-openai"

	"platmaster/internal/logger"
	"platmaster/pkg/models"
)

// completionSeed pins the sampling seed so repeated runs over the same plat
// text return stable records.
const completionSeed = 7779

const systemPrompt = "Extract the features from this text."

// Extractor turns consolidated page text into a structured plat record.
type Extractor interface {
	// Extract maps page text to a plat record. Upstream failures (network,
	// malformed output, schema violations) never surface as errors: the
	// result carries a failure reason instead, so one bad page cannot sink
	// a document.
	Extract(ctx context.Context, pageID, text string) Result
}

// Result is the outcome of extracting a single page: either a record that
// validated against the plat schema, or a failure reason.
type Result struct {
	Record *models.Plat
	Failed bool
	Reason string
}

// Success wraps a validated record.
func Success(record *models.Plat) Result {
	return Result{Record: record}
}

// Failure wraps a failure reason.
func Failure(reason string) Result {
	return Result{Failed: true, Reason: reason}
}

// ExtractorConfig configures the completion-based extractor.
type ExtractorConfig struct {
	// Model is the deployment or model name, e.g. "gpt-4.1".
	Model string
	// AzureEndpoint routes requests through an Azure OpenAI deployment
	// when set; empty means the public OpenAI API.
	AzureEndpoint string
}

// DefaultExtractor implements Extractor over a chat-completion endpoint with
// schema-constrained output.
type DefaultExtractor struct {
	client *openai.Client
	config ExtractorConfig
	schema *jsonschema.Schema
	raw    json.RawMessage
	log    zerolog.Logger
}

// NewExtractor creates an extractor with credentials from the environment.
// OPENAI_API_KEY is required; AZURE_OPENAI_ENDPOINT switches the client to
// an Azure deployment.
func NewExtractor(ctx context.Context) (*DefaultExtractor, error) {
	const op = "NewExtractor"

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, WrapExtractError(op, ErrMissingAPIKey, "OPENAI_API_KEY environment variable is required")
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4.1"
	}

	cfg := ExtractorConfig{
		Model:         model,
		AzureEndpoint: os.Getenv("AZURE_OPENAI_ENDPOINT"),
	}

	var client *openai.Client
	if cfg.AzureEndpoint != "" {
		client = openai.NewClientWithConfig(openai.DefaultAzureConfig(apiKey, cfg.AzureEndpoint))
	} else {
		client = openai.NewClient(apiKey)
	}

	return NewExtractorWithDeps(client, cfg)
}

// NewExtractorWithDeps creates an extractor with an explicit client (for
// testing against a fake endpoint).
func NewExtractorWithDeps(client *openai.Client, config ExtractorConfig) (*DefaultExtractor, error) {
	const op = "NewExtractorWithDeps"

	schema, err := compilePlatSchema()
	if err != nil {
		return nil, WrapExtractError(op, err, "plat schema does not compile")
	}
	raw, err := PlatSchemaJSON()
	if err != nil {
		return nil, WrapExtractError(op, err, "plat schema does not serialize")
	}

	return &DefaultExtractor{
		client: client,
		config: config,
		schema: schema,
		raw:    raw,
		log:    logger.WithComponent("extract"),
	}, nil
}

// Extract sends the page text to the completion endpoint under the plat
// schema and validates what comes back.
func (e *DefaultExtractor) Extract(ctx context.Context, pageID, text string) Result {
	if text == "" {
		e.log.Warn().Str("page", pageID).Msg("No text to extract from")
		return Failure(ErrEmptyText.Error())
	}

	e.log.Info().
		Str("page", pageID).
		Str("model", e.config.Model).
		Int("text_length", len(text)).
		Msg("Sending text to completion endpoint")

	seed := completionSeed
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.config.Model,
		Seed:  &seed,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   SchemaName,
				Schema: e.raw,
				Strict: true,
			},
		},
	})
	if err != nil {
		e.log.Error().Err(err).Str("page", pageID).Msg("Completion request failed")
		return Failure(fmt.Sprintf("%v: %v", ErrCompletionFailed, err))
	}
	if len(resp.Choices) == 0 {
		e.log.Error().Str("page", pageID).Msg("Completion returned no choices")
		return Failure(fmt.Sprintf("%v: no choices in response", ErrCompletionFailed))
	}

	content := resp.Choices[0].Message.Content

	// Validate before decoding: decoding into the record type would drop
	// fields the schema is supposed to reject.
	if err := ValidateRecordJSON(e.schema, json.RawMessage(content)); err != nil {
		e.log.Error().Err(err).Str("page", pageID).Msg("Completion content failed schema validation")
		return Failure(err.Error())
	}

	var record models.Plat
	if err := json.Unmarshal([]byte(content), &record); err != nil {
		e.log.Error().Err(err).Str("page", pageID).Msg("Completion content is not valid record JSON")
		return Failure(fmt.Sprintf("%v: %v", ErrInvalidResponse, err))
	}

	normalizeRecord(&record)

	e.log.Info().
		Str("page", pageID).
		Str("elevation", record.Elevation).
		Msg("Extraction completed")

	return Success(&record)
}
