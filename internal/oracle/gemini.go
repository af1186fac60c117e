// File: internal/oracle/gemini.go
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/eid-agent/api/schemas"
	"github.com/xkilldash9x/eid-agent/internal/config"
)

// ErrOracle marks intent-extraction failures. Callers never surface it raw;
// Classify already converts it into a fail-open unknown result.
var ErrOracle = errors.New("intent oracle failure")

// FallbackPrompt is what the user sees when the oracle itself breaks.
const FallbackPrompt = "My AI brain had an error. Please try again."

const systemInstruction = `You are an intent extraction engine for an E-ID registration portal.
Classify the user's message into exactly one intent: "register_eid", "download_eid", "update_eid", or "unknown".
Extract these fields when present: name, dob (normalize any date to YYYY-MM-DD), gender (normalize to Male, Female, or Other), phone, address, eId (a 12-digit number).
Registration requires name, dob, gender, phone, and address. Download requires eId. Update requires eId plus at least one of name, phone, or address.
If required fields for the detected intent are missing, keep the intent and set missingInfo to a short, friendly question asking for exactly what is missing.
If the message is not about registering, downloading, or updating an E-ID, use intent "unknown" and set missingInfo to a short explanation of what you can help with.
Respond with JSON only.`

// Classifier turns free text into a structured intent verdict. Must fail
// open: implementations return an unknown-intent result rather than an
// error when extraction breaks.
type Classifier interface {
	Classify(ctx context.Context, text string) schemas.IntentResult
}

// GeminiOracle calls the Gemini generateContent endpoint with a response
// schema that forces the intent JSON shape.
type GeminiOracle struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
	cfg        config.OracleConfig
}

var _ Classifier = (*GeminiOracle)(nil)

// -- Gemini API request/response structures (internal to this file) --

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiSystemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64         `json:"temperature"`
	ResponseMimeType string          `json:"response_mime_type,omitempty"`
	ResponseSchema   json.RawMessage `json:"response_schema,omitempty"`
}

type geminiRequestPayload struct {
	Contents          []geminiContent          `json:"contents"`
	SystemInstruction *geminiSystemInstruction `json:"system_instruction,omitempty"`
	GenerationConfig  geminiGenerationConfig   `json:"generationConfig"`
}

type geminiResponsePayload struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// responseSchema pins the model output to the intent contract.
var responseSchema = json.RawMessage(`{
	"type": "OBJECT",
	"properties": {
		"intent": {"type": "STRING", "enum": ["register_eid", "download_eid", "update_eid", "unknown"]},
		"data": {
			"type": "OBJECT",
			"properties": {
				"name": {"type": "STRING"},
				"dob": {"type": "STRING"},
				"gender": {"type": "STRING"},
				"phone": {"type": "STRING"},
				"address": {"type": "STRING"},
				"eId": {"type": "STRING"},
				"missingInfo": {"type": "STRING"}
			}
		}
	},
	"required": ["intent"]
}`)

// NewGeminiOracle initializes the client.
func NewGeminiOracle(cfg config.OracleConfig, logger *zap.Logger) (*GeminiOracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", cfg.BaseURL, cfg.Model)

	return &GeminiOracle{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		cfg:      cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.Named("oracle.gemini"),
	}, nil
}

// Classify extracts the intent behind text. It never returns an error: on
// any failure the result degrades to unknown with a generic retry prompt.
func (o *GeminiOracle) Classify(ctx context.Context, text string) schemas.IntentResult {
	result, err := o.classify(ctx, text)
	if err != nil {
		o.logger.Error("Intent extraction failed, falling back to unknown.",
			zap.Error(fmt.Errorf("%w: %w", ErrOracle, err)))
		return schemas.IntentResult{
			Intent: schemas.IntentUnknown,
			Data:   schemas.IntentFields{MissingInfo: FallbackPrompt},
		}
	}
	return result
}

func (o *GeminiOracle) classify(ctx context.Context, text string) (schemas.IntentResult, error) {
	payload := geminiRequestPayload{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: text}}},
		},
		SystemInstruction: &geminiSystemInstruction{
			Parts: []geminiPart{{Text: systemInstruction}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      o.cfg.Temperature,
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return schemas.IntentResult{}, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = o.cfg.Timeout * time.Duration(o.cfg.MaxRetries+1)
	b.MaxInterval = 10 * time.Second

	var raw string
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewBuffer(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", o.apiKey)

		resp, err := o.httpClient.Do(httpReq)
		if err != nil {
			o.logger.Warn("Network error during oracle request, retrying.", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return o.handleAPIError(resp.StatusCode, respBody)
		}

		var responsePayload geminiResponsePayload
		if err := json.Unmarshal(respBody, &responsePayload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		if len(responsePayload.Candidates) == 0 || len(responsePayload.Candidates[0].Content.Parts) == 0 {
			return backoff.Permanent(fmt.Errorf("gemini API returned no usable candidates"))
		}

		raw = responsePayload.Candidates[0].Content.Parts[0].Text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return schemas.IntentResult{}, err
	}

	return parseIntentJSON(raw)
}

func (o *GeminiOracle) handleAPIError(statusCode int, body []byte) error {
	o.logger.Error("Gemini API returned error status",
		zap.Int("status", statusCode), zap.ByteString("response", body))
	err := fmt.Errorf("gemini API error: status %d", statusCode)

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // Transient, retry.
	default:
		return backoff.Permanent(err)
	}
}

// parseIntentJSON decodes the model's JSON and normalizes the intent tag.
func parseIntentJSON(raw string) (schemas.IntentResult, error) {
	var decoded struct {
		Intent string               `json:"intent"`
		Data   schemas.IntentFields `json:"data"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return schemas.IntentResult{}, fmt.Errorf("oracle returned malformed JSON: %w", err)
	}
	return schemas.IntentResult{
		Intent: schemas.NormalizeIntent(decoded.Intent),
		Data:   decoded.Data,
	}, nil
}
