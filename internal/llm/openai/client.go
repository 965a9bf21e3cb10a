package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pharmstack/invoice-ledger/internal/common"
	"github.com/pharmstack/invoice-ledger/internal/llm"
)

// Extract implements llm.Extractor using vision chat/completions: the image
// is attached as a data URL alongside the prompt. Transport failures are
// retried with backoff up to cfg.MaxAttempts; this retry layer is
// independent of the pipeline's own OCR-retry loop.
func (c *Client) Extract(ctx context.Context, req llm.ExtractRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"run_id", common.RunIDFromContext(ctx),
		"model", c.cfg.Model,
		"prompt_len", len(req.Prompt),
		"image", req.ImagePath,
		"has_schema", req.Schema != nil,
	)

	dataURL, mimeType, err := llm.ReadAsDataURL(req.ImagePath)
	if err != nil {
		c.logger.Error("llm.extract.read_image_error", "req_id", rid, "error", err)
		return "", fmt.Errorf("read image: %w", err)
	}

	userContent := []map[string]any{
		{"type": "text", "text": req.Prompt},
		{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
	}
	messages := []map[string]any{
		{"role": "system", "content": "You read photographed pharmacy purchase invoices. Answer with exactly what is asked, nothing else."},
		{"role": "user", "content": userContent},
	}
	if req.Schema != nil {
		messages = append(messages, map[string]any{
			"role":    "system",
			"content": "Return ONLY JSON matching this JSON Schema:\n" + mustJSON(req.Schema),
		})
	}

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages":    messages,
	}
	if req.Schema != nil {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	var raw []byte
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		raw, _, lastErr = llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
		if lastErr == nil {
			break
		}
		c.logger.Warn("llm.extract.attempt_failed",
			"req_id", rid, "attempt", attempt, "error", lastErr,
			"mime", mimeType,
		)
		if attempt == c.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.cfg.Backoff * time.Duration(attempt)):
		}
	}
	if lastErr != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", lastErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", lastErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices", "req_id", rid, "raw", string(raw))
		return "", fmt.Errorf("no choices in response")
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)

	if req.Schema != nil {
		cleaned := llm.CleanJSON([]byte(content))
		if err := llm.ValidateJSONAgainstSchema(req.Schema, cleaned); err != nil {
			c.logger.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", err, "content", content,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return content, fmt.Errorf("schema validation failed: %w", err)
		}
		content = string(cleaned)
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
