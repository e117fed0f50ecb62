package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"recollect-worker/internal/config"
)

// OCR statuses stored in meta_data.ocr_status
const (
	OCRSuccess = "success"
	OCRNoText  = "no_text"
	OCRFailed  = "failed"
)

const (
	captionPrompt = "Describe this image in one or two sentences for a bookmark library. " +
		"Mention visible products, people, places or topics that would help someone find it later. " +
		"Reply with the description only."
	ocrPrompt = "Extract all readable text from this image, preserving line breaks. " +
		"If there is no readable text reply with exactly NO_TEXT."
	noTextMarker = "NO_TEXT"
)

// Vision captions images and extracts their text
type Vision interface {
	Caption(ctx context.Context, data []byte, contentType string) (string, error)
	ExtractText(ctx context.Context, data []byte, contentType string) (text, status string, err error)
}

// Gemini talks to Gemini through its OpenAI-compatible endpoint
type Gemini struct {
	client *openai.Client
	model  string
}

// NewGemini creates a Gemini client
func NewGemini(cfg config.AIConfig) *Gemini {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Gemini{client: openai.NewClientWithConfig(clientCfg), model: cfg.Model}
}

// Caption returns a short description of the image
func (g *Gemini) Caption(ctx context.Context, data []byte, contentType string) (string, error) {
	out, err := g.ask(ctx, captionPrompt, data, contentType)
	if err != nil {
		return "", fmt.Errorf("caption: %w", err)
	}
	return out, nil
}

// ExtractText returns the text found in the image and an ocr_status value
func (g *Gemini) ExtractText(ctx context.Context, data []byte, contentType string) (string, string, error) {
	out, err := g.ask(ctx, ocrPrompt, data, contentType)
	if err != nil {
		return "", OCRFailed, fmt.Errorf("ocr: %w", err)
	}
	if out == "" || out == noTextMarker {
		return "", OCRNoText, nil
	}
	return out, OCRSuccess, nil
}

func (g *Gemini) ask(ctx context.Context, prompt string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
						URL:    dataURL,
						Detail: openai.ImageURLDetailAuto,
					}},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from %s", g.model)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
