package validate

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"recollect-worker/internal/models"
)

var structValidator = validator.New()

// Decode unmarshals raw into a T and checks its required fields
func Decode[T any](raw json.RawMessage) (T, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("malformed payload: %w", err)
	}
	if err := structValidator.Struct(p); err != nil {
		return p, fmt.Errorf("invalid payload: %w", err)
	}
	return p, nil
}

// Instagram decodes an instagram_imports message
func Instagram(raw json.RawMessage) (models.InstagramPayload, error) {
	return Decode[models.InstagramPayload](raw)
}

// Raindrop decodes a raindrop_imports message
func Raindrop(raw json.RawMessage) (models.RaindropPayload, error) {
	return Decode[models.RaindropPayload](raw)
}

// ImportLink decodes an imports message
func ImportLink(raw json.RawMessage) (models.ImportLinkPayload, error) {
	return Decode[models.ImportLinkPayload](raw)
}

// Enrichment decodes an ai-embeddings message
func Enrichment(raw json.RawMessage) (models.EnrichmentPayload, error) {
	return Decode[models.EnrichmentPayload](raw)
}

// Twitter decodes a twitter_imports message into its variant by the type field
func Twitter(raw json.RawMessage) (models.TwitterPayload, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", err)
	}

	switch head.Type {
	case models.TwitterCreateBookmark:
		p, err := Decode[models.TwitterCreatePayload](raw)
		if err != nil {
			return nil, err
		}
		return &p, nil
	case models.TwitterLinkCategory:
		p, err := Decode[models.TwitterLinkPayload](raw)
		if err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("invalid payload: unknown type %q", head.Type)
	}
}
