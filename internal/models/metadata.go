package models

// Metadata keys written by enrichment
const (
	MetaImgCaption       = "img_caption"
	MetaOCR              = "ocr"
	MetaOCRStatus        = "ocr_status"
	MetaWidth            = "width"
	MetaHeight           = "height"
	MetaBlurHash         = "ogImgBlurUrl"
	MetaVideoURL         = "video_url"
	MetaIsPageScreenshot = "isPageScreenshot"
	MetaMediaType        = "mediaType"
)

// MergeMetadata overlays updates onto existing. An update only replaces a key
// when it carries a value; nil, empty strings, zero numbers and false keep
// whatever was there before. Neither input is modified.
func MergeMetadata(existing, updates map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(updates))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range updates {
		if isBlank(v) {
			continue
		}
		merged[k] = v
	}
	return merged
}

func isBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case int:
		return val == 0
	case int64:
		return val == 0
	case float64:
		return val == 0
	case *string:
		return val == nil || *val == ""
	}
	return false
}
