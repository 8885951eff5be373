package planner

import (
	"strings"

	"cine-journey/storage"
)

// Payload keys stored alongside each index entry
const (
	payloadContentID   = "content_id"
	payloadTitle       = "title"
	payloadDescription = "description"
	payloadType        = "content_type"
	payloadDuration    = "duration_minutes"
	payloadGenres      = "genres"
	payloadRating      = "rating"
	payloadYear        = "year"
	payloadSourceURL   = "source_url"
)

func indexText(c storage.Content) string {
	return c.Title + ". " + c.Description
}

func contentPayload(c storage.Content) map[string]any {
	payload := map[string]any{
		payloadContentID:   c.Title,
		payloadTitle:       c.Title,
		payloadDescription: c.Description,
		payloadType:        string(c.ContentType),
		payloadDuration:    c.DurationMinutes,
		payloadGenres:      append([]string(nil), c.Genres...),
	}
	if c.Rating != nil {
		payload[payloadRating] = *c.Rating
	}
	if c.Year != nil {
		payload[payloadYear] = *c.Year
	}
	if c.SourceURL != nil {
		payload[payloadSourceURL] = *c.SourceURL
	}
	return payload
}

// contentFromPayload rebuilds a record from an index payload. Missing or
// mistyped fields fall back to the record defaults.
func contentFromPayload(key string, payload map[string]any) storage.Content {
	c := storage.Content{
		Title:           getString(payload, payloadTitle),
		DurationMinutes: getInt(payload, payloadDuration),
		Rating:          getFloat(payload, payloadRating),
		Genres:          getStrings(payload, payloadGenres),
		Description:     getString(payload, payloadDescription),
		SourceURL:       getOptionalString(payload, payloadSourceURL),
	}
	if c.Title == "" {
		c.Title = key
	}
	if t, err := storage.ParseContentType(getString(payload, payloadType)); err == nil {
		c.ContentType = t
	}
	if year := getInt(payload, payloadYear); year > 0 {
		c.Year = &year
	}

	c.Normalize()
	return c
}

func getString(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getOptionalString(payload map[string]any, key string) *string {
	s := strings.TrimSpace(getString(payload, key))
	if s == "" {
		return nil
	}
	return &s
}

func getInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func getFloat(payload map[string]any, key string) *float64 {
	var f float64
	switch v := payload[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	default:
		return nil
	}
	return &f
}

func getStrings(payload map[string]any, key string) []string {
	switch v := payload[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
