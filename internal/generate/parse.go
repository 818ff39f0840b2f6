package generate

import (
	"encoding/json"
	"strings"

	"github.com/hyperjump/historias/internal/models"
)

// FallbackTitle is the title of records built from output that is not JSON.
const FallbackTitle = "Historia Generada"

// rawContent accepts the fields of every platform's response shape.
type rawContent struct {
	Title        string          `json:"title"`
	Hook         string          `json:"hook"`
	MainTweet    string          `json:"main_tweet"`
	Body         json.RawMessage `json:"body"`
	Thread       []string        `json:"thread"`
	CallToAction string          `json:"call_to_action"`
	Hashtags     json.RawMessage `json:"hashtags"`
	FullText     string          `json:"full_text"`
}

// ParseContent decodes a model response into story content. Code fences and
// surrounding prose are ignored. When no JSON object can be decoded the raw
// text becomes the full text under FallbackTitle and ok is false.
func ParseContent(raw string) (content models.Content, ok bool) {
	obj := jsonObject(raw)
	var rc rawContent
	if obj == "" || json.Unmarshal([]byte(obj), &rc) != nil {
		return models.Content{Title: FallbackTitle, FullText: strings.TrimSpace(raw)}, false
	}

	content = models.Content{
		Title:        strings.TrimSpace(rc.Title),
		Hook:         strings.TrimSpace(rc.Hook),
		Body:         stringList(rc.Body),
		CallToAction: strings.TrimSpace(rc.CallToAction),
		Hashtags:     models.NormalizeHashtags(hashtagList(rc.Hashtags)),
		FullText:     strings.TrimSpace(rc.FullText),
	}
	if content.Hook == "" {
		content.Hook = strings.TrimSpace(rc.MainTweet)
	}
	if len(content.Body) == 0 {
		for _, t := range rc.Thread {
			if t = strings.TrimSpace(t); t != "" {
				content.Body = append(content.Body, t)
			}
		}
	}
	if content.FullText == "" {
		content.FullText = content.Compose()
	}
	return content, true
}

// jsonObject returns the outermost {...} span of s, or "".
func jsonObject(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// stringList accepts a JSON array of strings or a single string split on blank lines.
func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var one string
		if json.Unmarshal(raw, &one) != nil {
			return nil
		}
		list = strings.Split(strings.ReplaceAll(one, "\r\n", "\n"), "\n\n")
	}
	var out []string
	for _, p := range list {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// hashtagList accepts an array or a space-separated string.
func hashtagList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return list
	}
	var one string
	if json.Unmarshal(raw, &one) == nil {
		return strings.Fields(one)
	}
	return nil
}
