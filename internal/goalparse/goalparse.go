// Package goalparse recovers a weekly goal from free-form model output.
//
// Recovery never fails. Strategies run in a fixed order and the first one
// that matches wins; the last strategy accepts any input.
package goalparse

import (
	"encoding/json"
	"strings"

	"github.com/ashureev/pm-advisor/internal/domain"
)

// Stage names the strategy that produced a Result.
type Stage string

const (
	StageStructured   Stage = "structured"
	StageMarkers      Stage = "markers"
	StageEmbeddedJSON Stage = "embedded_json"
	StageRaw          Stage = "raw"
)

// FallbackReason is the reason reported when no strategy found one.
const FallbackReason = "Generated by AI; no explicit reason parsed."

// Result is a recovered goal together with the stage that produced it.
type Result struct {
	domain.WeeklyGoal
	Stage Stage
}

type strategy struct {
	stage Stage
	parse func(raw string) (domain.WeeklyGoal, bool)
}

var strategies = []strategy{
	{StageStructured, parseStructured},
	{StageMarkers, parseMarkers},
	{StageEmbeddedJSON, parseEmbeddedJSON},
}

// Recover extracts a goal and reason from raw.
func Recover(raw string) Result {
	for _, s := range strategies {
		if goal, ok := s.parse(raw); ok {
			return Result{WeeklyGoal: goal, Stage: s.stage}
		}
	}
	return Result{
		WeeklyGoal: domain.WeeklyGoal{Goal: strings.TrimSpace(raw), Reason: FallbackReason},
		Stage:      StageRaw,
	}
}

const fenceTrim = " \n\r\t`"

// parseStructured accepts the canonical schema: a JSON object with both goal
// and reason keys, either as the whole text or inside a ``` fence.
func parseStructured(raw string) (domain.WeeklyGoal, bool) {
	if obj, ok := decodeObject(strings.Trim(raw, fenceTrim)); ok {
		return requireKeys(obj)
	}

	start := strings.Index(raw, "```")
	if start < 0 {
		return domain.WeeklyGoal{}, false
	}
	body := raw[start+3:]
	body = strings.TrimPrefix(body, "json")
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	obj, ok := decodeObject(strings.Trim(body, fenceTrim))
	if !ok {
		return domain.WeeklyGoal{}, false
	}
	return requireKeys(obj)
}

func requireKeys(obj map[string]any) (domain.WeeklyGoal, bool) {
	goal, hasGoal := obj["goal"]
	reason, hasReason := obj["reason"]
	if !hasGoal || !hasReason {
		return domain.WeeklyGoal{}, false
	}
	return domain.WeeklyGoal{Goal: render(goal), Reason: render(reason)}, true
}

// parseMarkers looks for "goal:" followed by "reason:" in the lower-cased
// text. The returned fields are lower-cased as well.
func parseMarkers(raw string) (domain.WeeklyGoal, bool) {
	lower := strings.ToLower(raw)

	_, afterGoal, found := strings.Cut(lower, "goal:")
	if !found {
		return domain.WeeklyGoal{}, false
	}
	goal, afterReason, found := strings.Cut(afterGoal, "reason:")
	if !found {
		return domain.WeeklyGoal{}, false
	}
	reason, _, _ := strings.Cut(afterReason, "reason:")
	return domain.WeeklyGoal{
		Goal:   strings.TrimSpace(goal),
		Reason: strings.TrimSpace(reason),
	}, true
}

// parseEmbeddedJSON decodes the span from the first '{' to the last '}'.
// Missing keys default to "".
func parseEmbeddedJSON(raw string) (domain.WeeklyGoal, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return domain.WeeklyGoal{}, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err != nil || obj == nil {
		return domain.WeeklyGoal{}, false
	}
	var g domain.WeeklyGoal
	if v, ok := obj["goal"]; ok {
		g.Goal = render(v)
	}
	if v, ok := obj["reason"]; ok {
		g.Reason = render(v)
	}
	return g, true
}

// decodeObject parses s as a JSON object. Raw control characters inside
// string values are escaped first, since models often emit literal newlines.
func decodeObject(s string) (map[string]any, bool) {
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(escapeControlInStrings(s)), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// render returns strings unchanged and any other JSON value as compact JSON.
func render(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func escapeControlInStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		if c == '\\' && inString {
			b.WriteByte(c)
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			b.WriteByte(c)
			continue
		}
		if inString {
			switch c {
			case '\n':
				b.WriteString(`\n`)
				continue
			case '\r':
				b.WriteString(`\r`)
				continue
			case '\t':
				b.WriteString(`\t`)
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
