package pipeline

import (
	"encoding/json"
	"errors"
	"strings"
)

// decodeModelPayload strips an optional markdown fence and decodes the
// payload into the target type. Anything that is not the expected JSON
// shape is an error; callers decide whether a repair pass is warranted.
func decodeModelPayload[T any](raw []byte) (T, error) {
	var zero T
	cleaned := trimCodeFence(string(raw))
	if cleaned == "" {
		return zero, errors.New("empty model payload")
	}
	var decoded T
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return zero, err
	}
	return decoded, nil
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
