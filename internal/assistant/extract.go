package assistant

import (
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// toolCallFenceRe matches a fenced region tagged tool_call. The payload
// group is everything between the opening tag line and the closing fence.
var toolCallFenceRe = regexp.MustCompile("(?s)```tool_call\\s*\n(.*?)```")

// rawCall is the wire shape of one call object inside a tool_call fence.
// Name is decoded leniently so an entry with a missing or non-string
// name is dropped on its own rather than failing the whole fence.
type rawCall struct {
	Name      any             `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// wrappedCalls is the alternative payload shape: an object holding the
// call list under a known key.
type wrappedCalls struct {
	ToolCalls []rawCall `json:"tool_calls"`
}

// ExtractToolCalls scans assistant text for tool_call fences and parses
// them into ordered descriptors. Matched fences are removed from the
// returned text. A fence whose payload fails to parse is left in place
// and extraction continues with the next fence; failures are local.
// Zero fences returns the input unchanged and a nil slice.
func ExtractToolCalls(text string, logger *zap.Logger) (string, []*ToolCall) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var calls []*ToolCall
	removed := false
	cleaned := toolCallFenceRe.ReplaceAllStringFunc(text, func(fence string) string {
		payload := toolCallFenceRe.FindStringSubmatch(fence)[1]
		parsed, err := parseCallPayload(payload)
		if err != nil {
			logger.Warn("tool call payload did not parse, leaving fence in place",
				zap.Error(err))
			return fence
		}
		removed = true
		for _, rc := range parsed {
			name, ok := rc.Name.(string)
			if !ok || name == "" {
				logger.Debug("dropping tool call entry without a string name")
				continue
			}
			calls = append(calls, &ToolCall{
				Name:   name,
				Params: decodeArguments(rc.Arguments),
				Status: CallPending,
			})
		}
		return ""
	})

	if !removed {
		return text, calls
	}
	return strings.TrimSpace(cleaned), calls
}

// parseCallPayload accepts either a bare JSON array of call objects or
// an object wrapping the array under "tool_calls".
func parseCallPayload(payload string) ([]rawCall, error) {
	payload = strings.TrimSpace(payload)

	var bare []rawCall
	if err := json.Unmarshal([]byte(payload), &bare); err == nil {
		return bare, nil
	}

	var wrapped wrappedCalls
	if err := json.Unmarshal([]byte(payload), &wrapped); err != nil {
		return nil, err
	}
	return wrapped.ToolCalls, nil
}

// decodeArguments keeps the arguments payload only when it is a JSON
// object; any other shape yields empty params.
func decodeArguments(raw json.RawMessage) map[string]any {
	params := map[string]any{}
	if len(raw) == 0 {
		return params
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return map[string]any{}
	}
	return params
}
