// Package anthropic defines the wire types of the Anthropic messages API as
// the gateway speaks them. Requests and responses carry an explicit field set
// plus a raw extension map, so unrecognized keys survive a round trip through
// the gateway byte-for-byte.
package anthropic

import (
	"encoding/json"
)

// Message is a single conversation turn. Content is kept raw: it may be a
// plain string or an array of content blocks, and the gateway forwards it
// untouched either way.
type Message struct {
	Role    string          `json:"role" binding:"required,oneof=user assistant"`
	Content json.RawMessage `json:"content" binding:"required"`
}

// Tool describes a tool the model may call.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Usage reports token consumption for a completed message.
type Usage struct {
	InputTokens              int  `json:"input_tokens"`
	OutputTokens             int  `json:"output_tokens"`
	CacheCreationInputTokens *int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     *int `json:"cache_read_input_tokens,omitempty"`
}

// MessagesRequest is the body of POST /v1/messages. The gateway rewrites only
// Model, MaxTokens and Stream; everything else, including keys it has never
// heard of, passes through verbatim via Extra.
type MessagesRequest struct {
	Model         string          `json:"model"`
	Messages      []Message       `json:"messages" binding:"required,min=1,dive"`
	MaxTokens     int             `json:"max_tokens,omitempty"`
	System        json.RawMessage `json:"system,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	TopK          *int            `json:"top_k,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream"`
	Tools         []Tool          `json:"tools,omitempty"`
	ToolChoice    json.RawMessage `json:"tool_choice,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`

	// Extra holds fields not modeled above, merged back on serialization.
	Extra map[string]json.RawMessage `json:"-"`
}

var knownRequestFields = fieldSet(
	"model", "messages", "max_tokens", "system", "temperature", "top_p",
	"top_k", "stop_sequences", "stream", "tools", "tool_choice", "metadata",
)

func (r *MessagesRequest) UnmarshalJSON(data []byte) error {
	type alias MessagesRequest
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = MessagesRequest(a)
	r.Extra = captureUnknown(data, knownRequestFields)
	return nil
}

func (r MessagesRequest) MarshalJSON() ([]byte, error) {
	type alias MessagesRequest
	return mergeExtra(alias(r), r.Extra)
}

// MessagesResponse is the body of a successful upstream reply. Content blocks
// are relayed raw; the upstream's exact JSON is preserved.
type MessagesResponse struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	Role         string            `json:"role"`
	Content      []json.RawMessage `json:"content"`
	Model        string            `json:"model"`
	StopReason   *string           `json:"stop_reason"`
	StopSequence *string           `json:"stop_sequence,omitempty"`
	Usage        Usage             `json:"usage"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownResponseFields = fieldSet(
	"id", "type", "role", "content", "model", "stop_reason", "stop_sequence",
	"usage",
)

func (r *MessagesResponse) UnmarshalJSON(data []byte) error {
	type alias MessagesResponse
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = MessagesResponse(a)
	r.Extra = captureUnknown(data, knownResponseFields)
	return nil
}

func (r MessagesResponse) MarshalJSON() ([]byte, error) {
	type alias MessagesResponse
	return mergeExtra(alias(r), r.Extra)
}

func fieldSet(names ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func captureUnknown(data []byte, known map[string]struct{}) map[string]json.RawMessage {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil
	}
	var extra map[string]json.RawMessage
	for k, v := range all {
		if _, ok := known[k]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra
}

func mergeExtra(v interface{}, extra map[string]json.RawMessage) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}
	merged := make(map[string]json.RawMessage, len(extra)+16)
	for k, raw := range extra {
		merged[k] = raw
	}
	// Known fields win over stale duplicates in the extension map.
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}
