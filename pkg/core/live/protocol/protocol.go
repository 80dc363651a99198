// Package protocol defines the wire types for the BidiGenerateContent
// websocket API. Client and server messages are plain JSON objects; the
// server envelope carries independent facets rather than a tagged union,
// so a single frame may populate several fields at once.
package protocol

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultEndpoint is the public generative language API host.
	DefaultEndpoint = "https://generativelanguage.googleapis.com"

	bidiPath = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
)

// LiveURL builds the websocket URL for a live session from an http(s) or
// ws(s) endpoint, converting the scheme and attaching the API key.
func LiveURL(endpoint, apiKey string) (string, error) {
	raw := strings.TrimSpace(endpoint)
	if raw == "" {
		raw = DefaultEndpoint
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	// Preserve any base path, but always route to the bidi RPC.
	u.Path = strings.TrimSuffix(u.Path, "/") + bidiPath
	u.RawQuery = url.Values{"key": {apiKey}}.Encode()
	u.Fragment = ""
	return u.String(), nil
}

// SetupMessage is the first client frame on a new connection.
type SetupMessage struct {
	Setup Setup `json:"setup"`
}

// Setup configures the session: model, modalities, system directive,
// and tool declarations.
type Setup struct {
	Model                    string                    `json:"model"`
	GenerationConfig         *GenerationConfig         `json:"generationConfig,omitempty"`
	SystemInstruction        *Content                  `json:"systemInstruction,omitempty"`
	Tools                    []Tool                    `json:"tools,omitempty"`
	InputAudioTranscription  *AudioTranscriptionConfig `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *AudioTranscriptionConfig `json:"outputAudioTranscription,omitempty"`
}

// AudioTranscriptionConfig enables transcription for one audio direction.
// Presence is enablement; the object carries no fields.
type AudioTranscriptionConfig struct{}

type GenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Tool declares either a set of callable functions or a built-in
// capability such as search grounding.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
	GoogleSearch         *GoogleSearch         `json:"googleSearch,omitempty"`
}

// GoogleSearch enables search grounding. Presence is enablement.
type GoogleSearch struct{}

type FunctionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// Schema is the subset of the OpenAPI schema shape accepted for
// function parameters.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// RealtimeInputMessage streams media chunks to the model.
type RealtimeInputMessage struct {
	RealtimeInput RealtimeInput `json:"realtimeInput"`
}

type RealtimeInput struct {
	MediaChunks []MediaChunk `json:"mediaChunks,omitempty"`
}

type MediaChunk struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// ToolResponseMessage answers one or more server tool calls.
type ToolResponseMessage struct {
	ToolResponse ToolResponse `json:"toolResponse"`
}

type ToolResponse struct {
	FunctionResponses []FunctionResponse `json:"functionResponses,omitempty"`
}

type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// ServerMessage is the envelope for every inbound frame.
type ServerMessage struct {
	SetupComplete        *SetupComplete        `json:"setupComplete,omitempty"`
	ServerContent        *ServerContent        `json:"serverContent,omitempty"`
	ToolCall             *ToolCall             `json:"toolCall,omitempty"`
	ToolCallCancellation *ToolCallCancellation `json:"toolCallCancellation,omitempty"`
	GoAway               *GoAway               `json:"goAway,omitempty"`
	UsageMetadata        *UsageMetadata        `json:"usageMetadata,omitempty"`
}

type SetupComplete struct{}

// ServerContent carries model output and turn signals. All fields are
// independent; interrupted and turnComplete may ride alongside content.
type ServerContent struct {
	ModelTurn           *Content           `json:"modelTurn,omitempty"`
	TurnComplete        bool               `json:"turnComplete,omitempty"`
	Interrupted         bool               `json:"interrupted,omitempty"`
	InputTranscription  *Transcription     `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription     `json:"outputTranscription,omitempty"`
	GroundingMetadata   *GroundingMetadata `json:"groundingMetadata,omitempty"`
}

type Transcription struct {
	Text string `json:"text,omitempty"`
}

type GroundingMetadata struct {
	GroundingChunks []GroundingChunk `json:"groundingChunks,omitempty"`
}

type GroundingChunk struct {
	Web *WebSource `json:"web,omitempty"`
}

type WebSource struct {
	URI   string `json:"uri,omitempty"`
	Title string `json:"title,omitempty"`
}

type ToolCall struct {
	FunctionCalls []FunctionCall `json:"functionCalls,omitempty"`
}

type FunctionCall struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type ToolCallCancellation struct {
	IDs []string `json:"ids,omitempty"`
}

// GoAway warns that the server will drop the connection soon. TimeLeft
// is a protobuf duration string such as "10s".
type GoAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

type UsageMetadata struct {
	PromptTokenCount   int `json:"promptTokenCount,omitempty"`
	ResponseTokenCount int `json:"responseTokenCount,omitempty"`
	TotalTokenCount    int `json:"totalTokenCount,omitempty"`
}
