package registry

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrToolNotFound is returned by providers asked to call a tool they do not own.
var ErrToolNotFound = errors.New("tool not found")

// ErrResourceNotFound is returned by providers asked to read a URI they do not serve.
var ErrResourceNotFound = errors.New("resource not found")

// ErrServerNotConnected is returned when a call names a server with no
// registered providers and no live connection.
var ErrServerNotConnected = errors.New("server not connected")

// ToolDescriptor describes one callable tool.
// The (ServerName, Name) pair is the true unique key — bare Name uniqueness
// across providers is a best-effort convenience only.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
	ServerName  string          `json:"serverName"`
}

// ResourceDescriptor describes one read-only resource addressable by URI.
type ResourceDescriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"`
	ServerName  string `json:"serverName"`
}

// ResourceTemplate describes a family of resources via a URI template.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"`
	ServerName  string `json:"serverName"`
}

// ContentBlock is one element of a structured tool result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CallResult is the normalized outcome of a tool call.
type CallResult struct {
	IsError bool           `json:"isError,omitempty"`
	Content []ContentBlock `json:"content,omitempty"`
}

// TextResult builds a single-block success result.
func TextResult(text string) *CallResult {
	return &CallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

// ErrorResult builds a single-block error-flagged result.
func ErrorResult(text string) *CallResult {
	return &CallResult{IsError: true, Content: []ContentBlock{{Type: "text", Text: text}}}
}

// ResourceContent is the canonical record returned by a resource read.
// Exactly one of Text or Blob is populated.
type ResourceContent struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     []byte `json:"blob,omitempty"`
}

// Provider is an in-process capability module contributing tools and
// resources under a logical server name. Implementations must be safe for
// concurrent use.
//
// A provider asked to call a tool it does not own must return
// ErrToolNotFound so the registry can try the next provider registered under
// the same server name. Likewise ErrResourceNotFound for reads.
type Provider interface {
	Tools(ctx context.Context) ([]ToolDescriptor, error)
	Resources(ctx context.Context) ([]ResourceDescriptor, error)
	ResourceTemplates(ctx context.Context) ([]ResourceTemplate, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error)
	ReadResource(ctx context.Context, uri string) (*ResourceContent, error)
}

// Subscriber is implemented by providers that can push native change
// notifications for their resources. Providers without it get the generic
// polling fallback.
type Subscriber interface {
	SubscribeResource(uri string, onUpdate func(ResourceContent)) (cancel func(), err error)
}
