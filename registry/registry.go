// Package registry aggregates in-process tool/resource providers and
// out-of-process MCP server connections into one routing table.
//
// A server name maps to an ordered list of internal providers or to at most
// one external connection. Calls resolve internal-first: if any provider is
// registered under the server name, the connection (if any) is never
// consulted for that name. Aggregate list calls tolerate individual
// provider/connection failures — partial results are expected, not an error.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tandemhq/tandem-core/logger"
)

// defaultPollInterval is how often the polling fallback re-reads a
// subscribed resource.
const defaultPollInterval = 2 * time.Second

// Registry routes tool calls and resource reads to the provider or
// connection that can serve them.
type Registry struct {
	mu        sync.RWMutex
	providers map[string][]Provider
	conns     *ConnectionManager
	log       *slog.Logger

	// pollInterval is overridable for tests.
	pollInterval time.Duration
}

// New creates a Registry backed by the given connection manager.
// A nil manager is allowed — the registry then serves internal providers only.
func New(conns *ConnectionManager) *Registry {
	return &Registry{
		providers:    make(map[string][]Provider),
		conns:        conns,
		log:          logger.WithComponent("registry"),
		pollInterval: defaultPollInterval,
	}
}

// RegisterProvider adds an internal provider under a server name.
// A server name may accumulate multiple providers; they are consulted in
// registration order and the first claimant of a tool or resource wins.
func (r *Registry) RegisterProvider(serverName string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[serverName] = append(r.providers[serverName], p)
	r.log.Debug("provider registered", "server", serverName, "providers", len(r.providers[serverName]))
}

// Connections returns the underlying connection manager (may be nil).
func (r *Registry) Connections() *ConnectionManager {
	return r.conns
}

// providerServers returns server names with internal providers, sorted for
// deterministic iteration.
func (r *Registry) providerServers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// providersFor returns a snapshot of the provider list for a server name.
func (r *Registry) providersFor(serverName string) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.providers[serverName]
	snapshot := make([]Provider, len(list))
	copy(snapshot, list)
	return snapshot
}

// ListTools returns the union of tools across all providers and live
// connections, each tagged with its owning server name. A failing provider
// or connection is logged and skipped.
func (r *Registry) ListTools(ctx context.Context) []ToolDescriptor {
	var all []ToolDescriptor

	for _, server := range r.providerServers() {
		for _, p := range r.providersFor(server) {
			tools, err := p.Tools(ctx)
			if err != nil {
				r.log.Warn("provider tool listing failed", "server", server, "error", err)
				continue
			}
			for _, tool := range tools {
				if tool.ServerName == "" {
					tool.ServerName = server
				}
				all = append(all, tool)
			}
		}
	}

	if r.conns != nil {
		for _, server := range r.conns.ConnectedServers() {
			tools, err := r.conns.ListTools(ctx, server)
			if err != nil {
				r.log.Warn("connection tool listing failed", "server", server, "error", err)
				continue
			}
			all = append(all, tools...)
		}
	}

	return all
}

// ListResources returns the union of resources across all providers and live
// connections, tagged with owning server names.
func (r *Registry) ListResources(ctx context.Context) []ResourceDescriptor {
	var all []ResourceDescriptor

	for _, server := range r.providerServers() {
		for _, p := range r.providersFor(server) {
			resources, err := p.Resources(ctx)
			if err != nil {
				r.log.Warn("provider resource listing failed", "server", server, "error", err)
				continue
			}
			for _, res := range resources {
				if res.ServerName == "" {
					res.ServerName = server
				}
				all = append(all, res)
			}
		}
	}

	if r.conns != nil {
		for _, server := range r.conns.ConnectedServers() {
			resources, err := r.conns.ListResources(ctx, server)
			if err != nil {
				r.log.Warn("connection resource listing failed", "server", server, "error", err)
				continue
			}
			all = append(all, resources...)
		}
	}

	return all
}

// ListResourceTemplates returns the union of resource templates across all
// providers and live connections.
func (r *Registry) ListResourceTemplates(ctx context.Context) []ResourceTemplate {
	var all []ResourceTemplate

	for _, server := range r.providerServers() {
		for _, p := range r.providersFor(server) {
			templates, err := p.ResourceTemplates(ctx)
			if err != nil {
				r.log.Warn("provider template listing failed", "server", server, "error", err)
				continue
			}
			for _, tpl := range templates {
				if tpl.ServerName == "" {
					tpl.ServerName = server
				}
				all = append(all, tpl)
			}
		}
	}

	if r.conns != nil {
		for _, server := range r.conns.ConnectedServers() {
			templates, err := r.conns.ListResourceTemplates(ctx, server)
			if err != nil {
				r.log.Warn("connection template listing failed", "server", server, "error", err)
				continue
			}
			all = append(all, templates...)
		}
	}

	return all
}

// CallTool routes a tool call to the named server. Internal providers are
// consulted in registration order; the first one claiming the tool name
// handles the call. With no internal providers the live connection is used.
func (r *Registry) CallTool(ctx context.Context, serverName, toolName string, args map[string]any) (*CallResult, error) {
	providers := r.providersFor(serverName)

	if len(providers) > 0 {
		for _, p := range providers {
			if !providerClaimsTool(ctx, p, toolName) {
				continue
			}
			return p.CallTool(ctx, toolName, args)
		}
		return nil, fmt.Errorf("tool %q not found for server %q: %w", toolName, serverName, ErrToolNotFound)
	}

	if r.conns != nil {
		if r.conns.IsConnected(serverName) {
			return r.conns.CallTool(ctx, serverName, toolName, args)
		}
	}

	return nil, fmt.Errorf("server %q: %w", serverName, ErrServerNotConnected)
}

// providerClaimsTool reports whether the provider's catalog contains the name.
// A provider whose listing fails claims nothing.
func providerClaimsTool(ctx context.Context, p Provider, toolName string) bool {
	tools, err := p.Tools(ctx)
	if err != nil {
		return false
	}
	for _, tool := range tools {
		if tool.Name == toolName {
			return true
		}
	}
	return false
}

// ReadResource reads a resource from the named server. Internal providers
// are tried in order until one succeeds; if all fail the last error is
// returned. With no internal providers the live connection is used.
func (r *Registry) ReadResource(ctx context.Context, serverName, uri string) (*ResourceContent, error) {
	providers := r.providersFor(serverName)

	if len(providers) > 0 {
		var lastErr error
		for _, p := range providers {
			content, err := p.ReadResource(ctx, uri)
			if err != nil {
				lastErr = err
				continue
			}
			return content, nil
		}
		return nil, lastErr
	}

	if r.conns != nil {
		if r.conns.IsConnected(serverName) {
			return r.conns.ReadResource(ctx, serverName, uri)
		}
	}

	return nil, fmt.Errorf("server %q: %w", serverName, ErrServerNotConnected)
}

// SubscribeResource watches a resource for changes. A provider-native
// subscription is preferred; everything else falls back to polling reads
// through ReadResource. The returned cancel function is idempotent and
// guarantees no callback is delivered after it returns.
func (r *Registry) SubscribeResource(serverName, uri string, onUpdate func(ResourceContent)) (func(), error) {
	for _, p := range r.providersFor(serverName) {
		sub, ok := p.(Subscriber)
		if !ok {
			continue
		}
		cancel, err := sub.SubscribeResource(uri, onUpdate)
		if err != nil {
			r.log.Debug("native subscription unavailable, will poll", "server", serverName, "uri", uri, "error", err)
			continue
		}
		r.log.Debug("native subscription established", "server", serverName, "uri", uri)
		return cancel, nil
	}

	read := func(ctx context.Context) (*ResourceContent, error) {
		return r.ReadResource(ctx, serverName, uri)
	}
	return PollResource(read, r.pollInterval, onUpdate, r.log), nil
}
