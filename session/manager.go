// Package session runs agent CLI subprocesses: one PTY (or pipe) per
// session, line-buffered event parsing of their output, and the write-back
// path for in-band tool invocations.
//
// Each session's output is processed in arrival order by a dedicated read
// loop. Tool executions run as detached goroutines, so their results are not
// ordered relative to each other; the write-back tolerates the session being
// gone by then.
package session

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/tandemhq/tandem-core/logger"
	"github.com/tandemhq/tandem-core/parser"
)

// ToolBridge is the slice of the bridge the session runtime needs: rules
// augmentation and invocation execution.
type ToolBridge interface {
	Instructions(ctx context.Context) string
	Execute(ctx context.Context, name string, args map[string]any, serverHint string) string
}

// Manager owns the live-session table. All operations are safe for
// concurrent use; sessions are independent of each other.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	bridge ToolBridge

	// newDriver is swappable so tests can run sessions against a fake
	// subprocess.
	newDriver func(cfg Config) driver
}

// NewManager creates a Manager. The bridge may be nil, in which case tool
// instructions are skipped and detected invocations are ignored.
func NewManager(bridge ToolBridge) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		bridge:   bridge,
		newDriver: func(cfg Config) driver {
			if cfg.UsePipe {
				return pipeDriver{}
			}
			return ptyDriver{}
		},
	}
}

// buildEnv merges color hints and config overrides onto the inherited
// environment. Overrides win.
func buildEnv(overrides map[string]string) []string {
	env := append(os.Environ(), colorEnv...)
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}

// Start spawns a subprocess for the session id. An empty cfg.Program is an
// error; starting an id that is already live is a warned no-op. The command
// string, when non-empty, is
// written into the subprocess as its initial input line; it does not count
// toward the message counter that controls rules injection.
func (m *Manager) Start(id, command string, cfg Config) error {
	log := logger.WithSession(id)

	if cfg.Program == "" {
		err := fmt.Errorf("starting session %s: no program configured", id)
		log.Error("session start rejected", "error", err)
		return err
	}

	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		log.Warn("session already running, ignoring start")
		return nil
	}
	m.mu.Unlock()

	handle, err := m.newDriver(cfg).spawn(cfg.Program, cfg.Args, cfg.Dir, buildEnv(cfg.Env), cfg.Cols, cfg.Rows)
	if err != nil {
		err = fmt.Errorf("spawning session %s: %w", id, err)
		log.Error("session spawn failed", "error", err)
		return err
	}

	s := newSession(id, cfg, handle, log)

	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		// Lost a start race; the winner keeps the table slot.
		m.mu.Unlock()
		handle.kill()
		log.Warn("session already running, ignoring start")
		return nil
	}
	m.sessions[id] = s
	m.mu.Unlock()

	log.Info("session started", "agent", cfg.AgentType, "program", cfg.Program, "structured", cfg.StructuredStream)

	if command != "" {
		if err := handle.writeLine(command); err != nil {
			log.Warn("failed to write initial command", "error", err)
		}
	}

	go m.readLoop(s)
	go m.watchExit(s)

	settle := cfg.SettleDelay
	if settle <= 0 {
		settle = defaultSettleDelay
	}
	time.AfterFunc(settle, func() { m.flushReady(s) })

	return nil
}

// flushReady transitions the session to ready and drains its queue, one
// write per message.
func (m *Manager) flushReady(s *Session) {
	for _, payload := range s.markReady() {
		if err := s.handle.writeLine(payload); err != nil {
			s.log.Warn("failed to flush queued message", "error", err)
		}
	}
}

// Send delivers a message to the session. Unknown ids are logged and
// dropped; callers needing certainty check IsRunning first. Before the first
// message of a session's lifetime the bridge's tool instructions are fetched
// and appended to the configured rules text.
func (m *Manager) Send(id, message string) {
	s := m.lookup(id)
	if s == nil {
		logger.WithSession(id).Warn("send to unknown session dropped")
		return
	}

	if !s.rulesFetched() {
		rules := s.config.Rules
		if m.bridge != nil {
			if instr := m.bridge.Instructions(context.Background()); instr != "" {
				if rules != "" {
					rules += "\n\n" + instr
				} else {
					rules = instr
				}
			}
		}
		s.setRules(rules)
	}

	payload, ready := s.enqueueOrPayload(message)
	if !ready {
		s.log.Debug("session not ready, message queued")
		return
	}
	if err := s.handle.writeLine(payload); err != nil {
		s.log.Warn("failed to write message", "error", err)
	}
}

// Stop force-terminates the session and removes it from the table. Returns
// whether the id was live.
func (m *Manager) Stop(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false
	}

	s.markStopped()
	s.handle.kill()
	s.log.Info("session stopped")
	s.emit(parser.Event{Type: parser.EventSystem, Text: "Session stopped"})
	return true
}

// Reset stops the session if live and starts it again with new parameters,
// preserving the id.
func (m *Manager) Reset(id, command string, cfg Config) error {
	m.Stop(id)
	return m.Start(id, command, cfg)
}

// IsRunning reports whether the id is in the live table.
func (m *Manager) IsRunning(id string) bool {
	return m.lookup(id) != nil
}

// List returns the live session ids, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resize adjusts the session's terminal size.
func (m *Manager) Resize(id string, cols, rows uint16) error {
	s := m.lookup(id)
	if s == nil {
		return fmt.Errorf("session %s not running", id)
	}
	return s.handle.resize(cols, rows)
}

// GetConfig returns a copy of the session's config.
func (m *Manager) GetConfig(id string) (Config, bool) {
	s := m.lookup(id)
	if s == nil {
		return Config{}, false
	}
	return s.config, true
}

// Subscribe attaches an event callback to the session and returns its
// removal function. Unknown ids get a no-op remover.
func (m *Manager) Subscribe(id string, fn func(parser.Event)) func() {
	s := m.lookup(id)
	if s == nil {
		return func() {}
	}
	return s.subscribe(fn)
}

func (m *Manager) lookup(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// readLoop pumps subprocess output into events until the stream ends.
// Chunks are processed strictly in arrival order; the trailing partial line
// is carried in the session's parse buffer.
func (m *Manager) readLoop(s *Session) {
	buf := make([]byte, 4096)
	for {
		n, err := s.handle.Read(buf)
		if n > 0 {
			m.handleChunk(s, string(buf[:n]))
		}
		if err != nil {
			return
		}
	}
}

func (m *Manager) handleChunk(s *Session, chunk string) {
	if !s.config.StructuredStream {
		s.emit(parser.Event{Type: parser.EventText, Text: chunk})
		return
	}

	events, rest := parser.Parse(s.config.AgentType, chunk, s.parseBuffer, s.log)
	s.parseBuffer = rest

	for _, ev := range events {
		s.emit(ev)
		if ev.Type == parser.EventToolCall && ev.Invoke {
			go m.runToolInvocation(s.id, ev)
		}
	}
}

// runToolInvocation executes a detected in-band tool call and writes the
// result back into the session. It is detached: output processing continues
// while it runs, and the write-back is a silent no-op if the session has
// been torn down in the meantime.
func (m *Manager) runToolInvocation(id string, ev parser.Event) {
	if m.bridge == nil {
		return
	}

	result := m.bridge.Execute(context.Background(), ev.ToolName, ev.ToolArgs, ev.ToolServer)

	s := m.lookup(id)
	if s == nil {
		return
	}

	s.emit(parser.Event{Type: parser.EventToolResult, Text: result, ToolName: ev.ToolName})

	writeBack := fmt.Sprintf("[Tool Result for %s]\n%s", ev.ToolName, result)
	if err := s.countedWrite(writeBack); err != nil {
		s.log.Warn("tool result write-back failed", "tool", ev.ToolName, "error", err)
	}
}

// watchExit waits for the subprocess and, on an exit the manager did not
// initiate, removes the session and announces it. Other sessions are
// unaffected.
func (m *Manager) watchExit(s *Session) {
	err := s.handle.wait()

	if s.wasStopped() {
		return
	}

	m.mu.Lock()
	delete(m.sessions, s.id)
	m.mu.Unlock()

	s.markStopped()
	if err != nil {
		s.log.Warn("session exited unexpectedly", "error", err)
	} else {
		s.log.Info("session exited")
	}
	s.emit(parser.Event{Type: parser.EventSystem, Text: "Session exited"})
}
