package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tandemhq/tandem-core/parser"
)

// Config describes how to run one agent session.
type Config struct {
	// AgentType selects the output variant handed to the parser.
	AgentType parser.AgentType

	// Program and Args form the subprocess command line. Callers resolve
	// agent presets (config.GetAgentPreset) into a concrete Program before
	// starting the session; Start rejects an empty Program.
	Program string
	Args    []string

	// Dir is the working directory for the subprocess.
	Dir string

	// Env holds environment overrides merged onto the inherited environment.
	Env map[string]string

	// Rules is prepended to the first message of the session, joined with
	// the bridge's tool instructions.
	Rules string

	// StructuredStream routes subprocess output through the event parser.
	// When false, chunks pass through verbatim as text events.
	StructuredStream bool

	// UsePipe selects the pipe driver instead of the default PTY driver.
	UsePipe bool

	// SettleDelay is how long after spawn the session is held in the
	// starting state before queued messages flush. Zero means the default.
	SettleDelay time.Duration

	// Cols and Rows set the initial PTY size. Zero means driver defaults.
	Cols, Rows uint16
}

// defaultSettleDelay gives a freshly spawned CLI time to finish its own
// startup before input is written at it.
const defaultSettleDelay = 500 * time.Millisecond

type sessionState int

const (
	stateStarting sessionState = iota
	stateReady
	stateTerminated
)

// Session is one live agent subprocess and its in-flight state. All fields
// behind mu; the read loop goroutine owns parseBuffer exclusively.
type Session struct {
	id     string
	config Config
	handle procHandle
	log    *slog.Logger

	mu          sync.Mutex
	state       sessionState
	queue       []string
	sentCount   int
	rules       string
	rulesSet    bool
	stopped     bool
	subscribers map[int]func(parser.Event)
	nextSubID   int

	// parseBuffer carries the trailing partial line between output chunks.
	// Only the read loop touches it.
	parseBuffer string
}

func newSession(id string, cfg Config, handle procHandle, log *slog.Logger) *Session {
	return &Session{
		id:          id,
		config:      cfg,
		handle:      handle,
		log:         log,
		state:       stateStarting,
		subscribers: make(map[int]func(parser.Event)),
	}
}

// subscribe registers an event callback and returns its removal function.
func (s *Session) subscribe(fn func(parser.Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// emit delivers an event to every subscriber.
func (s *Session) emit(ev parser.Event) {
	s.mu.Lock()
	fns := make([]func(parser.Event), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// setRules stores the rules text exactly once per session lifetime.
func (s *Session) setRules(rules string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.rulesSet {
		s.rules = rules
		s.rulesSet = true
	}
}

func (s *Session) rulesFetched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rulesSet
}

// enqueueOrPayload decides what to do with an outgoing message. When the
// session is not ready yet the message is queued and ok is false. When ready,
// the returned payload carries the rules prefix exactly once, at the first
// counted write of the session.
func (s *Session) enqueueOrPayload(message string) (payload string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateReady {
		s.queue = append(s.queue, message)
		return "", false
	}
	return s.buildPayloadLocked(message), true
}

func (s *Session) buildPayloadLocked(message string) string {
	payload := message
	if s.sentCount == 0 && s.rules != "" {
		payload = s.rules + "\n\n" + message
	}
	s.sentCount++
	return payload
}

// markReady flips to ready and returns the queued payloads in FIFO order,
// each already carrying its rules prefix where due.
func (s *Session) markReady() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateStarting {
		return nil
	}
	s.state = stateReady

	payloads := make([]string, 0, len(s.queue))
	for _, message := range s.queue {
		payloads = append(payloads, s.buildPayloadLocked(message))
	}
	s.queue = nil
	return payloads
}

// markStopped records a deliberate stop so the exit watcher stays quiet.
func (s *Session) markStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.state = stateTerminated
}

func (s *Session) wasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// countedWrite increments the sent counter and writes one line. Used for
// tool result write-backs, which count like any other input.
func (s *Session) countedWrite(line string) error {
	s.mu.Lock()
	s.sentCount++
	s.mu.Unlock()
	return s.handle.writeLine(line)
}
