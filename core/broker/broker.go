// Package broker attaches live container log streams and periodic container snapshots
// to realtime client connections.
//
// Every connection gets its own Session. A session holds at most one upstream log
// stream per container id; subscribing again replaces the stream, and closing the
// session closes every stream it owns.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"nfcunha/deckhand/core/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Inbound and outbound event names.
const (
	EventSubscribeLogs      = "subscribe-logs"
	EventUnsubscribeLogs    = "unsubscribe-logs"
	EventContainerLogs      = "container-logs"
	EventContainerLogsError = "container-logs-error"
	EventContainersSnapshot = "containers-snapshot"
)

const (
	DefaultSnapshotInterval = 5 * time.Second
	DefaultLogTail          = "100"
)

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("session closed")

// Frame is one message pushed to a client.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// LogFrame carries a chunk of log output.
type LogFrame struct {
	ContainerID string `json:"containerId"`
	Log         string `json:"log"`
}

// LogErrorFrame reports a failing log stream.
type LogErrorFrame struct {
	ContainerID string `json:"containerId"`
	Error       string `json:"error"`
}

// SnapshotFrame carries the periodic container snapshot.
type SnapshotFrame struct {
	Containers []models.ContainerSnapshot `json:"containers"`
}

// ClientMessage is one message received from a client.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// LogSource opens container log streams.
type LogSource interface {
	OpenLogStream(ctx context.Context, id string, opts models.LogOptions) (io.ReadCloser, error)
}

// SnapshotSource produces the periodic container snapshot.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]models.ContainerSnapshot, error)
}

// Sink delivers frames to one client. Send must be safe for concurrent use.
type Sink interface {
	Send(frame Frame) error
}

// Config tunes a Broker. A zero SnapshotInterval disables snapshots.
type Config struct {
	SnapshotInterval time.Duration
	LogTail          string
}

// Broker tracks the sessions of all connected clients.
type Broker struct {
	logs      LogSource
	snapshots SnapshotSource
	cfg       Config
	logger    *logrus.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates a broker. snapshots may be nil.
func New(logs LogSource, snapshots SnapshotSource, cfg Config, logger *logrus.Logger) *Broker {
	if cfg.LogTail == "" {
		cfg.LogTail = DefaultLogTail
	}
	return &Broker{
		logs:      logs,
		snapshots: snapshots,
		cfg:       cfg,
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
}

// Connect registers a new client connection and starts its snapshot timer.
func (b *Broker) Connect(sink Sink) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:      uuid.NewString(),
		broker:  b,
		sink:    sink,
		ctx:     ctx,
		cancel:  cancel,
		streams: make(map[string]*upstream),
		opening: make(map[string]uint64),
	}

	b.mu.Lock()
	b.sessions[s.id] = s
	b.mu.Unlock()

	if b.snapshots != nil && b.cfg.SnapshotInterval > 0 {
		s.wg.Add(1)
		go s.runSnapshots(b.cfg.SnapshotInterval)
	}

	b.logger.WithField("connection_id", s.id).Info("Realtime client connected")
	return s
}

// SessionCount returns the number of open sessions.
func (b *Broker) SessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// Shutdown closes every open session.
func (b *Broker) Shutdown() {
	b.mu.Lock()
	sessions := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func (b *Broker) remove(s *Session) {
	b.mu.Lock()
	delete(b.sessions, s.id)
	b.mu.Unlock()
}
