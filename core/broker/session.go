package broker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"nfcunha/deckhand/core/models"

	"github.com/sirupsen/logrus"
)

const readBufferSize = 32 * 1024

// Session is the broker state of one client connection.
type Session struct {
	id     string
	broker *Broker
	sink   Sink
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	streams map[string]*upstream // containerID -> active upstream
	opening map[string]uint64    // containerID -> ticket of the open in flight
	seq     uint64
	closed  bool
}

// upstream is one open log stream. Frames are only sent while holding mu and not
// stopped, so no frame of a replaced stream reaches the client after stop returns.
type upstream struct {
	containerID string
	stream      io.ReadCloser
	cancel      context.CancelFunc
	closeOnce   sync.Once

	mu      sync.Mutex
	stopped bool
}

func (u *upstream) close() {
	u.closeOnce.Do(func() {
		u.cancel()
		u.stream.Close()
	})
}

func (u *upstream) stop() {
	u.mu.Lock()
	u.stopped = true
	u.mu.Unlock()
	u.close()
}

// emit runs send unless the upstream was stopped. It reports whether send ran.
func (u *upstream) emit(send func()) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.stopped {
		return false
	}
	send()
	return true
}

// ID returns the connection id.
func (s *Session) ID() string {
	return s.id
}

// ActiveStreams returns the number of open upstream log streams.
func (s *Session) ActiveStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// Handle dispatches one client message.
func (s *Session) Handle(msg ClientMessage) {
	containerID := parseContainerID(msg.Data)

	switch msg.Event {
	case EventSubscribeLogs:
		ticket, err := s.reserve(containerID)
		if err != nil {
			s.logSubscribeFailure(containerID, err)
			return
		}
		go func() {
			if err := s.open(containerID, ticket); err != nil {
				s.logSubscribeFailure(containerID, err)
			}
		}()
	case EventUnsubscribeLogs:
		s.UnsubscribeLogs(containerID)
	default:
		s.logger().WithFields(logrus.Fields{
			"connection_id": s.id,
			"event":         msg.Event,
		}).Debug("Ignoring unknown realtime event")
	}
}

func (s *Session) logSubscribeFailure(containerID string, err error) {
	s.logger().WithFields(logrus.Fields{
		"connection_id": s.id,
		"container_id":  containerID,
		"error":         err,
	}).Debug("Log subscription failed")
}

// parseContainerID accepts either a bare JSON string or {"containerId": "..."}.
func parseContainerID(data json.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return id
	}
	var obj struct {
		ContainerID string `json:"containerId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return obj.ContainerID
	}
	return ""
}

// SubscribeLogs attaches a follow log stream of containerID to this session. An
// existing stream for the same container is closed before the new one is opened.
// The open runs without holding the session lock; if the session is closed or the
// subscription is replaced or dropped meanwhile, the new stream is discarded.
// Failures are also reported to the client as an error frame.
func (s *Session) SubscribeLogs(containerID string) error {
	ticket, err := s.reserve(containerID)
	if err != nil {
		return err
	}
	return s.open(containerID, ticket)
}

// reserve tears down the current stream of containerID and records a ticket for the
// open that follows. Every successful reserve must be followed by open.
func (s *Session) reserve(containerID string) (uint64, error) {
	if !models.IsContainerID(containerID) {
		err := models.InvalidInput("subscribe logs", "invalid container id %q", containerID)
		s.sendLogError(containerID, err)
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}
	if old, ok := s.streams[containerID]; ok {
		delete(s.streams, containerID)
		old.stop()
	}
	s.seq++
	s.opening[containerID] = s.seq
	s.wg.Add(1)
	return s.seq, nil
}

func (s *Session) open(containerID string, ticket uint64) error {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(s.ctx)
	stream, err := s.broker.logs.OpenLogStream(ctx, containerID, models.LogOptions{
		Follow:     true,
		Tail:       s.broker.cfg.LogTail,
		Timestamps: true,
	})

	s.mu.Lock()
	closed := s.closed
	current := !closed && s.opening[containerID] == ticket
	if s.opening[containerID] == ticket {
		delete(s.opening, containerID)
	}

	if !current {
		s.mu.Unlock()
		cancel()
		if stream != nil {
			stream.Close()
		}
		if closed {
			return ErrSessionClosed
		}
		s.logger().WithFields(logrus.Fields{
			"connection_id": s.id,
			"container_id":  containerID,
		}).Debug("Discarding superseded log stream")
		return nil
	}

	if err != nil {
		s.mu.Unlock()
		cancel()
		s.logger().WithFields(logrus.Fields{
			"connection_id": s.id,
			"container_id":  containerID,
			"error":         err,
		}).Warn("Failed to open log stream")
		s.sendLogError(containerID, err)
		return err
	}

	up := &upstream{containerID: containerID, stream: stream, cancel: cancel}
	s.streams[containerID] = up
	s.wg.Add(1)
	go s.forward(up)
	s.mu.Unlock()

	s.logger().WithFields(logrus.Fields{
		"connection_id": s.id,
		"container_id":  containerID,
	}).Debug("Subscribed to container logs")
	return nil
}

// UnsubscribeLogs closes the log stream of containerID, if any, and drops a
// subscription that is still opening.
func (s *Session) UnsubscribeLogs(containerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.opening, containerID)
	if up, ok := s.streams[containerID]; ok {
		delete(s.streams, containerID)
		up.stop()
	}
}

// Close closes every stream owned by the session, stops its snapshot timer and
// unregisters it from the broker. In-flight opens are cancelled before the session
// lock is taken. It is safe to call more than once.
func (s *Session) Close() {
	s.cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	clear(s.opening)
	for id, up := range s.streams {
		delete(s.streams, id)
		up.stop()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.broker.remove(s)

	s.logger().WithField("connection_id", s.id).Info("Realtime client disconnected")
}

// forward copies chunks from the upstream to the client until it ends or is stopped.
func (s *Session) forward(up *upstream) {
	defer s.wg.Done()

	buf := make([]byte, readBufferSize)
	for {
		n, err := up.stream.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			sent := up.emit(func() {
				s.send(Frame{
					Event: EventContainerLogs,
					Data:  LogFrame{ContainerID: up.containerID, Log: chunk},
				})
			})
			if !sent {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && s.ctx.Err() == nil {
				up.emit(func() { s.sendLogError(up.containerID, err) })
			}
			s.release(up)
			return
		}
	}
}

// release drops up from the table if it is still the current stream of its container.
func (s *Session) release(up *upstream) {
	s.mu.Lock()
	if s.streams[up.containerID] == up {
		delete(s.streams, up.containerID)
	}
	s.mu.Unlock()
	up.close()
}

func (s *Session) runSnapshots(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.pushSnapshot(interval)
		}
	}
}

func (s *Session) pushSnapshot(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	snapshots, err := s.broker.snapshots.Snapshot(ctx)
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger().WithFields(logrus.Fields{
				"connection_id": s.id,
				"error":         err,
			}).Warn("Failed to refresh container snapshot")
		}
		return
	}

	s.send(Frame{Event: EventContainersSnapshot, Data: SnapshotFrame{Containers: snapshots}})
}

func (s *Session) sendLogError(containerID string, err error) {
	s.send(Frame{
		Event: EventContainerLogsError,
		Data:  LogErrorFrame{ContainerID: containerID, Error: err.Error()},
	})
}

func (s *Session) send(frame Frame) {
	if err := s.sink.Send(frame); err != nil {
		s.logger().WithFields(logrus.Fields{
			"connection_id": s.id,
			"event":         frame.Event,
			"error":         err,
		}).Debug("Failed to send frame")
	}
}

func (s *Session) logger() *logrus.Logger {
	return s.broker.logger
}
