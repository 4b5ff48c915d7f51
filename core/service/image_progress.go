package service

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"nfcunha/deckhand/core/models"

	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/sirupsen/logrus"
)

// ProgressStream decodes the JSON progress messages of a pull, build or import.
// Events is closed when the upstream ends.
type ProgressStream struct {
	Events <-chan models.ProgressEvent

	upstream io.Closer
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	err     error
	imageID string
}

// finishFunc runs once the upstream ends, before Events is closed. It receives the
// stream error and the reported image id and returns the final error.
type finishFunc func(err error, imageID string) error

func newProgressStream(op string, upstream io.ReadCloser, logger *logrus.Logger, finish finishFunc) *ProgressStream {
	events := make(chan models.ProgressEvent, 16)
	p := &ProgressStream{
		Events:   events,
		upstream: upstream,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		defer close(events)
		defer upstream.Close()

		err := p.decode(op, upstream, events)
		if finish != nil {
			err = finish(err, p.imageID)
		}
		if err != nil {
			logger.WithFields(logrus.Fields{"op": op, "error": err}).Warn("Image operation failed")
		}
		p.err = err
	}()

	return p
}

func (p *ProgressStream) decode(op string, r io.Reader, events chan<- models.ProgressEvent) error {
	decoder := json.NewDecoder(r)
	for {
		var msg jsonmessage.JSONMessage
		if err := decoder.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			select {
			case <-p.stop:
				return errStreamClosed
			default:
			}
			return models.NewError(models.ErrRuntimeError, op, err)
		}

		p.captureImageID(&msg)
		event := toProgressEvent(&msg)

		select {
		case events <- event:
		case <-p.stop:
			return errStreamClosed
		}

		if msg.Error != nil {
			return &models.Error{Kind: models.ErrRuntimeError, Op: op, Message: msg.Error.Message}
		}
	}
}

var errStreamClosed = errors.New("progress stream closed")

// captureImageID records the image id reported by a build (aux message) or a load
// ("Loaded image..." stream line).
func (p *ProgressStream) captureImageID(msg *jsonmessage.JSONMessage) {
	if msg.Aux != nil {
		var aux struct {
			ID string `json:"ID"`
		}
		if err := json.Unmarshal(*msg.Aux, &aux); err == nil && aux.ID != "" {
			p.imageID = aux.ID
		}
	}

	line := strings.TrimSpace(msg.Stream)
	switch {
	case strings.HasPrefix(line, "Loaded image ID: "):
		p.imageID = strings.TrimPrefix(line, "Loaded image ID: ")
	case strings.HasPrefix(line, "Loaded image: "):
		p.imageID = strings.TrimPrefix(line, "Loaded image: ")
	}
}

func toProgressEvent(msg *jsonmessage.JSONMessage) models.ProgressEvent {
	event := models.ProgressEvent{
		ID:     msg.ID,
		Status: msg.Status,
		Stream: msg.Stream,
	}
	if msg.Progress != nil {
		event.Current = msg.Progress.Current
		event.Total = msg.Progress.Total
		event.Progress = msg.Progress.String()
	}
	if event.Progress == "" {
		event.Progress = msg.ProgressMessage
	}
	if msg.Error != nil {
		event.Error = msg.Error.Message
	} else if msg.ErrorMessage != "" {
		event.Error = msg.ErrorMessage
	}
	return event
}

// Wait blocks until the upstream ended and returns the final error.
func (p *ProgressStream) Wait() error {
	<-p.done
	return p.err
}

// Err waits for the upstream to end and returns the final error.
func (p *ProgressStream) Err() error {
	return p.Wait()
}

// ImageID waits for the upstream to end and returns the image id it reported.
func (p *ProgressStream) ImageID() string {
	<-p.done
	return p.imageID
}

// Close abandons the stream and tears down the upstream request.
func (p *ProgressStream) Close() error {
	p.stopOnce.Do(func() {
		close(p.stop)
		p.upstream.Close()
	})
	<-p.done
	return nil
}
