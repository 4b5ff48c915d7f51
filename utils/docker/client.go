// Package docker adapts the Docker Engine API client to the deckhand domain types.
// Every call carries a bounded timeout and every failure is classified into one of the
// models error kinds.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"nfcunha/deckhand/core/models"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/client"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single runtime call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Client is the runtime client adapter. The underlying API client is safe for
// concurrent use and is shared by all callers.
type Client struct {
	api     *client.Client
	timeout time.Duration
	logger  *logrus.Logger
}

// NewClient creates a client for the daemon at host. An empty host falls back to
// DOCKER_HOST or the default local socket.
func NewClient(host string, timeout time.Duration, logger *logrus.Logger) (*Client, error) {
	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		logger.WithError(err).Error("Failed to create Docker client")
		return nil, err
	}

	logger.WithField("host", cli.DaemonHost()).Info("Docker client created")
	return Wrap(cli, timeout, logger), nil
}

// Wrap builds an adapter around an existing API client.
func Wrap(api *client.Client, timeout time.Duration, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{api: api, timeout: timeout, logger: logger}
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.api.Close()
}

// Ping verifies the daemon answers.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.Ping(ctx); err != nil {
		return c.classify("ping", err)
	}
	return nil
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// classify maps a Docker client error onto the domain error kinds.
func (c *Client) classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var kind error
	switch {
	case errdefs.IsNotFound(err) || client.IsErrNotFound(err):
		kind = models.ErrNotFound
	case isUnavailable(err):
		kind = models.ErrRuntimeUnavailable
	default:
		kind = models.ErrRuntimeError
	}

	c.logger.WithFields(logrus.Fields{
		"op":    op,
		"error": err,
	}).Debug("Runtime call failed")

	return models.NewError(kind, op, err)
}

func isUnavailable(err error) bool {
	if client.IsErrConnectionFailed(err) ||
		errdefs.IsUnavailable(err) ||
		errdefs.IsDeadlineExceeded(err) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// startStream opens a long-lived response body. The call timeout only bounds the time
// until the daemon answers; after that the body lives until it is closed or ctx ends.
func (c *Client) startStream(ctx context.Context, op string, open func(context.Context) (io.ReadCloser, error)) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)

	var expired atomic.Bool
	timer := time.AfterFunc(c.timeout, func() {
		expired.Store(true)
		cancel()
	})

	body, err := open(ctx)
	timer.Stop()

	if expired.Load() {
		if err == nil {
			body.Close()
		}
		cancel()
		return nil, &models.Error{
			Kind:    models.ErrRuntimeUnavailable,
			Op:      op,
			Message: fmt.Sprintf("runtime did not answer within %s", c.timeout),
		}
	}
	if err != nil {
		cancel()
		return nil, c.classify(op, err)
	}

	return &streamBody{ReadCloser: body, cancel: cancel}, nil
}

// streamBody cancels the request context when closed so a blocked read returns promptly.
type streamBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *streamBody) Close() error {
	b.cancel()
	return b.ReadCloser.Close()
}
