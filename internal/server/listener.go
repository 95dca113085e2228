package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/destel/rill"
	"github.com/rocha19/userserver/internal/wire"
)

type ListenerOptions struct {
	// WorkerCount connections are handled concurrently. 1 handles them
	// strictly one after another in accept order.
	WorkerCount    int
	ReadBufferSize int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	QueryTimeout   time.Duration
	Logger         *slog.Logger
}

func (o *ListenerOptions) defaults() {
	if o.WorkerCount == 0 {
		o.WorkerCount = 8
	}
	if o.ReadBufferSize == 0 {
		o.ReadBufferSize = 1024
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Listener serves the raw protocol: one read, one dispatch, one write per
// connection.
type Listener struct {
	router *Router
	opts   ListenerOptions
}

func NewListener(router *Router, opts ListenerOptions) *Listener {
	opts.defaults()
	return &Listener{
		router: router,
		opts:   opts,
	}
}

// Serve accepts connections on ln until ctx is cancelled or ln is closed,
// then waits for in-flight connections to finish. It closes ln.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	conns := make(chan net.Conn)

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()

	go l.acceptLoop(ln, conns)

	err := rill.ForEach(rill.FromChan(conns, nil), l.opts.WorkerCount, func(conn net.Conn) error {
		l.handleConn(ctx, conn)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to serve connections: %w", err)
	}
	return nil
}

func (l *Listener) acceptLoop(ln net.Listener, conns chan<- net.Conn) {
	defer close(conns)

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			l.opts.Logger.Error("failed to accept connection", "error", err, "retry_in", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		conns <- conn
	}
}

func (l *Listener) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	start := time.Now()
	logger := l.opts.Logger.With("remote_addr", conn.RemoteAddr().String())

	defer func() {
		if p := recover(); p != nil {
			logger.Error("panic while handling connection", "panic", p)
			l.write(conn, logger, wire.Response{Status: wire.StatusInternalServerError, Body: msgInternalError})
		}
	}()

	if l.opts.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(l.opts.ReadTimeout))
	}

	buf := make([]byte, l.opts.ReadBufferSize)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		logger.Error("failed to read request", "error", err)
		return
	}

	req := wire.Parse(buf[:n])

	// in-flight requests finish during shutdown
	reqCtx := context.WithoutCancel(ctx)
	if l.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(reqCtx, l.opts.QueryTimeout)
		defer cancel()
	}

	resp := l.router.Dispatch(reqCtx, req)
	l.write(conn, logger, resp)

	logger.Debug("handled request",
		"method", req.Method,
		"path", req.Path,
		"status", int(resp.Status),
		"duration", time.Since(start))
}

func (l *Listener) write(conn net.Conn, logger *slog.Logger, resp wire.Response) {
	if l.opts.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(l.opts.WriteTimeout))
	}
	if _, err := resp.WriteTo(conn); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}
