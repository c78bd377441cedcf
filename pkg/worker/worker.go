// Package worker runs the voice agent in worker mode: it registers with a
// dispatch server, receives call jobs, and runs one session per job up to
// a concurrency limit. The VAD model is prewarmed once per process and
// shared by every session the worker starts.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voicebridge/voicebridge/pkg/dispatch"
	"github.com/voicebridge/voicebridge/pkg/session"
)

// SessionFactory builds a session for one job. The factory owns wiring the
// room, speech services, and bridge dependencies.
type SessionFactory func(job dispatch.Job) (*session.Session, error)

// Worker is a dispatch-driven session runner.
type Worker struct {
	cfg     Config
	factory SessionFactory
	logger  *slog.Logger

	wsMutex sync.Mutex
	ws      *websocket.Conn

	active   atomic.Int32
	sessions sync.WaitGroup
}

// New creates a worker. factory is called once per assigned job.
func New(dispatchURL string, factory SessionFactory, opts ...Option) (*Worker, error) {
	if factory == nil {
		return nil, errors.New("worker: session factory is required")
	}
	cfg := DefaultConfig()
	cfg.DispatchURL = dispatchURL
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Worker{
		cfg:     cfg,
		factory: factory,
		logger:  cfg.Logger.With("component", "worker", "name", cfg.Name),
	}, nil
}

// Active returns the number of sessions currently running.
func (w *Worker) Active() int {
	return int(w.active.Load())
}

// Run connects to dispatch and serves jobs until ctx is cancelled,
// reconnecting on connection loss. Running sessions drain before Run
// returns.
func (w *Worker) Run(ctx context.Context) error {
	defer w.sessions.Wait()

	for {
		err := w.runOnce(ctx)
		if ctx.Err() != nil {
			w.logger.Info("worker draining", "active", w.Active())
			return nil
		}
		w.logger.Warn("dispatch connection lost, reconnecting",
			"error", err, "delay", w.cfg.ReconnectDelay)

		select {
		case <-ctx.Done():
			w.logger.Info("worker draining", "active", w.Active())
			return nil
		case <-time.After(w.cfg.ReconnectDelay):
		}
	}
}

// runOnce serves one dispatch connection until it drops or ctx ends.
func (w *Worker) runOnce(ctx context.Context) error {
	ws, workerID, err := w.connect(ctx)
	if err != nil {
		return err
	}
	defer w.closeWS()

	w.logger.Info("registered with dispatch", "worker_id", workerID)

	statusCtx, stopStatus := context.WithCancel(ctx)
	defer stopStatus()
	go w.statusLoop(statusCtx)

	// Unblock the read loop when ctx ends.
	go func() {
		<-statusCtx.Done()
		w.closeWS()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("worker: read: %w", err)
		}

		msg, err := dispatch.ParseMessage(data)
		if err != nil {
			w.logger.Warn("malformed dispatch message", "error", err)
			continue
		}

		switch msg.Type {
		case dispatch.TypeJob:
			var job dispatch.Job
			if err := msg.ParseData(&job); err != nil {
				w.logger.Warn("malformed job", "error", err)
				continue
			}
			w.handleJob(ctx, job)

		case dispatch.TypePong:
			// Keepalive acknowledged.
		}
	}
}

// connect dials dispatch and completes registration.
func (w *Worker) connect(ctx context.Context) (*websocket.Conn, string, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, w.cfg.DispatchURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("worker: dispatch connect: %w", err)
	}

	w.wsMutex.Lock()
	w.ws = ws
	w.wsMutex.Unlock()

	reg, err := dispatch.NewMessage(dispatch.TypeRegister, dispatch.RegisterData{
		Name:     w.cfg.Name,
		Capacity: w.cfg.MaxSessions,
	})
	if err != nil {
		return nil, "", err
	}
	if err := w.send(reg); err != nil {
		return nil, "", fmt.Errorf("worker: register: %w", err)
	}

	ws.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := ws.ReadMessage()
	ws.SetReadDeadline(time.Time{})
	if err != nil {
		return nil, "", fmt.Errorf("worker: registration ack: %w", err)
	}

	ack, err := dispatch.ParseMessage(data)
	if err != nil || ack.Type != dispatch.TypeRegistered {
		return nil, "", errors.New("worker: unexpected registration reply")
	}
	var registered dispatch.RegisteredData
	if err := ack.ParseData(&registered); err != nil {
		return nil, "", err
	}
	return ws, registered.WorkerID, nil
}

// handleJob starts a session for one assignment.
func (w *Worker) handleJob(ctx context.Context, job dispatch.Job) {
	if int(w.active.Load()) >= w.cfg.MaxSessions {
		w.logger.Warn("job rejected, at capacity", "job_id", job.ID, "active", w.Active())
		return
	}

	sess, err := w.factory(job)
	if err != nil {
		w.logger.Error("session build failed", "job_id", job.ID, "error", err)
		return
	}

	w.active.Add(1)
	w.sessions.Add(1)
	w.reportStatus()

	w.logger.Info("session starting", "job_id", job.ID, "room", job.RoomName, "active", w.Active())

	go func() {
		defer func() {
			w.active.Add(-1)
			w.sessions.Done()
			w.reportStatus()
		}()

		if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("session failed", "job_id", job.ID, "error", err)
			return
		}
		w.logger.Info("session finished", "job_id", job.ID)
	}()
}

// statusLoop reports load and keeps the connection alive.
func (w *Worker) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reportStatus()
			w.ping()
		}
	}
}

func (w *Worker) reportStatus() {
	msg, err := dispatch.NewMessage(dispatch.TypeStatus, dispatch.StatusData{
		Active:   w.Active(),
		Capacity: w.cfg.MaxSessions,
	})
	if err != nil {
		return
	}
	if err := w.send(msg); err != nil {
		w.logger.Debug("status report failed", "error", err)
	}
}

func (w *Worker) ping() {
	msg, err := dispatch.NewMessage(dispatch.TypePing, dispatch.PingData{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	if err := w.send(msg); err != nil {
		w.logger.Debug("ping failed", "error", err)
	}
}

func (w *Worker) send(msg *dispatch.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	w.wsMutex.Lock()
	defer w.wsMutex.Unlock()
	if w.ws == nil {
		return errors.New("worker: not connected")
	}
	return w.ws.WriteMessage(websocket.TextMessage, data)
}

func (w *Worker) closeWS() {
	w.wsMutex.Lock()
	defer w.wsMutex.Unlock()
	if w.ws != nil {
		w.ws.Close()
		w.ws = nil
	}
}
