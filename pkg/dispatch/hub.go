package dispatch

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ErrNoWorkers is returned when no registered worker has a free slot.
var ErrNoWorkers = errors.New("dispatch: no worker available")

// WorkerConnection is one registered voice worker.
type WorkerConnection struct {
	ID        string
	Name      string
	Conn      *websocket.Conn
	Connected time.Time

	mu       sync.Mutex
	lastSeen time.Time
	capacity int
	active   int
}

// Send writes a message to the worker. Safe for concurrent use.
func (w *WorkerConnection) Send(msg *Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WorkerConnection) load() (active, capacity int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active, w.capacity
}

// Hub tracks registered workers and assigns jobs to them.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	workers map[string]*WorkerConnection

	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	jobsDispatched   atomic.Uint64
}

// NewHub creates an empty worker hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger.With("component", "dispatch.hub"),
		workers: make(map[string]*WorkerConnection),
	}
}

// RegisterRoutes registers the worker WebSocket endpoint on a Fiber app.
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/worker", websocket.New(h.handleWorker))
}

// handleWorker runs one worker connection: registration, then the status
// and ping loop until the socket drops.
func (h *Hub) handleWorker(c *websocket.Conn) {
	worker, err := h.register(c)
	if err != nil {
		h.logger.Warn("worker registration failed", "error", err)
		return
	}

	h.mu.Lock()
	h.workers[worker.ID] = worker
	count := len(h.workers)
	h.mu.Unlock()
	h.logger.Info("worker registered", "worker_id", worker.ID, "name", worker.Name, "total", count)

	defer func() {
		h.mu.Lock()
		delete(h.workers, worker.ID)
		count := len(h.workers)
		h.mu.Unlock()
		h.logger.Info("worker disconnected", "worker_id", worker.ID, "total", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		h.messagesReceived.Add(1)
		h.handleMessage(worker, data)
	}
}

func (h *Hub) register(c *websocket.Conn) (*WorkerConnection, error) {
	_, data, err := c.ReadMessage()
	if err != nil {
		return nil, err
	}
	msg, err := ParseMessage(data)
	if err != nil {
		return nil, err
	}
	if msg.Type != TypeRegister {
		return nil, errors.New("dispatch: expected register message")
	}

	var reg RegisterData
	if err := msg.ParseData(&reg); err != nil {
		return nil, err
	}
	if reg.Capacity < 1 {
		reg.Capacity = 1
	}

	worker := &WorkerConnection{
		ID:        uuid.NewString(),
		Name:      reg.Name,
		Conn:      c,
		Connected: time.Now(),
		lastSeen:  time.Now(),
		capacity:  reg.Capacity,
	}

	ack, err := NewMessage(TypeRegistered, RegisteredData{WorkerID: worker.ID})
	if err != nil {
		return nil, err
	}
	h.messagesSent.Add(1)
	return worker, worker.Send(ack)
}

func (h *Hub) handleMessage(worker *WorkerConnection, data []byte) {
	msg, err := ParseMessage(data)
	if err != nil {
		h.logger.Warn("malformed worker message", "worker_id", worker.ID, "error", err)
		return
	}

	worker.mu.Lock()
	worker.lastSeen = time.Now()
	worker.mu.Unlock()

	switch msg.Type {
	case TypeStatus:
		var status StatusData
		if err := msg.ParseData(&status); err != nil {
			return
		}
		worker.mu.Lock()
		worker.active = status.Active
		if status.Capacity > 0 {
			worker.capacity = status.Capacity
		}
		worker.mu.Unlock()

	case TypePing:
		var ping PingData
		msg.ParseData(&ping)
		pong, err := NewMessage(TypePong, PongData{
			ID:     ping.ID,
			PingTS: ping.Timestamp,
			PongTS: time.Now().UnixMilli(),
		})
		if err != nil {
			return
		}
		h.messagesSent.Add(1)
		worker.Send(pong)
	}
}

// Dispatch assigns a job to the least loaded worker with a free slot.
func (h *Hub) Dispatch(job Job) (string, error) {
	h.mu.RLock()
	candidates := make([]*WorkerConnection, 0, len(h.workers))
	for _, w := range h.workers {
		candidates = append(candidates, w)
	}
	h.mu.RUnlock()

	worker := pickWorker(candidates)
	if worker == nil {
		return "", ErrNoWorkers
	}

	msg, err := NewMessage(TypeJob, job)
	if err != nil {
		return "", err
	}
	if err := worker.Send(msg); err != nil {
		return "", err
	}

	h.messagesSent.Add(1)
	h.jobsDispatched.Add(1)
	h.logger.Info("job dispatched", "job_id", job.ID, "worker_id", worker.ID, "room", job.RoomName)
	return worker.ID, nil
}

// pickWorker returns the candidate with the most free capacity, or nil
// when every worker is full.
func pickWorker(candidates []*WorkerConnection) *WorkerConnection {
	var best *WorkerConnection
	bestFree := 0
	for _, w := range candidates {
		active, capacity := w.load()
		free := capacity - active
		if free > bestFree {
			best = w
			bestFree = free
		}
	}
	return best
}

// WorkerCount returns the number of registered workers.
func (h *Hub) WorkerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.workers)
}

// Stats contains hub statistics.
type Stats struct {
	WorkerCount      int    `json:"worker_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	JobsDispatched   uint64 `json:"jobs_dispatched"`
}

// GetStats returns hub statistics.
func (h *Hub) GetStats() Stats {
	return Stats{
		WorkerCount:      h.WorkerCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		JobsDispatched:   h.jobsDispatched.Load(),
	}
}

// WorkerInfo describes one registered worker.
type WorkerInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
	Active    int       `json:"active"`
	Capacity  int       `json:"capacity"`
}

// GetWorkerInfos returns info about all registered workers.
func (h *Hub) GetWorkerInfos() []WorkerInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]WorkerInfo, 0, len(h.workers))
	for _, w := range h.workers {
		w.mu.Lock()
		infos = append(infos, WorkerInfo{
			ID:        w.ID,
			Name:      w.Name,
			Connected: w.Connected,
			LastSeen:  w.lastSeen,
			Active:    w.active,
			Capacity:  w.capacity,
		})
		w.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers the job and worker management REST routes.
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	api.Get("/workers", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"workers": h.GetWorkerInfos(),
			"count":   h.WorkerCount(),
		})
	})

	api.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})

	api.Post("/jobs", func(c *fiber.Ctx) error {
		var job Job
		if err := c.BodyParser(&job); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		if job.RoomURL == "" || job.RoomName == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "room_url and room_name are required"})
		}
		if job.ID == "" {
			job.ID = uuid.NewString()
		}

		workerID, err := h.Dispatch(job)
		if err != nil {
			if errors.Is(err, ErrNoWorkers) {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}

		return c.JSON(fiber.Map{"job_id": job.ID, "worker_id": workerID})
	})
}
