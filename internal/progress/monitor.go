// Package progress is the progress monitor of spec.md section 4.8: one
// persistent WebSocket per enabled+healthy worker, a read loop that
// classifies the worker's push messages, and a reconnect loop that wakes
// periodically to restore any missing connection. Grounded on the
// gorilla/websocket read-loop pattern in _teacher_ref/webui_main.go.
package progress

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/comfygw/gateway/internal/gatewaylog"
	"github.com/comfygw/gateway/internal/registry"
	"github.com/comfygw/gateway/internal/store"
	"github.com/comfygw/gateway/internal/workerclient"
)

// Monitor owns active_tasks and worker_current_task, the two maps spec.md
// section 4.8 names, each guarded by the same lock per SPEC_FULL.md
// section 6's single-lock guidance.
type Monitor struct {
	mu sync.RWMutex

	activeTasks       map[string]int    // prompt_id -> last known progress
	workerCurrentTask map[string]string // worker_id -> prompt_id currently executing
	openConns         map[string]bool   // worker_id -> has an open read loop

	history store.HistoryStore
	reg     *registry.Registry
	client  *workerclient.Client

	reconnectInterval time.Duration
	log               *gatewaylog.Logger
}

// New builds a Monitor. reconnectInterval defaults to 30s per spec.md 4.8.
func New(history store.HistoryStore, reg *registry.Registry, client *workerclient.Client, reconnectInterval time.Duration) *Monitor {
	if reconnectInterval <= 0 {
		reconnectInterval = 30 * time.Second
	}
	return &Monitor{
		activeTasks:       make(map[string]int),
		workerCurrentTask: make(map[string]string),
		openConns:         make(map[string]bool),
		history:           history,
		reg:               reg,
		client:            client,
		reconnectInterval: reconnectInterval,
		log:               gatewaylog.Default().WithComponent("progress_monitor"),
	}
}

// RegisterPrompt notes that promptID now belongs to workerID, called by the
// dispatcher immediately after a successful submit. The owning worker's WS
// read loop should already be connected by the reconnect loop; this call
// only seeds bookkeeping so GetTaskProgress has an entry before the first
// execution_start event arrives.
func (m *Monitor) RegisterPrompt(workerID, promptID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.activeTasks[promptID]; !exists {
		m.activeTasks[promptID] = 0
	}
}

// GetTaskProgress returns the last cached progress value for promptID, or
// false if nothing has been observed yet.
func (m *Monitor) GetTaskProgress(promptID string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.activeTasks[promptID]
	return p, ok
}

// Run is the reconnect loop: every reconnectInterval, reconnect any worker
// that is enabled and healthy but lacks an open socket.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.reconnectInterval)
	defer ticker.Stop()

	m.reconcileConnections(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reconcileConnections(ctx)
		}
	}
}

func (m *Monitor) reconcileConnections(ctx context.Context) {
	for _, w := range m.reg.List() {
		if !w.Enabled || !w.Healthy {
			continue
		}
		m.mu.RLock()
		open := m.openConns[w.WorkerID]
		m.mu.RUnlock()
		if open {
			continue
		}
		go m.connectAndRead(ctx, w.WorkerID, w.BaseURL)
	}
}

func (m *Monitor) connectAndRead(ctx context.Context, workerID, baseURL string) {
	user, pass := m.reg.Auth(workerID)
	conn, err := m.client.OpenWS(ctx, baseURL, workerclient.Auth{Username: user, Password: pass})
	if err != nil {
		m.log.Debug("ws connect failed", map[string]interface{}{"worker_id": workerID, "error": err.Error()})
		return
	}

	m.mu.Lock()
	m.openConns[workerID] = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.openConns, workerID)
		m.mu.Unlock()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			// Disconnect does not mark tasks failed per spec.md section
			// 4.8; status queries fall back to polling history+queue.
			return
		}
		m.handleMessage(ctx, workerID, raw)
	}
}

type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (m *Monitor) handleMessage(ctx context.Context, workerID string, raw []byte) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	switch msg.Type {
	case "execution_start":
		var data struct {
			PromptID string `json:"prompt_id"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.PromptID == "" {
			return
		}
		m.mu.Lock()
		m.workerCurrentTask[workerID] = data.PromptID
		m.activeTasks[data.PromptID] = 0
		m.mu.Unlock()
		m.markRunning(ctx, data.PromptID, 0)

	case "executing":
		var data struct {
			Node *string `json:"node"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		if data.Node == nil {
			m.mu.Lock()
			delete(m.workerCurrentTask, workerID)
			m.mu.Unlock()
		}

	case "progress":
		var data struct {
			Value float64 `json:"value"`
			Max   float64 `json:"max"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.Max <= 0 {
			return
		}
		m.mu.RLock()
		promptID := m.workerCurrentTask[workerID]
		m.mu.RUnlock()
		if promptID == "" {
			return
		}
		pct := int(data.Value / data.Max * 100)
		m.recordProgress(ctx, promptID, pct)

	case "execution_error":
		var data struct {
			ExceptionMessage string `json:"exception_message"`
		}
		_ = json.Unmarshal(msg.Data, &data)
		m.mu.Lock()
		promptID := m.workerCurrentTask[workerID]
		delete(m.workerCurrentTask, workerID)
		m.mu.Unlock()
		if promptID != "" {
			m.markFailed(ctx, promptID, data.ExceptionMessage)
		}

	case "executed", "execution_cached", "status":
		// Informational only, per spec.md section 4.8.
	}
}

func (m *Monitor) recordProgress(ctx context.Context, promptID string, pct int) {
	m.mu.Lock()
	if pct < m.activeTasks[promptID] {
		pct = m.activeTasks[promptID]
	}
	m.activeTasks[promptID] = pct
	m.mu.Unlock()
	m.markRunning(ctx, promptID, pct)
}

func (m *Monitor) markRunning(ctx context.Context, promptID string, progress int) {
	rec, ok, err := m.history.GetByPromptID(ctx, promptID)
	if err != nil || !ok {
		return
	}
	if err := m.history.UpdateProgress(ctx, rec.TaskID, progress); err != nil {
		m.log.Error("update progress", map[string]interface{}{"prompt_id": promptID, "error": err.Error()})
	}
}

func (m *Monitor) markFailed(ctx context.Context, promptID, message string) {
	rec, ok, err := m.history.GetByPromptID(ctx, promptID)
	if err != nil || !ok {
		return
	}
	if err := m.history.MarkFailed(ctx, rec.TaskID, message, time.Now().Unix()); err != nil {
		m.log.Error("mark failed", map[string]interface{}{"prompt_id": promptID, "error": err.Error()})
	}
	m.mu.Lock()
	delete(m.activeTasks, promptID)
	m.mu.Unlock()
}
