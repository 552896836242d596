// File: internal/ws/manager.go
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(*http.Request) bool { return true },
	EnableCompression: true,
}

// StatusMsg is a human-readable status line pushed to the UI.
type StatusMsg struct {
	Type  string `json:"type"` // "status"
	Level string `json:"level"`
	Text  string `json:"text"`
}

func Status(level, text string) StatusMsg {
	return StatusMsg{Type: "status", Level: level, Text: text}
}

// Control is a message from the browser: pause/resume are handled per
// subscriber here; everything else is forwarded to the control handler.
type Control struct {
	Type   string `json:"type"`   // "control"
	Action string `json:"action"` // pause/resume/focus/refresh
	Value  any    `json:"value,omitempty"`
}

type subscriber struct {
	conn   *websocket.Conn
	out    chan any
	done   chan struct{}
	paused atomic.Bool
}

// Manager owns the subscriber registry and all broadcast fan-out. Connection
// state never leaks outside this type.
type Manager struct {
	mu        sync.RWMutex
	subs      map[*subscriber]struct{}
	onControl func(Control)
	greet     func() []any
}

func NewManager() *Manager {
	return &Manager{subs: make(map[*subscriber]struct{})}
}

// SetGreeter installs a callback producing the messages replayed to every new
// subscriber (connected status, last payload, history).
func (m *Manager) SetGreeter(fn func() []any) {
	m.mu.Lock()
	m.greet = fn
	m.mu.Unlock()
}

// SetControlHandler installs the handler for non-pause/resume control actions.
func (m *Manager) SetControlHandler(fn func(Control)) {
	m.mu.Lock()
	m.onControl = fn
	m.mu.Unlock()
}

// Count reports connected subscribers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

// Broadcast sends v to every subscriber, dropping on full buffers so a slow
// client never stalls the rest.
func (m *Manager) Broadcast(v any) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for s := range m.subs {
		select {
		case s.out <- v:
		default:
		}
	}
}

// Handler upgrades the connection and runs the subscriber's reader/writer.
func (m *Manager) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		sub := &subscriber{conn: conn, out: make(chan any, 256), done: make(chan struct{})}
		m.mu.Lock()
		m.subs[sub] = struct{}{}
		greet := m.greet
		m.mu.Unlock()

		// writer
		go func() {
			ping := time.NewTicker(45 * time.Second)
			defer ping.Stop()
			for {
				select {
				case v := <-sub.out:
					if sub.paused.Load() {
						if _, ok := v.(StatusMsg); !ok {
							continue
						}
					}
					_ = conn.WriteJSON(v)
				case <-ping.C:
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				case <-sub.done:
					return
				}
			}
		}()

		// greet + replay, even when empty, to satisfy the UI contract
		select {
		case sub.out <- Status("info", "Connected"):
		default:
		}
		if greet != nil {
			for _, v := range greet() {
				select {
				case sub.out <- v:
				default:
				}
			}
		}

		// reader
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
			return nil
		})
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if mt != websocket.TextMessage {
				continue
			}
			var ctrl Control
			if err := json.Unmarshal(data, &ctrl); err != nil || ctrl.Type != "control" {
				continue
			}
			switch ctrl.Action {
			case "pause":
				sub.paused.Store(true)
				select {
				case sub.out <- Status("info", "Paused (this tab)"):
				default:
				}
			case "resume":
				sub.paused.Store(false)
				select {
				case sub.out <- Status("success", "Resumed (this tab)"):
				default:
				}
			default:
				m.mu.RLock()
				onControl := m.onControl
				m.mu.RUnlock()
				if onControl != nil {
					onControl(ctrl)
				}
			}
		}
		close(sub.done)
		m.mu.Lock()
		delete(m.subs, sub)
		m.mu.Unlock()
	}
}
