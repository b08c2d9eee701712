package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/idilsaglam/checklist/internal/checklist"
	"github.com/idilsaglam/checklist/internal/model"
)

// Websocket command types.
const (
	cmdItems        = "check_list/items"
	cmdAdd          = "check_list/items/add"
	cmdUpdate       = "check_list/items/update"
	cmdClear        = "check_list/items/clear"
	cmdReorder      = "check_list/items/reorder"
	cmdSubscribe    = "subscribe_events"
	cmdUnsubscribe  = "unsubscribe_events"
	errItemNotFound = "item_not_found"
	errNotFound     = "not_found"
	errInvalid      = "invalid_format"
	errUnknown      = "unknown_command"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

type wsCommand struct {
	ID           int      `json:"id"`
	Type         string   `json:"type"`
	Name         *string  `json:"name"`
	ItemType     *string  `json:"item_type"`
	ItemID       string   `json:"item_id"`
	ItemIDs      []string `json:"item_ids"`
	Subscription int      `json:"subscription"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wsResult struct {
	ID      int      `json:"id"`
	Type    string   `json:"type"`
	Success bool     `json:"success"`
	Result  any      `json:"result"`
	Error   *wsError `json:"error,omitempty"`
}

type wsEvent struct {
	ID    int         `json:"id"`
	Type  string      `json:"type"`
	Event model.Event `json:"event"`
}

// wsConn serves one websocket client. Only writeLoop writes to the socket.
type wsConn struct {
	srv  *Server
	conn *websocket.Conn
	out  chan any
	done chan struct{}
	wg   sync.WaitGroup

	mu   sync.Mutex
	subs map[int]func()
}

func (s *Server) websocket(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.allow(clientKey(r), s.now()) {
		s.metrics.Throttled()
		s.respondMessage(w, "Too many requests", http.StatusTooManyRequests)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		s.logger.Info("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &wsConn{
		srv:  s,
		conn: conn,
		out:  make(chan any, 16),
		done: make(chan struct{}),
		subs: make(map[int]func()),
	}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
	}()

	s.logger.Debug("websocket connected", zap.String("remote", r.RemoteAddr))
	c.serve(r.Context())
	s.logger.Debug("websocket closed", zap.String("remote", r.RemoteAddr))
}

func (c *wsConn) serve(ctx context.Context) {
	c.wg.Add(1)
	go c.writeLoop()

	defer func() {
		close(c.done)
		c.mu.Lock()
		for id, cancel := range c.subs {
			cancel()
			delete(c.subs, id)
		}
		c.mu.Unlock()
		c.wg.Wait()
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.dispatch(ctx, data)
	}
}

func (c *wsConn) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case msg := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.srv.logger.Debug("websocket write failed", zap.Error(err))
				// unblocks the read loop
				c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsConn) send(msg any) {
	select {
	case c.out <- msg:
	case <-c.done:
	}
}

func (c *wsConn) result(id int, v any) {
	c.send(wsResult{ID: id, Type: "result", Success: true, Result: v})
}

func (c *wsConn) fail(id int, code, message string) {
	c.send(wsResult{ID: id, Type: "result", Error: &wsError{Code: code, Message: message}})
}

func (c *wsConn) dispatch(ctx context.Context, data []byte) {
	var cmd wsCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		// type errors still fill in the remaining fields, id included
		c.fail(cmd.ID, errInvalid, "Message incorrectly formatted.")
		return
	}
	store := c.srv.store

	switch cmd.Type {
	case cmdItems:
		c.result(cmd.ID, store.Items())

	case cmdAdd:
		if cmd.Name == nil {
			c.fail(cmd.ID, errInvalid, "required key not provided @ data['name']")
			return
		}
		c.result(cmd.ID, store.Add(ctx, *cmd.Name, cmd.ItemType))

	case cmdUpdate:
		var fields model.Fields
		if err := json.Unmarshal(data, &fields); err != nil {
			c.fail(cmd.ID, errInvalid, "Message incorrectly formatted.")
			return
		}
		delete(fields, "id")
		delete(fields, "type")
		delete(fields, "item_id")
		item, err := store.Update(ctx, cmd.ItemID, fields)
		switch {
		case err == nil:
			c.result(cmd.ID, item)
		case checklist.IsNotFound(err):
			c.fail(cmd.ID, errItemNotFound, "Item not found")
		default:
			c.fail(cmd.ID, errInvalid, err.Error())
		}

	case cmdClear:
		store.ClearCompleted(ctx)
		c.result(cmd.ID, nil)

	case cmdReorder:
		if cmd.ItemIDs == nil {
			c.fail(cmd.ID, errInvalid, "required key not provided @ data['item_ids']")
			return
		}
		err := store.Reorder(ctx, cmd.ItemIDs)
		switch {
		case err == nil:
			c.result(cmd.ID, nil)
		case checklist.IsNotFound(err):
			c.fail(cmd.ID, errNotFound, "One or more item id(s) not found.")
		default:
			c.fail(cmd.ID, errInvalid, err.Error())
		}

	case cmdSubscribe:
		c.subscribe(cmd.ID)
		c.result(cmd.ID, nil)

	case cmdUnsubscribe:
		c.mu.Lock()
		cancel, ok := c.subs[cmd.Subscription]
		delete(c.subs, cmd.Subscription)
		c.mu.Unlock()
		if !ok {
			c.fail(cmd.ID, errNotFound, "Subscription not found.")
			return
		}
		cancel()
		c.result(cmd.ID, nil)

	default:
		c.fail(cmd.ID, errUnknown, "Unknown command.")
	}
}

// subscribe forwards store events tagged with the subscribing command id.
func (c *wsConn) subscribe(id int) {
	events, cancel := c.srv.store.Subscribe(c.srv.buffer)
	c.mu.Lock()
	if prev, ok := c.subs[id]; ok {
		prev()
	}
	c.subs[id] = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for ev := range events {
			select {
			case c.out <- wsEvent{ID: id, Type: "event", Event: ev}:
			case <-c.done:
				return
			}
		}
	}()
}
