package satchel

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// FeedMessage is the JSON format for change feed WebSocket messages.
type FeedMessage struct {
	Type        string       `json:"type"`
	Collections []string     `json:"collections,omitempty"`
	Ops         []ChangeOp   `json:"ops,omitempty"`
	Event       *ChangeEvent `json:"event,omitempty"`
	SubID       string       `json:"sub_id,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// WebSocketHandler returns an HTTP handler that serves the change feed over
// a WebSocket. Clients send {"type":"subscribe","collections":[...],
// "ops":[...]} and receive {"type":"event",...} messages until they
// unsubscribe or disconnect.
func (f *Feed) WebSocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer func() { _ = conn.Close() }()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		connSubs := make(map[string]*FeedSubscription)
		var connMu sync.Mutex

		go func() {
			defer cancel()
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}

				var cmd FeedMessage
				if err := json.Unmarshal(msg, &cmd); err != nil {
					f.sendError(conn, "invalid message format")
					continue
				}

				switch cmd.Type {
				case "subscribe":
					sub, err := f.Subscribe(FeedFilter{
						Collections: cmd.Collections,
						Ops:         cmd.Ops,
					})
					if err != nil {
						f.sendError(conn, err.Error())
						continue
					}
					connMu.Lock()
					connSubs[sub.ID] = sub
					connMu.Unlock()

					resp, _ := json.Marshal(FeedMessage{
						Type:  "subscribed",
						SubID: sub.ID,
					})
					_ = conn.WriteMessage(websocket.TextMessage, resp)

					go f.forwardEvents(ctx, conn, sub)

				case "unsubscribe":
					connMu.Lock()
					if sub, ok := connSubs[cmd.SubID]; ok {
						delete(connSubs, cmd.SubID)
						f.Unsubscribe(sub.ID)
					}
					connMu.Unlock()

					resp, _ := json.Marshal(FeedMessage{
						Type:  "unsubscribed",
						SubID: cmd.SubID,
					})
					_ = conn.WriteMessage(websocket.TextMessage, resp)

				default:
					f.sendError(conn, "unknown command: "+cmd.Type)
				}
			}
		}()

		<-ctx.Done()

		connMu.Lock()
		for _, sub := range connSubs {
			f.Unsubscribe(sub.ID)
		}
		connMu.Unlock()
	}
}

func (f *Feed) forwardEvents(ctx context.Context, conn *websocket.Conn, sub *FeedSubscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Events:
			if !ok {
				return
			}
			msg, _ := json.Marshal(FeedMessage{
				Type:  "event",
				SubID: sub.ID,
				Event: &e,
			})
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func (f *Feed) sendError(conn *websocket.Conn, msg string) {
	resp, _ := json.Marshal(FeedMessage{
		Type:  "error",
		Error: msg,
	})
	_ = conn.WriteMessage(websocket.TextMessage, resp)
}
