package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/erc4361/walletcore/pkg/log"
)

// HandlerFunc serves one route invocation. The returned value is
// JSON-serialized into the response result.
type HandlerFunc func(ctx context.Context, args []string) (any, error)

// Node is the serving side of the bridge: it upgrades HTTP connections to
// websockets and dispatches incoming requests to registered route handlers.
type Node struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	upgrader websocket.Upgrader
	lg       log.Logger
}

// NewNode creates an empty node.
func NewNode(lg log.Logger) *Node {
	if lg == nil {
		lg = log.NewNoopLogger()
	}
	return &Node{
		handlers: make(map[string]HandlerFunc),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		lg: lg.WithName("bridge-node"),
	}
}

// Handle registers a handler for a route name. Registering twice replaces
// the previous handler.
func (n *Node) Handle(route string, fn HandlerFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[route] = fn
}

// HandleConnection upgrades the HTTP request and serves bridge requests
// until the peer disconnects.
func (n *Node) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.lg.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := log.SetContextLogger(r.Context(), n.lg)
	var writeMu sync.Mutex

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				n.lg.Warn("bridge connection closed unexpectedly", "error", err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			n.lg.Warn("malformed bridge request", "message", string(data), "error", err)
			continue
		}

		go n.dispatch(ctx, conn, &writeMu, req)
	}
}

func (n *Node) dispatch(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, req Request) {
	n.mu.RLock()
	handler, ok := n.handlers[req.Route]
	n.mu.RUnlock()

	res := Response{ID: req.ID, Route: req.Route}
	if !ok {
		res.Error = "unknown route: " + req.Route
	} else if result, err := handler(ctx, req.Args); err != nil {
		res.Error = err.Error()
	} else if result != nil {
		encoded, err := json.Marshal(result)
		if err != nil {
			res.Error = "failed to encode result: " + err.Error()
		} else {
			res.Result = encoded
		}
	}

	data, err := json.Marshal(res)
	if err != nil {
		n.lg.Error("failed to marshal bridge response", "route", req.Route, "error", err)
		return
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		n.lg.Error("failed to write bridge response", "route", req.Route, "error", err)
	}
}
