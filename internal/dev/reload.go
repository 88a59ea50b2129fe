package dev

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ReloadPath is the WebSocket endpoint browsers connect to.
const ReloadPath = "/_tsbuild/reload"

// ReloadMessageType represents the type of reload message.
type ReloadMessageType string

const (
	ReloadTypeFull  ReloadMessageType = "reload"
	ReloadTypeCSS   ReloadMessageType = "css"
	ReloadTypeError ReloadMessageType = "error"
	ReloadTypeClear ReloadMessageType = "clear"
)

const (
	// clientQueue is how many messages a browser may fall behind before
	// it is disconnected.
	clientQueue = 16
	writeWait   = 5 * time.Second
)

// ReloadMessage is one rebuild event pushed to the browsers.
type ReloadMessage struct {
	Type ReloadMessageType `json:"type"`

	// BuildID identifies the rebuild that produced the event.
	BuildID string `json:"build,omitempty"`

	// Files are the changed files. For css messages they are the
	// stylesheets to swap, slash-separated and relative to the output
	// directory; for reload messages the changed project files.
	Files []string `json:"files,omitempty"`

	// Error is the rendered build failure.
	Error string `json:"error,omitempty"`
}

type reloadClient struct {
	conn *websocket.Conn
	send chan []byte
}

// ReloadServer pushes rebuild events to connected browsers. Each browser
// has its own send queue and writer goroutine. A browser that connects
// while the build is broken receives the current failure right away.
type ReloadServer struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*reloadClient]struct{}
	failure []byte
}

// NewReloadServer creates a new reload server.
func NewReloadServer() *ReloadServer {
	return &ReloadServer{
		clients: make(map[*reloadClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dev server is only reached from the developer's browser.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: slog.Default().With("component", "reload"),
	}
}

// HandleWebSocket upgrades the request and keeps the browser registered
// until it disconnects.
func (r *ReloadServer) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Debug("upgrade failed", "error", err)
		return
	}
	c := &reloadClient{conn: conn, send: make(chan []byte, clientQueue)}

	r.mu.Lock()
	r.clients[c] = struct{}{}
	if r.failure != nil {
		c.send <- r.failure
	}
	r.mu.Unlock()
	r.logger.Debug("browser connected", "remote", req.RemoteAddr)

	go c.write()

	// Browsers never send anything; reading detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	r.drop(c)
}

// write drains the send queue until it is closed or a write fails.
func (c *reloadClient) write() {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
}

// drop unregisters c and stops its writer. It is safe to call twice.
func (r *ReloadServer) drop(c *reloadClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c]; ok {
		delete(r.clients, c)
		close(c.send)
	}
}

// NotifyReload tells browsers to reload the page after build buildID
// rebuilt files.
func (r *ReloadServer) NotifyReload(buildID string, files []string) {
	r.broadcast(ReloadMessage{Type: ReloadTypeFull, BuildID: buildID, Files: files})
}

// NotifyCSS tells browsers to swap the given stylesheets, relative to the
// output directory, without reloading the page.
func (r *ReloadServer) NotifyCSS(buildID string, stylesheets []string) {
	r.broadcast(ReloadMessage{Type: ReloadTypeCSS, BuildID: buildID, Files: stylesheets})
}

// NotifyError shows the build failure in every browser, including those
// that connect before the next successful build.
func (r *ReloadServer) NotifyError(buildID, errMsg string) {
	r.broadcast(ReloadMessage{Type: ReloadTypeError, BuildID: buildID, Error: errMsg})
}

// ClearError removes the failure overlay.
func (r *ReloadServer) ClearError() {
	r.broadcast(ReloadMessage{Type: ReloadTypeClear})
}

// broadcast queues msg for every browser. Browsers whose queue is full are
// disconnected; they reconnect and resync on their own.
func (r *ReloadServer) broadcast(msg ReloadMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.Type == ReloadTypeError {
		r.failure = data
	} else {
		r.failure = nil
	}
	for c := range r.clients {
		select {
		case c.send <- data:
		default:
			r.logger.Debug("browser too slow, disconnecting")
			delete(r.clients, c)
			close(c.send)
		}
	}
}

// ClientCount returns the number of connected clients.
func (r *ReloadServer) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Close disconnects every browser.
func (r *ReloadServer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		delete(r.clients, c)
		close(c.send)
	}
}

// DevClientScript is the live reload client injected into HTML pages.
const DevClientScript = `
<script>
(function() {
    'use strict';

    var reconnectDelay = 1000;
    var maxReconnectDelay = 30000;

    function connect() {
        var protocol = location.protocol === 'https:' ? 'wss:' : 'ws:';
        var ws = new WebSocket(protocol + '//' + location.host + '` + ReloadPath + `');

        ws.onopen = function() {
            reconnectDelay = 1000;
        };

        ws.onmessage = function(e) {
            var msg;
            try {
                msg = JSON.parse(e.data);
            } catch (err) {
                return;
            }
            var files = msg.files || [];

            switch (msg.type) {
                case 'reload':
                    console.log('[tsbuild] build ' + msg.build + ': ' + files.join(', '));
                    location.reload();
                    break;

                case 'css':
                    if (swapStylesheets(files, msg.build) < files.length) {
                        location.reload();
                    }
                    break;

                case 'error':
                    console.error('[tsbuild] build ' + msg.build + ' failed:\n' + msg.error);
                    showFailure(msg.error);
                    break;

                case 'clear':
                    clearFailure();
                    break;
            }
        };

        ws.onclose = function() {
            setTimeout(function() {
                reconnectDelay = Math.min(reconnectDelay * 2, maxReconnectDelay);
                connect();
            }, reconnectDelay);
        };

        ws.onerror = function() {
            ws.close();
        };
    }

    // swapStylesheets reloads the <link> elements serving the given output
    // paths and returns how many of the paths were found on the page.
    function swapStylesheets(files, build) {
        var found = {};
        document.querySelectorAll('link[rel="stylesheet"]').forEach(function(link) {
            var url = new URL(link.href, location.href);
            if (url.host !== location.host) {
                return;
            }
            var path = decodeURIComponent(url.pathname).replace(/^\/+/, '');
            if (files.indexOf(path) < 0) {
                return;
            }
            found[path] = true;
            url.searchParams.set('tsbuild', build);
            link.href = url.toString();
        });
        return Object.keys(found).length;
    }

    function showFailure(error) {
        clearFailure();

        var overlay = document.createElement('div');
        overlay.id = 'tsbuild-error-overlay';
        overlay.style.cssText = 'position:fixed;inset:0;background:rgba(0,0,0,0.9);color:#fff;font:14px monospace;padding:20px;overflow:auto;z-index:999999;';

        var title = document.createElement('h2');
        title.style.cssText = 'color:#ff5555;margin:0 0 20px;';
        title.textContent = 'TypeScript build failed';

        var pre = document.createElement('pre');
        pre.style.cssText = 'white-space:pre-wrap;background:#1a1a1a;padding:20px;border-radius:8px;';
        pre.textContent = error;

        overlay.appendChild(title);
        overlay.appendChild(pre);
        document.body.appendChild(overlay);
    }

    function clearFailure() {
        var overlay = document.getElementById('tsbuild-error-overlay');
        if (overlay) {
            overlay.remove();
        }
    }

    if (document.readyState === 'loading') {
        document.addEventListener('DOMContentLoaded', connect);
    } else {
        connect();
    }
})();
</script>
`
