package framejob

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/xerrors"
)

//////////////////////////////////////////////////////////////////////////////
//
//
//
// Private
//
//
//
//////////////////////////////////////////////////////////////////////////////

// Event types sent to websocket clients.
const (
	jobEventFinished = "job_finished"
)

// A type representing the messages that we'll be serializing and sending back
// over a websocket.
type jobEvent struct {
	Job  *JobRecord `json:"job,omitempty"`
	Type string     `json:"type"`
}

// The response body of the status endpoint.
type statusResponse struct {
	Recent []JobRecord    `json:"recent"`
	Stats  StatsSnapshot  `json:"stats"`
	Pool   poolStatistics `json:"pool"`
}

type poolStatistics struct {
	NumCompleted int64 `json:"num_completed"`
	NumSubmitted int64 `json:"num_submitted"`
}

// The frequency at which to send pings back to clients connected over a
// websocket.
const websocketPingPeriod = 30 * time.Second

// Number of events buffered per websocket client. Events for a client that
// falls further behind than this are dropped.
const websocketEventBuffer = 64

// Part of the Gorilla websocket infrastructure that upgrades HTTP connections
// to websocket connections when we see an incoming websocket request.
var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Fans out job events to any number of subscribers. Publishing never blocks.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan *jobEvent]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan *jobEvent]struct{})}
}

func (b *broadcaster) publish(event *jobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		select {
		case sub <- event:
		default:
		}
	}
}

func (b *broadcaster) subscribe() chan *jobEvent {
	sub := make(chan *jobEvent, websocketEventBuffer)

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

func (b *broadcaster) unsubscribe(sub chan *jobEvent) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

func newStatusHandler(c *Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", getStatusHandler(c))
	mux.HandleFunc("/websocket", getWebsocketHandler(c))
	return mux
}

// Starts serving job status over HTTP on the configured port. A server
// instance is returned so that it can be shut down gracefully.
func startServingStatusHTTP(c *Context, errs chan<- error) *http.Server {
	c.Log.Infof("Serving status to: http://localhost:%v/status", c.Config.Port)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%v", c.Config.Port),
		Handler:           newStatusHandler(c),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := server.ListenAndServe()

		// ListenAndServe always returns a non-nil error (but if started
		// successfully, it'll block for a long time).
		if err != http.ErrServerClosed {
			errs <- xerrors.Errorf("error starting HTTP server: %w", err)
		}
	}()

	return server
}

func stopServingStatusHTTP(c *Context, server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		c.Log.Errorf("Error shutting down HTTP server: %v", err)
	}
}

func getStatusHandler(c *Context) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := &statusResponse{
			Pool: poolStatistics{
				NumCompleted: c.Pool.NumCompleted(),
				NumSubmitted: c.Pool.NumSubmitted(),
			},
			Recent: c.Recent(),
			Stats:  c.Stats.Snapshot(),
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			c.Log.Errorf("Error writing status response: %v", err)
		}
	}
}

func getWebsocketHandler(c *Context) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocketUpgrader.Upgrade(w, r, nil)
		if err != nil {
			c.Log.Errorf("Error upgrading websocket connection: %v", err)
			return
		}

		go websocketWritePump(c, conn)
	}
}

func websocketWritePump(c *Context, conn *websocket.Conn) {
	events := c.events.subscribe()
	ticker := time.NewTicker(websocketPingPeriod)
	defer func() {
		c.events.unsubscribe(events)
		ticker.Stop()
		conn.Close()
	}()

	// Reads are only needed to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	var err error

	for {
		select {
		case <-closed:
			c.Log.Debugf("Websocket client disconnected")
			return

		case event := <-events:
			if err = conn.WriteJSON(event); err != nil {
				goto errored
			}

		case <-ticker.C:
			if err = conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				goto errored
			}
		}
	}

errored:
	c.Log.Errorf("Error writing to websocket: %v", err)
}
