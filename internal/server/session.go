package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/kitsu-catalog/pkg/catalog"
	"github.com/Sternrassler/kitsu-catalog/pkg/pagination"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Events sent by the browser.
const (
	EventVisible  = "visible"
	EventHidden   = "hidden"
	EventLoadMore = "load_more"
)

// Messages sent to the browser.
const (
	MessageReady   = "ready"
	MessagePage    = "page"
	MessageNoMore  = "no_more"
	MessageSkipped = "skipped"
	MessageError   = "error"
)

const writeTimeout = 10 * time.Second

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kitsu_ws_sessions_active",
		Help: "Open WebSocket collection sessions",
	})

	sessionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitsu_ws_events_total",
			Help: "Browser events received by WebSocket sessions",
		},
		[]string{"type"},
	)
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type clientEvent struct {
	Type string `json:"type"`
}

type serverMessage struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id,omitempty"`
	Query     string           `json:"query,omitempty"`
	Trigger   string           `json:"trigger,omitempty"`
	Items     []catalog.Entity `json:"items,omitempty"`
	Added     int              `json:"added"`
	Count     int              `json:"count"`
	Cursor    int              `json:"cursor"`
	Exhausted bool             `json:"exhausted"`
	Total     int              `json:"total,omitempty"`
	Error     string           `json:"error,omitempty"`
	Class     string           `json:"class,omitempty"`
	Halted    bool             `json:"halted,omitempty"`
}

// session binds one loader and driver to one connection.
type session struct {
	id     string
	conn   *websocket.Conn
	query  catalog.Query
	loader *pagination.Loader
	driver *pagination.Driver
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger

	writeMu sync.Mutex
}

func (s *Server) searchSession(c *gin.Context) {
	media, ok := mediaParam(c)
	if !ok {
		return
	}
	text := strings.TrimSpace(c.Query("q"))
	if text == "" {
		badRequest(c, "q is required")
		return
	}
	s.serveSession(c, catalog.Search(media, text))
}

func (s *Server) relationSession(c *gin.Context) {
	media, ok := mediaParam(c)
	if !ok {
		return
	}
	q, err := relationQuery(media, c.Param("slug"), c.Param("relation"))
	if err != nil {
		notFound(c, err.Error())
		return
	}
	s.serveSession(c, q)
}

// serveSession runs a session for q. With ?seed=true the first page is
// fetched before the upgrade and delivered with the ready message; the loader
// continues from its next offset.
func (s *Server) serveSession(c *gin.Context, q catalog.Query) {
	if err := q.Validate(); err != nil {
		badRequest(c, err.Error())
		return
	}

	var seed *catalog.Page
	if c.Query("seed") == "true" {
		page, err := s.catalog.FetchPage(c.Request.Context(), q, 0)
		if err != nil {
			writeError(c, err)
			return
		}
		seed = page
	}

	loader, err := pagination.NewLoader(pagination.Config{
		Query:   q,
		Fetcher: s.catalog,
		Initial: seed,
		Timeout: s.loadTimeout,
	})
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		id:     uuid.New().String(),
		conn:   conn,
		query:  q,
		loader: loader,
		ctx:    ctx,
		cancel: cancel,
	}
	sess.logger = s.logger.With().
		Str("session_id", sess.id).
		Str("request_id", c.GetString(ctxRequestID)).
		Str("query", q.String()).
		Logger()
	sess.driver = pagination.NewDriver(loader, sess.onEvent, pagination.WithHaltOnPermanent())

	s.sessions.add(sess)
	activeSessions.Inc()
	sess.logger.Info().Msg("Session opened")

	defer func() {
		sess.close()
		s.sessions.remove(sess.id)
		activeSessions.Dec()
		sess.logger.Info().
			Int("items", loader.Len()).
			Bool("exhausted", loader.Exhausted()).
			Msg("Session closed")
	}()

	ready := serverMessage{
		Type:      MessageReady,
		SessionID: sess.id,
		Query:     q.String(),
	}
	if seed != nil {
		ready.Items = catalog.ViewItems(q, loader.Items())
		ready.Added = loader.Len()
		ready.Count = loader.Len()
		ready.Cursor = loader.Cursor().Int()
		ready.Exhausted = loader.Exhausted()
		ready.Total = loader.Total()
	}
	if err := sess.send(ready); err != nil {
		return
	}
	sess.readLoop()
}

func (s *session) readLoop() {
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Msg("Session read failed")
			}
			return
		}

		var ev clientEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			_ = s.send(serverMessage{Type: MessageError, Error: "malformed event"})
			continue
		}

		switch ev.Type {
		case EventVisible:
			s.driver.SetVisible(s.ctx, true)
		case EventHidden:
			s.driver.SetVisible(s.ctx, false)
		case EventLoadMore:
			s.driver.LoadMore(s.ctx)
		default:
			_ = s.send(serverMessage{Type: MessageError, Error: "unknown event " + ev.Type})
			continue
		}
		sessionEvents.WithLabelValues(ev.Type).Inc()
	}
}

// onEvent turns a driver event into a message. It runs on load goroutines.
func (s *session) onEvent(ev pagination.Event) {
	out := ev.Outcome
	msg := serverMessage{
		Trigger:   string(ev.Trigger),
		Count:     s.loader.Len(),
		Cursor:    out.Cursor.Int(),
		Exhausted: out.Exhausted,
		Total:     s.loader.Total(),
	}

	switch out.Status {
	case pagination.StatusLoaded:
		msg.Type = MessagePage
		msg.Items = catalog.ViewItems(s.query, out.Added)
		msg.Added = out.NewItems
	case pagination.StatusNoMore:
		msg.Type = MessageNoMore
	case pagination.StatusSkipped:
		msg.Type = MessageSkipped
	case pagination.StatusFailed:
		msg.Type = MessageError
		msg.Error = out.Err.Error()
		msg.Class = errorClass(out.Err)
		msg.Halted = s.driver.Halted()
	}

	if err := s.send(msg); err != nil {
		s.logger.Debug().Err(err).Str("type", msg.Type).Msg("Dropping message for closed session")
	}
}

func (s *session) send(msg serverMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(msg)
}

// close cancels in-flight loads, waits for them and closes the connection.
func (s *session) close() {
	s.cancel()
	s.driver.Wait()
	_ = s.conn.Close()
}

// registry tracks open sessions for health reporting and shutdown.
type registry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*session)}
}

func (r *registry) add(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// closeAll unblocks every session's read loop; each session cleans up itself.
func (r *registry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.cancel()
		_ = s.conn.Close()
	}
}
