package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/docshield/internal/domain/reporting"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/monitoring"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
	readLimit  = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // the stream is read-only
	},
}

// Message is a client request.
type Message struct {
	Type string `json:"type"`
}

// Handler streams error reports to WebSocket clients.
type Handler struct {
	reporter *reporting.Reporter
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler. logger and metrics may be nil.
func NewHandler(reporter *reporting.Reporter, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		reporter: reporter,
		metrics:  metrics,
		logger:   logger,
	}
}

// HandleConnection upgrades the request and streams reports until the
// client disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	out := make(chan interface{}, sendBuffer)
	done := make(chan struct{})

	unsubscribe := h.reporter.Subscribe(func(report reporting.ErrorReport) {
		select {
		case out <- gin.H{"type": "report", "report": report}:
		case <-done:
		default:
			h.logger.Warn("WebSocket client too slow, dropping report",
				zap.String("report_id", report.ID),
				zap.String("client", c.ClientIP()))
		}
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(conn, out, done)
	}()

	out <- gin.H{
		"type":      "system",
		"message":   "Connected to docshield report stream",
		"timestamp": time.Now().Unix(),
	}
	h.readLoop(conn, out)

	unsubscribe()
	close(done)
	<-writerDone
	conn.Close()
}

func (h *Handler) readLoop(conn *websocket.Conn, out chan<- interface{}) {
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		var reply interface{}
		switch msg.Type {
		case "ping":
			reply = gin.H{"type": "pong"}
		case "summary":
			reply = gin.H{"type": "summary", "summary": h.reporter.Summary()}
		default:
			reply = errorMessage("unknown message type")
		}
		select {
		case out <- reply:
		default:
			h.logger.Warn("WebSocket send buffer full, dropping reply", zap.String("request", msg.Type))
		}
	}
}

// writeLoop owns all writes to conn.
func (h *Handler) writeLoop(conn *websocket.Conn, out <-chan interface{}, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("WebSocket write error", zap.Error(err))
				conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func errorMessage(msg string) gin.H {
	return gin.H{
		"type":      "error",
		"message":   msg,
		"timestamp": time.Now().Unix(),
	}
}
