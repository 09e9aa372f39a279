package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ironsheep/image-search-mcp/internal/imaging"
	"github.com/ironsheep/image-search-mcp/internal/service"
)

// maxMessageBytes bounds request bodies and websocket messages.
const maxMessageBytes = 64 * 1024 * 1024

// SearchRequest is the JSON body of /api/search and of each /ws/search
// message. Scene and Template are base64 encoded images; data URLs are
// accepted.
type SearchRequest struct {
	// ID is only read from websocket messages; HTTP requests use the
	// X-Request-ID header.
	ID           string   `json:"id,omitempty"`
	Scene        string   `json:"scene" binding:"required"`
	Template     string   `json:"template" binding:"required"`
	Threshold    *float64 `json:"threshold,omitempty"`
	Levels       int      `json:"levels,omitempty"`
	IoUThreshold *float64 `json:"iou_threshold,omitempty"`
	Canny        bool     `json:"canny,omitempty"`
}

func (r SearchRequest) request(id, transport string) service.Request {
	return service.Request{
		ID:           id,
		Transport:    transport,
		Scene:        service.Input{Base64: r.Scene},
		Template:     service.Input{Base64: r.Template},
		Threshold:    r.Threshold,
		Levels:       r.Levels,
		IoUThreshold: r.IoUThreshold,
		Canny:        r.Canny,
	}
}

// AnnotateRequest is the JSON body of /api/annotate.
type AnnotateRequest struct {
	SearchRequest
	Color     string `json:"color,omitempty"`
	Thickness int    `json:"thickness,omitempty"`
	Labels    *bool  `json:"labels,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleSearch(c *gin.Context) {
	var req SearchRequest
	if !bind(c, &req) {
		return
	}
	resp, err := s.svc.Search(c.Request.Context(), req.request(c.GetString(requestIDKey), "http"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAnnotate(c *gin.Context) {
	var req AnnotateRequest
	if !bind(c, &req) {
		return
	}
	opts := imaging.AnnotateOptions{Color: req.Color, Thickness: req.Thickness, Labels: true}
	if opts.Thickness == 0 {
		opts.Thickness = 2
	}
	if req.Labels != nil {
		opts.Labels = *req.Labels
	}
	resp, err := s.svc.Annotate(c.Request.Context(), req.request(c.GetString(requestIDKey), "http"), opts)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket answers each text message with one JSON search response
// or ErrorResponse, in order, until the client disconnects.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	log := s.log.With(zap.String("connection_id", c.GetString(requestIDKey)))
	ctx := c.Request.Context()
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket closed", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			if err := conn.WriteJSON(ErrorResponse{Error: "unsupported message type"}); err != nil {
				return
			}
			continue
		}

		var reply interface{}
		var req SearchRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			reply = ErrorResponse{Error: "invalid request: " + err.Error()}
		} else if resp, err := s.svc.Search(ctx, req.request(req.ID, "ws")); err != nil {
			reply = ErrorResponse{Error: err.Error(), RequestID: req.ID}
		} else {
			reply = resp
		}
		if err := conn.WriteJSON(reply); err != nil {
			log.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}

func bind(c *gin.Context, v interface{}) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxMessageBytes)
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), RequestID: c.GetString(requestIDKey)})
		return false
	}
	return true
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), ErrorResponse{Error: err.Error(), RequestID: c.GetString(requestIDKey)})
}

// statusFor maps bad input to 400 and everything else to 500.
func statusFor(err error) int {
	var decodeErr *imaging.ImageDecodeError
	switch {
	case errors.As(err, &decodeErr),
		errors.Is(err, service.ErrMissingImage),
		errors.Is(err, imaging.ErrInvalidColor):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
