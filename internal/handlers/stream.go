package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"draw_queue/internal/auth"
	"draw_queue/internal/presence"
	"draw_queue/internal/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *QueueHandler) subscribe(c *gin.Context) (*presence.Client, bool) {
	productID := c.Param("id")
	if productID == "" {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "MISSING_PARAMETER",
			Message: "product id is required",
		})
		return nil, false
	}
	client, err := h.hub.Subscribe(productID, auth.UserID(c))
	if errors.Is(err, presence.ErrHubClosed) {
		c.JSON(http.StatusServiceUnavailable, response.ErrorResponse{
			Code:    "SHUTTING_DOWN",
			Message: "server is shutting down",
		})
		return nil, false
	}
	return client, err == nil
}

// Events отдаёт события очереди через server-sent events
// @Summary		События очереди (SSE)
// @Description	Поток событий connected и queue_update по товару. Каждое queue_update содержит статус и позицию самого подписчика. Токен можно передать параметром token.
// @Tags			queue
// @Produce		text/event-stream
// @Param			id		path	string	true	"ID товара"
// @Param			token	query	string	false	"Access токен"
// @Security		BearerAuth
// @Success		200
// @Failure		401	{object}	response.ErrorResponse	"NO_AUTH_HEADER, INVALID_TOKEN, TOKEN_EXPIRED"
// @Router			/api/products/{id}/queue/events [get]
func (h *QueueHandler) Events(c *gin.Context) {
	client, ok := h.subscribe(c)
	if !ok {
		return
	}
	defer client.Close()

	if err := presence.StreamSSE(c.Request.Context(), c.Writer, client, h.stream.PingInterval); err != nil {
		slog.Default().DebugContext(c.Request.Context(), "event stream ended",
			slog.String("product_id", client.ProductID),
			slog.String("user_id", client.UserID),
			slog.String("err", err.Error()),
		)
	}
}

// WebSocket отдаёт события очереди через WebSocket
// @Summary		События очереди (WebSocket)
// @Description	Те же события, что и в SSE, в виде текстовых JSON-кадров.
// @Tags			queue
// @Param			id		path	string	true	"ID товара"
// @Param			token	query	string	false	"Access токен"
// @Security		BearerAuth
// @Success		101
// @Failure		401	{object}	response.ErrorResponse	"NO_AUTH_HEADER, INVALID_TOKEN, TOKEN_EXPIRED"
// @Router			/api/products/{id}/queue/ws [get]
func (h *QueueHandler) WebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already answered the client.
		return
	}
	client, err := h.hub.Subscribe(c.Param("id"), auth.UserID(c))
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "shutting down"))
		conn.Close()
		return
	}
	presence.ServeWebsocket(conn, client, h.stream.PingInterval)
}
