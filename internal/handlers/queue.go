package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"draw_queue/internal/auth"
	"draw_queue/internal/presence"
	"draw_queue/internal/queue"
	"draw_queue/internal/response"

	"github.com/gin-gonic/gin"
)

// QueueHandler отдаёт наружу движок очереди, счётчики и потоки событий.
type QueueHandler struct {
	engine *queue.Engine
	hub    *presence.Hub
	auth   *auth.Authenticator
	stream presence.Config
}

func NewQueueHandler(engine *queue.Engine, hub *presence.Hub, authn *auth.Authenticator, pc presence.Config) *QueueHandler {
	return &QueueHandler{engine: engine, hub: hub, auth: authn, stream: pc}
}

// writeError maps engine errors onto the API error body.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrMissingProduct), errors.Is(err, queue.ErrMissingUser):
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "MISSING_PARAMETER",
			Message: err.Error(),
		})
	case errors.Is(err, queue.ErrNotInQueue):
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "NOT_IN_QUEUE",
			Message: "user is not in the queue",
		})
	case errors.Is(err, queue.ErrBusy):
		c.JSON(http.StatusServiceUnavailable, response.ErrorResponse{
			Code:    "QUEUE_BUSY",
			Message: "queue is busy, retry shortly",
		})
	default:
		slog.Default().ErrorContext(c.Request.Context(), "queue request failed",
			slog.String("path", c.FullPath()),
			slog.String("err", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "queue storage error",
			Details: err.Error(),
		})
	}
}

// Join обрабатывает запрос на вступление в очередь розыгрыша
// @Summary		Вступление в очередь
// @Description	Выдаёт активный слот, если он свободен и никто не ждёт, иначе ставит пользователя в конец очереди ожидания. Повторное вступление возвращает существующую запись.
// @Tags			queue
// @Produce		json
// @Param			id	path		string	true	"ID товара"
// @Security		BearerAuth
// @Success		200	{object}	response.EntryResponse
// @Failure		400	{object}	response.ErrorResponse	"MISSING_PARAMETER"
// @Failure		401	{object}	response.ErrorResponse	"NO_AUTH_HEADER, INVALID_TOKEN, TOKEN_EXPIRED"
// @Failure		503	{object}	response.ErrorResponse	"QUEUE_BUSY"
// @Failure		500	{object}	response.ErrorResponse	"DB_ERROR"
// @Router			/api/products/{id}/queue/join [post]
func (h *QueueHandler) Join(c *gin.Context) {
	entry, err := h.engine.Join(c.Request.Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.NewEntryResponse(entry))
}

// Heartbeat продлевает запись пользователя
// @Summary		Продление записи в очереди
// @Description	Сдвигает дедлайн записи. Запись с уже истёкшим дедлайном удаляется, в ответ приходит NOT_IN_QUEUE.
// @Tags			queue
// @Produce		json
// @Param			id	path		string	true	"ID товара"
// @Security		BearerAuth
// @Success		200	{object}	response.EntryResponse
// @Failure		401	{object}	response.ErrorResponse	"NO_AUTH_HEADER, INVALID_TOKEN, TOKEN_EXPIRED"
// @Failure		404	{object}	response.ErrorResponse	"NOT_IN_QUEUE"
// @Failure		503	{object}	response.ErrorResponse	"QUEUE_BUSY"
// @Router			/api/products/{id}/queue/heartbeat [post]
func (h *QueueHandler) Heartbeat(c *gin.Context) {
	entry, err := h.engine.Heartbeat(c.Request.Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.NewEntryResponse(entry))
}

// Leave обрабатывает запрос на выход из очереди
// @Summary		Выход из очереди
// @Description	Удаляет запись пользователя. Токен берётся из заголовка Authorization или из тела (JSON, форма или просто токен), чтобы работали beacon-запросы при закрытии страницы. Выход без записи считается успешным.
// @Tags			queue
// @Accept			json,plain,x-www-form-urlencoded
// @Produce		json
// @Param			id	path		string	true	"ID товара"
// @Success		200	{object}	response.SuccessResponse
// @Failure		401	{object}	response.ErrorResponse	"NO_AUTH_HEADER, INVALID_TOKEN, TOKEN_EXPIRED"
// @Router			/api/products/{id}/queue/leave [post]
func (h *QueueHandler) Leave(c *gin.Context) {
	h.leave(c, c.Param("id"))
}

// LeaveBeacon обрабатывает beacon-запрос на выход из очереди
// @Summary		Выход из очереди через beacon
// @Description	То же, что выход по маршруту товара, но ID товара передаётся в теле.
// @Tags			queue
// @Accept			json,plain,x-www-form-urlencoded
// @Produce		json
// @Success		200	{object}	response.SuccessResponse
// @Failure		400	{object}	response.ErrorResponse	"MISSING_PARAMETER"
// @Failure		401	{object}	response.ErrorResponse	"NO_AUTH_HEADER, INVALID_TOKEN, TOKEN_EXPIRED"
// @Router			/api/queue/leave [post]
func (h *QueueHandler) LeaveBeacon(c *gin.Context) {
	h.leave(c, "")
}

func (h *QueueHandler) leave(c *gin.Context, productID string) {
	req, err := parseLeaveRequest(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_BODY",
			Message: "can't read request body",
			Details: err.Error(),
		})
		return
	}
	if productID == "" {
		productID = req.ProductID
	}

	raw := c.GetHeader("Authorization")
	if raw == "" {
		raw = req.Token
	}
	userID, err := h.auth.ParseToken(raw)
	if err != nil {
		auth.Abort(c, err)
		return
	}

	if err := h.engine.Leave(c.Request.Context(), productID, userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Message: "left the queue"})
}

// Status обрабатывает запрос на получение статуса очереди
// @Summary		Получение статуса очереди
// @Description	Запись пользователя, если он авторизован и стоит в очереди, иначе только число пользователей в очереди.
// @Tags			queue
// @Produce		json
// @Param			id	path		string	true	"ID товара"
// @Security		BearerAuth
// @Success		200	{object}	response.StatusResponse
// @Failure		400	{object}	response.ErrorResponse	"MISSING_PARAMETER"
// @Router			/api/products/{id}/queue/status [get]
func (h *QueueHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	productID := c.Param("id")

	if userID := auth.UserID(c); userID != "" {
		st, err := h.engine.Status(ctx, productID, userID)
		if err != nil {
			writeError(c, err)
			return
		}
		if st.InQueue {
			c.JSON(http.StatusOK, response.StatusResponse{
				InQueue:   true,
				Status:    string(st.Status),
				Position:  st.Position,
				ExpiresAt: &st.ExpiresAt,
			})
			return
		}
	}

	n, err := h.engine.Count(ctx, productID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.StatusResponse{QueueLength: &n})
}

// Counts обрабатывает запрос на получение длины нескольких очередей
// @Summary		Длины очередей нескольких товаров
// @Description	Число ожидающих и активных пользователей по каждому товару. Для неизвестных товаров возвращается 0.
// @Tags			queue
// @Produce		json
// @Param			product_ids	query		string	true	"ID товаров через запятую"
// @Success		200			{object}	response.CountResponse
// @Failure		400			{object}	response.ErrorResponse	"MISSING_PARAMETER"
// @Router			/api/queues/counts [get]
func (h *QueueHandler) Counts(c *gin.Context) {
	var ids []string
	for _, v := range c.QueryArray("product_ids") {
		for _, id := range strings.Split(v, ",") {
			ids = append(ids, strings.TrimSpace(id))
		}
	}
	counts, err := h.engine.CountBatch(c.Request.Context(), ids)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.CountResponse(counts))
}
