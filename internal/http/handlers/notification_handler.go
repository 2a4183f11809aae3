// Notification HTTP handlers.
//
//   - GET /notifications?user_email=
//   - GET /notifications/longpoll?user_email=&last_time=
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/thaihand/carry-backend/internal/http/middleware"
	"github.com/thaihand/carry-backend/internal/services"
)

// LongPollResponse wraps the notifications delivered by one long-poll.
type LongPollResponse struct {
	Notifications []services.NotificationView `json:"notifications"`
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     All notifications of a user
// @Description Oldest first, each enriched with the other party's name, email and image. Unknown or empty user_email yields an empty list.
// @Tags        Notifications
// @Produce     json
// @Param       user_email  query    string  false  "Recipient email"
// @Success     200  {array}   services.NotificationView
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	items, err := h.notes.ListForEmail(c.Request.Context(), strings.TrimSpace(c.Query("user_email")))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// LongPollNotifications godoc
// @ID          longPollNotifications
// @Summary     Wait for new notifications
// @Description Returns as soon as notifications newer than last_time exist, or an empty list once the server-side timeout passes. A malformed last_time is treated as the epoch.
// @Tags        Notifications
// @Produce     json
// @Param       user_email  query  string  true   "Recipient email"
// @Param       last_time   query  string  false  "Watermark (ISO-8601)"  default(1970-01-01T00:00:00)
// @Success     200  {object}  handlers.LongPollResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /notifications/longpoll [get]
func (h *Handlers) LongPollNotifications(c *gin.Context) {
	email := strings.TrimSpace(c.Query("user_email"))
	if email == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_email is required")
		return
	}
	items, err := h.notes.LongPoll(c.Request.Context(), email, c.Query("last_time"))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			lg := middleware.LoggerFrom(c)
			lg.Debug().Err(err).Msg("long-poll abandoned")
			c.AbortWithStatus(middleware.StatusClientClosed)
			return
		}
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, LongPollResponse{Notifications: items})
}
