package admin

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/pipeline"
	"github.com/kbukum/meetingflow/server"
)

const (
	defaultStreamPoll      = time.Second
	defaultStreamKeepAlive = 30 * time.Second
)

// Event names on the job stream.
const (
	EventStatus = "status"
	EventError  = "error"
)

// StreamJob sends the job as server-sent events: the current view first,
// then one event per change, ending after a terminal state. Changes are
// found by polling the job record.
func (h *Handler) StreamJob(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	job, err := h.deps.Jobs.Get(ctx, id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	h.emit(c, EventStatus, viewOf(job))
	h.log.Debug("job stream opened", logger.Fields(logger.FieldJobID, id, "remote_addr", c.Request.RemoteAddr))

	poll := time.NewTicker(h.streamPoll)
	defer poll.Stop()
	keepAlive := time.NewTicker(h.streamKeepAlive)
	defer keepAlive.Stop()

	for !job.State.Terminal() {
		select {
		case <-ctx.Done():
			h.log.Debug("job stream closed by client", logger.Fields(logger.FieldJobID, id))
			return
		case <-keepAlive.C:
			_, _ = fmt.Fprintf(c.Writer, ": keepalive %d\n\n", time.Now().Unix())
			c.Writer.Flush()
		case <-poll.C:
			next, err := h.deps.Jobs.Get(ctx, id)
			if err != nil {
				appErr, ok := errors.AsAppError(err)
				if !ok {
					appErr = errors.Internal(err)
				}
				h.emit(c, EventError, appErr.ToResponse().Error)
				return
			}
			if changed(job, next) {
				h.emit(c, EventStatus, viewOf(next))
			}
			job = next
		}
	}
}

func (h *Handler) emit(c *gin.Context, event string, data any) {
	c.SSEvent(event, data)
	c.Writer.Flush()
}

func changed(a, b *pipeline.Job) bool {
	if a.State != b.State || a.Progress != b.Progress {
		return true
	}
	if (a.EstimatedSeconds == nil) != (b.EstimatedSeconds == nil) {
		return true
	}
	return a.EstimatedSeconds != nil && *a.EstimatedSeconds != *b.EstimatedSeconds
}
