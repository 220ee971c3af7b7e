package httpapi

import (
	"net/http"
	"time"

	"affiliate-blog/internal/auth"
	"affiliate-blog/internal/authz"
	"affiliate-blog/internal/guard"
	"affiliate-blog/internal/realtime"
	"affiliate-blog/internal/session"
	"affiliate-blog/pkg/logger"

	"github.com/gin-gonic/gin"
)

const changeBuffer = 64

type statusEvent struct {
	State   string `json:"state"`
	Attempt uint64 `json:"attempt"`
}

// AdminEvents streams dashboard invalidations over server-sent events.
//
// The stream mounts a long-lived admin guard on its own session store. Every
// guard transition is sent as a "status" event; table changes are forwarded
// as "invalidate" events only while the guard is allowed. A denial sends a
// "redirect" event and ends the stream.
func (h *Handlers) AdminEvents(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromGin(c)

	subject, err := auth.SubjectID(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	ok, release := acquireStream(ctx, h.Streams, subject, log)
	if !ok {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many open event streams"})
		return
	}
	defer release()

	store := session.NewStore(h.Auth, auth.TokenFromRequest(c.Request))
	defer store.Close()

	g := guard.New(store, h.Evaluator, authz.CapabilityAdmin, guard.Options{
		Policy:  h.Policy,
		Logger:  log,
		Metrics: h.recorder(),
	})
	if err := g.Mount(ctx); err != nil {
		respondError(c, err)
		return
	}
	defer g.Unmount()

	changes := make(chan realtime.Change, changeBuffer)
	if h.Broker != nil {
		unsubscribe := h.Broker.Subscribe(realtime.TopicChanges, func(m realtime.Message) {
			ch, err := realtime.Decode[realtime.Change](m)
			if err != nil {
				log.Warn("dropping malformed change", "err", err)
				return
			}
			select {
			case changes <- ch:
			default:
				log.Warn("admin stream lagging, change dropped", "table", ch.Table, "id", ch.ID)
			}
		})
		defer unsubscribe()
	}

	if h.Metrics != nil {
		defer h.Metrics.StreamOpened()()
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat())
	defer ticker.Stop()

	from := c.Query("from")
	for {
		select {
		case <-ctx.Done():
			return

		case st := <-g.Watch():
			h.sendEvent(c, "status", statusEvent{State: st.State.String(), Attempt: st.Attempt})
			if st.State == guard.StateDenied {
				rd, _ := h.Policy.Redirect(st.Verdict, from)
				h.sendEvent(c, "redirect", rd)
				return
			}

		case ch := <-changes:
			if !forwardChanges(g) {
				continue
			}
			h.sendEvent(c, "invalidate", ch)

		case <-ticker.C:
			if h.Streams != nil {
				if err := h.Streams.Refresh(ctx, subject); err != nil {
					log.Warn("stream slot refresh failed", "subject_id", subject, "err", err)
				}
			}
			if _, err := c.Writer.WriteString(": keepalive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

// forwardChanges reads the live guard status; the last value seen on Watch
// may lag a transition back to pending.
func forwardChanges(g *guard.Guard) bool {
	return g.Status().State == guard.StateAllowed
}

func (h *Handlers) sendEvent(c *gin.Context, name string, data any) {
	c.SSEvent(name, data)
	c.Writer.Flush()
}
