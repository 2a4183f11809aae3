// Package services – NotificationService
//
// NotificationService appends notifications and serves the per-user feed,
// including the long-poll used by clients for near-real-time delivery. A
// long-poll re-queries the store on every attempt; the feed hub only shortens
// the wait between attempts when a write for the same recipient lands.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/thaihand/carry-backend/internal/domain"
	"github.com/thaihand/carry-backend/internal/feed"
	"github.com/thaihand/carry-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Long-poll outcomes, used as the "outcome" metric label.
const (
	pollData        = "data"
	pollTimeout     = "timeout"
	pollCancelled   = "cancelled"
	pollUnknownUser = "unknown_user"
)

var (
	longpollTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_longpoll_total",
			Help: "Completed notification long-polls by outcome.",
		},
		[]string{"outcome"},
	)

	longpollWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_longpoll_wait_seconds",
			Help:    "Time a long-poll spent before answering.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 15, 20, 25, 30},
		},
		[]string{"outcome"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_appended_total",
			Help: "Notification append attempts by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(longpollTotal, longpollWait, notificationsTotal)
}

// NotificationView is a notification enriched with the other party of the
// request that triggered it. The sender fields are empty when no sender
// could be determined.
type NotificationView struct {
	domain.Notification
	SenderName  string `json:"sender_name,omitempty"`
	SenderEmail string `json:"sender_email,omitempty"`
	SenderImage string `json:"sender_image,omitempty"`
}

// NotificationService appends notifications and serves the feed.
type NotificationService struct {
	DB     *gorm.DB
	Schema repo.Schema
	Hub    *feed.Hub

	// Timeout bounds a single long-poll; Interval is the pause between
	// attempts when nothing new was found.
	Timeout  time.Duration
	Interval time.Duration

	// DedupWindow is how far back an identical unread notification
	// suppresses a new one. Zero only matches rows stamped at or after now.
	DedupWindow time.Duration

	// DefaultSenderImage is used when the sender has no image of their own.
	DefaultSenderImage string

	// Now is the clock used to stamp notifications.
	Now func() time.Time
}

// NewNotificationService returns a NotificationService with the given
// long-poll budget and the default dedup window.
func NewNotificationService(db *gorm.DB, sc repo.Schema, hub *feed.Hub, timeout, interval time.Duration) *NotificationService {
	return &NotificationService{
		DB:                 db,
		Schema:             sc,
		Hub:                hub,
		Timeout:            timeout,
		Interval:           interval,
		DedupWindow:        10 * time.Second,
		DefaultSenderImage: "/thaihand-logo.png",
		Now:                time.Now,
	}
}

func (s *NotificationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Notify appends an unread notification for userID unless an identical
// unread one was written within the dedup window. It reports whether a row
// was written. Waiting pollers of userID are woken after the commit.
func (s *NotificationService) Notify(ctx context.Context, userID int, message string, requestID *int) (*domain.Notification, bool, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "Notify",
		trace.WithAttributes(attribute.Int("user.id", userID)),
	)
	defer span.End()

	now := s.now()
	since := domain.FormatTimestamp(now.Add(-s.DedupWindow))

	var created *domain.Notification
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dup, err := repo.HasUnreadDuplicate(ctx, tx, userID, message, since)
		if err != nil {
			return err
		}
		if dup {
			return nil
		}
		n := &domain.Notification{
			UserID:    userID,
			Message:   message,
			IsRead:    0,
			CreatedAt: domain.FormatTimestamp(now),
			RequestID: requestID,
		}
		if err := repo.CreateNotification(ctx, tx, s.Schema, n); err != nil {
			return err
		}
		created = n
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	if created == nil {
		notificationsTotal.WithLabelValues("deduplicated").Inc()
		return nil, false, nil
	}
	notificationsTotal.WithLabelValues("created").Inc()
	s.Hub.Publish(userID)
	return created, true, nil
}

// ListForEmail returns every notification of the user with the given email,
// oldest first and enriched. An unknown or empty email yields an empty list.
func (s *NotificationService) ListForEmail(ctx context.Context, email string) ([]NotificationView, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "ListForEmail")
	defer span.End()

	u, err := s.recipient(ctx, email)
	if err != nil || u == nil {
		return []NotificationView{}, err
	}
	items, err := s.after(ctx, u.ID, domain.Epoch)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, u.ID, items), nil
}

// LongPoll waits until the user identified by email has notifications
// created strictly after lastTime, then returns them oldest first. It returns
// an empty list once Timeout is spent, and ctx.Err() if ctx ends first. A
// malformed lastTime is read as the epoch.
func (s *NotificationService) LongPoll(ctx context.Context, email, lastTime string) ([]NotificationView, error) {
	since := domain.ParseWatermark(lastTime)

	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "LongPoll",
		trace.WithAttributes(
			attribute.String("since", domain.FormatTimestamp(since)),
			attribute.Int64("timeout_ms", s.Timeout.Milliseconds()),
		),
	)
	defer span.End()

	start := time.Now()
	done := func(outcome string) {
		longpollTotal.WithLabelValues(outcome).Inc()
		longpollWait.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.String("outcome", outcome))
	}

	u, err := s.recipient(ctx, email)
	if err != nil {
		if ctx.Err() != nil {
			done(pollCancelled)
			return nil, ctx.Err()
		}
		span.RecordError(err)
		return nil, err
	}
	if u == nil {
		done(pollUnknownUser)
		return []NotificationView{}, nil
	}
	span.SetAttributes(attribute.Int("user.id", u.ID))

	wake, cancel := s.Hub.Subscribe(u.ID)
	defer cancel()

	deadline := start.Add(s.Timeout)
	for attempt := 1; ; attempt++ {
		items, err := s.after(ctx, u.ID, since)
		if err != nil {
			if ctx.Err() != nil {
				done(pollCancelled)
				return nil, ctx.Err()
			}
			span.RecordError(err)
			return nil, err
		}
		if len(items) > 0 {
			span.SetAttributes(attribute.Int("attempts", attempt), attribute.Int("count", len(items)))
			done(pollData)
			return s.enrich(ctx, u.ID, items), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			span.SetAttributes(attribute.Int("attempts", attempt))
			done(pollTimeout)
			return []NotificationView{}, nil
		}
		wait := s.Interval
		if wait <= 0 || wait > remaining {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			done(pollCancelled)
			return nil, ctx.Err()
		case <-wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// recipient resolves email to a user. It returns (nil, nil) for an empty or
// unknown email.
func (s *NotificationService) recipient(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		return nil, nil
	}
	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// after runs one feed query. Rows whose created_at does not parse, or does
// not sort chronologically after since, are dropped.
func (s *NotificationService) after(ctx context.Context, userID int, since time.Time) ([]domain.Notification, error) {
	rows, err := repo.NotificationsAfter(ctx, s.DB, userID, domain.FormatTimestamp(since))
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, n := range rows {
		if ts, ok := domain.ParseTimestamp(n.CreatedAt); ok && ts.After(since) {
			out = append(out, n)
		}
	}
	return out, nil
}

// enrich attaches sender details. Linked notifications use the request that
// triggered them; unlinked ones fall back to the newest offer request placed
// by someone other than the recipient. Lookup failures leave fields empty.
func (s *NotificationService) enrich(ctx context.Context, recipientID int, items []domain.Notification) []NotificationView {
	views := make([]NotificationView, len(items))
	senders := make([]int, len(items))

	var linked []int
	unlinked := false
	for i, n := range items {
		views[i].Notification = n
		if n.RequestID != nil {
			linked = append(linked, *n.RequestID)
		} else {
			unlinked = true
		}
	}

	reqs, err := repo.RequestsByID(ctx, s.DB, linked)
	if err != nil {
		logger(ctx).Warn().Err(err).Msg("notification enrichment: load requests")
		reqs = map[int]domain.Request{}
	}
	fallback := 0
	if unlinked {
		r, err := repo.LatestOfferRequestNotBy(ctx, s.DB, recipientID)
		switch {
		case err == nil:
			fallback = r.UserID
		case !errors.Is(err, repo.ErrNotFound):
			logger(ctx).Warn().Err(err).Msg("notification enrichment: latest offer request")
		}
	}

	var ids []int
	for i, n := range items {
		if n.RequestID != nil {
			if r, ok := reqs[*n.RequestID]; ok {
				senders[i] = r.UserID
			}
		} else {
			senders[i] = fallback
		}
		if senders[i] != 0 {
			ids = append(ids, senders[i])
		}
	}
	users, err := repo.UsersByID(ctx, s.DB, ids)
	if err != nil {
		logger(ctx).Warn().Err(err).Msg("notification enrichment: load users")
		return views
	}

	for i := range views {
		u, ok := users[senders[i]]
		if !ok {
			continue
		}
		views[i].SenderName = u.Username
		views[i].SenderEmail = u.Email
		views[i].SenderImage = s.DefaultSenderImage
		if u.Image != nil && *u.Image != "" {
			views[i].SenderImage = *u.Image
		}
	}
	return views
}
