package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/lborres/shopfront/core"
)

// Hub conventions of the notification collaborator.
const (
	DefaultAdminGroup     = "Admins"
	DefaultJoinMethod     = "JoinGroup"
	DefaultOrderEvent     = "ReceiveOrderNotification"
	DefaultReconnectDelay = 5 * time.Second

	orderEntityType    = "Order"
	defaultPushMessage = "New notification"
)

type NotificationConfig struct {
	HubURL         string
	Group          string
	JoinMethod     string
	EventName      string
	ReconnectDelay time.Duration
}

func (c NotificationConfig) withDefaults() NotificationConfig {
	if c.Group == "" {
		c.Group = DefaultAdminGroup
	}
	if c.JoinMethod == "" {
		c.JoinMethod = DefaultJoinMethod
	}
	if c.EventName == "" {
		c.EventName = DefaultOrderEvent
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	return c
}

// pushRecord is a pushed notification applied while a fetch was in flight.
type pushRecord struct {
	seq  uint64
	item core.Notification
}

// NotificationChannel keeps the admin notification feed: a REST-fetched
// collection merged with live push events, newest first. It is active only
// while the session is an authenticated admin.
//
// Every activation starts a new generation. Work started by an older
// generation (fetches, push events, mark-as-read confirmations) is
// discarded when it completes.
//
// A fetch replaces the collection only if it is the latest fetch issued.
// Pushes applied after that fetch started and missing from its result are
// kept on top of the fetched items.
type NotificationChannel struct {
	api         core.NotificationAPI
	dial        core.PushDialer
	credentials core.CredentialSource
	notifier    core.Notifier
	logger      *slog.Logger
	config      NotificationConfig

	mu          sync.Mutex
	active      bool
	generation  uint64
	items       []core.Notification
	cancel      context.CancelFunc
	done        chan struct{}
	fetchSeq    uint64
	inflight    int
	pushSeq     uint64
	pushLog     []pushRecord
	unsubscribe func()
}

func NewNotificationChannel(
	api core.NotificationAPI,
	dial core.PushDialer,
	credentials core.CredentialSource,
	notifier core.Notifier,
	config NotificationConfig,
	logger *slog.Logger,
) *NotificationChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationChannel{
		api:         api,
		dial:        dial,
		credentials: credentials,
		notifier:    notifier,
		logger:      logger,
		config:      config.withDefaults(),
	}
}

// Attach follows session transitions: entering an authenticated admin
// session activates the channel, anything else deactivates it.
func (n *NotificationChannel) Attach(session *SessionStore) {
	unsubscribe := session.Subscribe(n.onSession)

	n.mu.Lock()
	n.unsubscribe = unsubscribe
	n.mu.Unlock()

	n.onSession(session.Snapshot())
}

func (n *NotificationChannel) onSession(snap core.SessionSnapshot) {
	if snap.IsAdmin() {
		n.activate()
		return
	}
	n.deactivate()
}

func (n *NotificationChannel) activate() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.active {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.active = true
	n.generation++
	n.cancel = cancel
	n.done = make(chan struct{})
	n.items = nil

	go n.run(ctx, n.generation, n.done)
	n.logger.Info("notification channel activated")
}

// deactivate returns without waiting for the loop; the generation bump is
// what stops its effects.
func (n *NotificationChannel) deactivate() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.active {
		return
	}

	n.active = false
	n.generation++
	n.cancel()
	n.items = nil
	n.pushLog = nil
	n.inflight = 0
	n.logger.Info("notification channel deactivated")
}

// Close detaches from the session, deactivates and waits for the loop.
func (n *NotificationChannel) Close() {
	n.mu.Lock()
	unsubscribe := n.unsubscribe
	n.unsubscribe = nil
	done := n.done
	n.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	n.deactivate()

	if done != nil {
		<-done
	}
}

func (n *NotificationChannel) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Go(func() {
		if err := n.fetch(ctx, gen); err != nil && ctx.Err() == nil {
			n.logger.Error("failed to fetch notifications", "err", err)
		}
	})

	conn, err := n.connect(ctx)
	if err != nil {
		if ctx.Err() == nil {
			n.logger.Error("notification hub unavailable", "err", err)
		}
		return
	}
	defer func() {
		if err := conn.Stop(); err != nil {
			n.logger.Warn("failed to stop notification hub connection", "err", err)
		}
	}()

	events := conn.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !n.handle(ctx, gen, conn, ev) {
				return
			}
		}
	}
}

// connect starts a connection and joins the admin group, retrying once
// after the reconnect delay.
func (n *NotificationChannel) connect(ctx context.Context) (core.PushConnection, error) {
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			n.logger.Warn("notification hub connection failed, retrying",
				"err", lastErr, "delay", n.config.ReconnectDelay)

			timer := time.NewTimer(n.config.ReconnectDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		conn := n.dial(n.config.HubURL, n.credentials)
		err := conn.Start(ctx)
		if err == nil {
			err = n.join(ctx, conn)
		}
		if err == nil {
			n.logger.Info("notification hub connected", "group", n.config.Group)
			return conn, nil
		}

		_ = conn.Stop()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	return nil, lastErr
}

func (n *NotificationChannel) join(ctx context.Context, conn core.PushConnection) error {
	if err := conn.Invoke(ctx, n.config.JoinMethod, n.config.Group); err != nil {
		return fmt.Errorf("failed to join group %q: %w", n.config.Group, err)
	}
	return nil
}

// handle applies one transport event and reports whether the loop should
// keep reading.
func (n *NotificationChannel) handle(ctx context.Context, gen uint64, conn core.PushConnection, ev core.PushEvent) bool {
	switch ev.Kind {
	case core.PushMessage:
		if ev.Target != n.config.EventName {
			n.logger.Debug("ignoring hub event", "target", ev.Target)
			return true
		}
		n.applyPush(gen, ev.Message, ev.Notification)

	case core.PushReconnecting:
		n.logger.Warn("notification hub connection lost, reconnecting", "err", ev.Err)

	case core.PushReconnected:
		n.logger.Info("notification hub reconnected")
		if err := n.join(ctx, conn); err != nil && ctx.Err() == nil {
			n.logger.Error("failed to rejoin notification group", "err", err)
		}

	case core.PushClosed:
		n.logger.Error("notification hub connection closed", "err", ev.Err)
		n.mu.Lock()
		if n.generation == gen && n.active {
			n.notify(core.ToastError, "Lost connection to live notifications.")
		}
		n.mu.Unlock()
		return false
	}

	return true
}

func (n *NotificationChannel) applyPush(gen uint64, message string, payload *core.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.generation != gen || !n.active {
		return
	}

	if payload != nil {
		n.pushSeq++
		if n.inflight > 0 {
			n.pushLog = append(n.pushLog, pushRecord{seq: n.pushSeq, item: *payload})
		}
		if !slices.ContainsFunc(n.items, func(x core.Notification) bool { return x.ID == payload.ID }) {
			n.items = slices.Insert(n.items, 0, *payload)
		}
	}

	if message == "" && payload != nil {
		message = payload.Message
	}
	if message == "" {
		message = defaultPushMessage
	}
	n.notify(core.ToastInfo, message)
}

// Refresh re-fetches the collection.
func (n *NotificationChannel) Refresh(ctx context.Context) error {
	n.mu.Lock()
	active, gen := n.active, n.generation
	n.mu.Unlock()

	if !active {
		return core.ErrChannelInactive
	}
	return n.fetch(ctx, gen)
}

func (n *NotificationChannel) fetch(ctx context.Context, gen uint64) error {
	n.mu.Lock()
	if n.generation != gen || !n.active {
		n.mu.Unlock()
		return nil
	}
	n.fetchSeq++
	seq, startPush := n.fetchSeq, n.pushSeq
	n.inflight++
	n.mu.Unlock()

	fetched, err := n.api.ListNotifications(ctx)

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.generation != gen || !n.active {
		return nil
	}
	n.inflight--
	defer func() {
		if n.inflight == 0 {
			n.pushLog = nil
		}
	}()

	if err != nil {
		if ctx.Err() == nil {
			n.notify(core.ToastError, core.UserMessage(err, "Failed to load notifications."))
		}
		return fmt.Errorf("failed to list notifications: %w", err)
	}
	if seq != n.fetchSeq {
		n.logger.Debug("discarding superseded notification fetch", "seq", seq, "latest", n.fetchSeq)
		return nil
	}

	items := slices.Clone(fetched)
	slices.SortStableFunc(items, func(a, b core.Notification) int { return b.CreatedAt.Compare(a.CreatedAt) })

	fetchedIDs := make(map[int64]bool, len(items))
	for _, it := range items {
		fetchedIDs[it.ID] = true
	}

	// pushes that landed after the fetch started, newest first
	var carried []core.Notification
	for i := len(n.pushLog) - 1; i >= 0; i-- {
		rec := n.pushLog[i]
		if rec.seq <= startPush || fetchedIDs[rec.item.ID] {
			continue
		}
		fetchedIDs[rec.item.ID] = true
		carried = append(carried, rec.item)
	}

	n.items = append(carried, items...)
	return nil
}

// MarkAllRead marks every currently unread notification as read once the
// server confirms. Notifications arriving after the batch was collected
// stay unread.
func (n *NotificationChannel) MarkAllRead(ctx context.Context) error {
	n.mu.Lock()
	if !n.active {
		n.mu.Unlock()
		return core.ErrChannelInactive
	}
	gen := n.generation
	var ids []int64
	for _, it := range n.items {
		if !it.IsRead {
			ids = append(ids, it.ID)
		}
	}
	n.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}

	if err := n.api.MarkNotificationsRead(ctx, ids); err != nil {
		n.notify(core.ToastError, core.UserMessage(err, "Failed to mark notifications as read."))
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}

	n.flip(gen, ids)
	return nil
}

// MarkOneRead marks one notification as read once the server confirms, and
// returns the location of the order it refers to, if any.
func (n *NotificationChannel) MarkOneRead(ctx context.Context, id int64) (string, error) {
	n.mu.Lock()
	if !n.active {
		n.mu.Unlock()
		return "", core.ErrChannelInactive
	}
	gen := n.generation
	i := slices.IndexFunc(n.items, func(x core.Notification) bool { return x.ID == id })
	if i < 0 {
		n.mu.Unlock()
		return "", fmt.Errorf("%w: %d", core.ErrNotificationNotFound, id)
	}
	item := n.items[i]
	n.mu.Unlock()

	if !item.IsRead {
		if err := n.api.MarkNotificationsRead(ctx, []int64{id}); err != nil {
			n.notify(core.ToastError, core.UserMessage(err, "Failed to mark notification as read."))
			return "", fmt.Errorf("failed to mark notification read: %w", err)
		}
		n.flip(gen, []int64{id})
	}

	if item.EntityType == orderEntityType && item.RelatedEntityID != 0 {
		return fmt.Sprintf("/admin/orders/%d", item.RelatedEntityID), nil
	}
	return "", nil
}

func (n *NotificationChannel) flip(gen uint64, ids []int64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.generation != gen {
		return
	}
	for i := range n.items {
		if slices.Contains(ids, n.items[i].ID) {
			n.items[i].IsRead = true
		}
	}
}

// Notifications returns a copy of the collection, newest first.
func (n *NotificationChannel) Notifications() []core.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := slices.Clone(n.items)
	if out == nil {
		out = []core.Notification{}
	}
	return out
}

func (n *NotificationChannel) UnreadCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	count := 0
	for _, it := range n.items {
		if !it.IsRead {
			count++
		}
	}
	return count
}

func (n *NotificationChannel) Active() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

func (n *NotificationChannel) notify(level core.ToastLevel, msg string) {
	if n.notifier != nil {
		n.notifier.Notify(level, msg)
	}
}
