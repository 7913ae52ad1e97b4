package economy

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Channel selects a broadcast audience; notifiers map it onto concrete channels.
type Channel string

const (
	ChannelAdmin  Channel = "admin"
	ChannelMarket Channel = "market"
)

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is a rich notification, rendered as an embed by chat notifiers.
type Message struct {
	Title       string
	Description string
	Color       int
	Fields      []Field
	Footer      string
	Timestamp   time.Time
}

// Notifier delivers messages. Delivery is best-effort.
type Notifier interface {
	NotifyUser(ctx context.Context, userID string, msg Message) error
	Broadcast(ctx context.Context, channel Channel, msg Message) error
}

const outboxParallelism = 4

type delivery struct {
	userID  string
	channel Channel
	msg     Message
}

// outbox collects a cycle's notifications so they go out after state is committed.
type outbox struct {
	mu    sync.Mutex
	items []delivery
}

func (o *outbox) toUser(userID string, msg Message) {
	if userID == "" {
		return
	}
	o.mu.Lock()
	o.items = append(o.items, delivery{userID: userID, msg: msg})
	o.mu.Unlock()
}

func (o *outbox) broadcast(channel Channel, msg Message) {
	o.mu.Lock()
	o.items = append(o.items, delivery{channel: channel, msg: msg})
	o.mu.Unlock()
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// flush sends everything queued, a few at a time, and logs failures.
func (o *outbox) flush(ctx context.Context, n Notifier, log *slog.Logger) (sent, failed int) {
	o.mu.Lock()
	items := o.items
	o.items = nil
	o.mu.Unlock()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, outboxParallelism)
	)
	for _, d := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(d delivery) {
			defer wg.Done()
			defer func() { <-sem }()
			var err error
			if d.userID != "" {
				err = n.NotifyUser(ctx, d.userID, d.msg)
			} else {
				err = n.Broadcast(ctx, d.channel, d.msg)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				log.Warn("notification not delivered", "user_id", d.userID, "channel", d.channel, "title", d.msg.Title, "err", err)
				return
			}
			sent++
		}(d)
	}
	wg.Wait()
	return sent, failed
}
