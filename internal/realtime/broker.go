// Package realtime fans row changes out to subscribed clients.
package realtime

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"modelmarket/internal/domain"
)

var ErrInvalidFilter = errors.New("invalid filter")

// Tables that publish changes.
var Tables = map[string]bool{
	"projects":      true,
	"datasets":      true,
	"training_jobs": true,
	"wallets":       true,
}

// Filter restricts a subscription to rows where Column equals Value.
type Filter struct {
	Column string
	Value  string
}

// ParseFilter reads the "column=eq.value" form. An empty string is no filter.
func ParseFilter(s string) (*Filter, error) {
	if s == "" {
		return nil, nil
	}
	col, rest, ok := strings.Cut(s, "=")
	if !ok || col == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, s)
	}
	val, ok := strings.CutPrefix(rest, "eq.")
	if !ok {
		return nil, fmt.Errorf("%w: only eq is supported", ErrInvalidFilter)
	}
	return &Filter{Column: col, Value: val}, nil
}

// Subscriber receives the changes of one table owned by one user.
type Subscriber struct {
	ID        string
	UserID    string
	Table     string
	Filter    *Filter
	Ch        chan domain.Change
	CreatedAt time.Time
}

type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	logger      *slog.Logger
}

func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subscribers: make(map[string]*Subscriber),
		logger:      logger,
	}
}

func (b *Broker) Subscribe(userID, table string, filter *Filter) (*Subscriber, error) {
	if !Tables[table] {
		return nil, fmt.Errorf("%w: unknown table %q", ErrInvalidFilter, table)
	}
	sub := &Subscriber{
		ID:        uuid.NewString(),
		UserID:    userID,
		Table:     table,
		Filter:    filter,
		Ch:        make(chan domain.Change, 64),
		CreatedAt: time.Now(),
	}

	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "subscriber_id", sub.ID, "table", table, "user_id", userID)
	return sub, nil
}

func (b *Broker) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub.ID]; ok {
		close(sub.Ch)
		delete(b.subscribers, sub.ID)
		b.logger.Debug("subscriber removed", "subscriber_id", sub.ID)
	}
}

// Publish delivers c to every matching subscriber. Slow subscribers miss changes.
func (b *Broker) Publish(c domain.Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if !matches(sub, c) {
			continue
		}
		select {
		case sub.Ch <- c:
		default:
			b.logger.Warn("subscriber channel full, dropping change",
				"subscriber_id", sub.ID,
				"table", c.Table,
			)
		}
	}
}

func matches(sub *Subscriber, c domain.Change) bool {
	if sub.Table != c.Table || sub.UserID != c.UserID {
		return false
	}
	if sub.Filter == nil {
		return true
	}
	v, ok := c.Field(sub.Filter.Column)
	return ok && v == sub.Filter.Value
}

func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
