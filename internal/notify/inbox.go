package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/logger"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/redis/go-redis/v9"
)

// InboxItem is an in-app notification as shown to the user.
type InboxItem struct {
	Seq       int64            `json:"seq"`
	Kind      model.NoticeKind `json:"kind"`
	EventID   string           `json:"event_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
	Read      bool             `json:"read"`
}

// Inbox keeps each user's most recent notifications in a Redis list,
// newest first, capped at size entries and expiring after ttl of silence.
//
// Every item takes the next value of a per-user sequence. The read marker
// holds the highest sequence the user has seen, so an item is unread when
// its sequence is above the marker.
type Inbox struct {
	cli    *redis.Client
	size   int64
	ttl    time.Duration
	logger logger.Logger
}

// markRead only ever moves the marker forward.
var markRead = redis.NewScript(`
	local current = tonumber(redis.call('GET', KEYS[1]) or '0')
	local seq = tonumber(ARGV[1])
	if seq > current then
		redis.call('SET', KEYS[1], seq)
		current = seq
	end
	local ttl = tonumber(ARGV[2])
	if ttl > 0 then
		redis.call('PEXPIRE', KEYS[1], ttl)
	end
	return current
`)

func NewInbox(cli *redis.Client, size int, ttl time.Duration, l logger.Logger) *Inbox {
	return &Inbox{cli: cli, size: int64(max(1, size)), ttl: ttl, logger: l}
}

func (i *Inbox) Name() string { return "inbox" }

func (i *Inbox) Deliver(ctx context.Context, n model.Notice) error {
	seq, err := i.cli.Incr(ctx, i.seqKey(n.UserID)).Result()
	if err != nil {
		return fmt.Errorf("next inbox sequence: %w", err)
	}

	title, message := Render(n)
	item, err := json.Marshal(InboxItem{
		Seq:       seq,
		Kind:      n.Kind,
		EventID:   n.EventID,
		Title:     title,
		Message:   message,
		CreatedAt: n.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("marshal inbox item: %w", err)
	}

	key := i.key(n.UserID)
	pipe := i.cli.TxPipeline()
	pipe.LPush(ctx, key, item)
	pipe.LTrim(ctx, key, 0, i.size-1)
	if i.ttl > 0 {
		pipe.Expire(ctx, key, i.ttl)
		pipe.Expire(ctx, i.seqKey(n.UserID), i.ttl)
		pipe.Expire(ctx, i.readKey(n.UserID), i.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push inbox item: %w", err)
	}
	return nil
}

// List returns up to limit of the user's notifications, newest first, each
// flagged with whether the user had already seen it.
func (i *Inbox) List(ctx context.Context, userID string, limit int) ([]InboxItem, error) {
	if limit <= 0 || int64(limit) > i.size {
		limit = int(i.size)
	}

	pipe := i.cli.Pipeline()
	rangeCmd := pipe.LRange(ctx, i.key(userID), 0, int64(limit-1))
	readCmd := pipe.Get(ctx, i.readKey(userID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read inbox: %w", err)
	}

	raw, err := rangeCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}
	readSeq, err := int64Or0(readCmd)
	if err != nil {
		return nil, fmt.Errorf("read inbox marker: %w", err)
	}

	items := make([]InboxItem, 0, len(raw))
	for _, r := range raw {
		var item InboxItem
		if err := json.Unmarshal([]byte(r), &item); err != nil {
			i.logger.Warn("Skipping corrupt inbox item",
				"user_id", userID,
				"error", err,
			)
			continue
		}
		item.Read = item.Seq <= readSeq
		items = append(items, item)
	}
	return items, nil
}

// MarkRead marks every notification up to and including seq as read.
func (i *Inbox) MarkRead(ctx context.Context, userID string, seq int64) error {
	if seq <= 0 {
		return nil
	}
	err := markRead.Run(ctx, i.cli, []string{i.readKey(userID)}, seq, i.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("mark inbox read: %w", err)
	}
	return nil
}

// Unread counts the user's notifications that are still in the inbox and
// have not been seen.
func (i *Inbox) Unread(ctx context.Context, userID string) (int64, error) {
	pipe := i.cli.Pipeline()
	seqCmd := pipe.Get(ctx, i.seqKey(userID))
	readCmd := pipe.Get(ctx, i.readKey(userID))
	lenCmd := pipe.LLen(ctx, i.key(userID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("read inbox counters: %w", err)
	}

	seq, err := int64Or0(seqCmd)
	if err != nil {
		return 0, fmt.Errorf("read inbox sequence: %w", err)
	}
	readSeq, err := int64Or0(readCmd)
	if err != nil {
		return 0, fmt.Errorf("read inbox marker: %w", err)
	}

	n, err := lenCmd.Result()
	if err != nil {
		return 0, fmt.Errorf("read inbox length: %w", err)
	}

	// Trimmed items no longer count.
	return max(0, min(seq-readSeq, n)), nil
}

func int64Or0(cmd *redis.StringCmd) (int64, error) {
	v, err := cmd.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (i *Inbox) key(userID string) string {
	return fmt.Sprintf("campus:notifications:%s", userID)
}

func (i *Inbox) seqKey(userID string) string {
	return fmt.Sprintf("campus:notifications:%s:seq", userID)
}

func (i *Inbox) readKey(userID string) string {
	return fmt.Sprintf("campus:notifications:%s:read", userID)
}
