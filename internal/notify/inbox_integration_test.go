//go:build integration

package notify_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/config"
	infraredis "github.com/Shivanand-hulikatti/campus-events/internal/infra/redis"
	"github.com/Shivanand-hulikatti/campus-events/internal/logger"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/notify"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type InboxSuite struct {
	suite.Suite

	ctx       context.Context
	container *tcredis.RedisContainer
	cli       *redis.Client
}

func TestInboxSuite(t *testing.T) {
	suite.Run(t, new(InboxSuite))
}

func (s *InboxSuite) SetupSuite() {
	s.ctx = context.Background()

	var err error
	s.container, err = tcredis.Run(s.ctx, "redis:7-alpine")
	s.Require().NoError(err)

	addr, err := s.container.Endpoint(s.ctx, "")
	s.Require().NoError(err)

	s.cli, err = infraredis.Connect(s.ctx, config.RedisConfig{Addr: addr, PoolSize: 4})
	s.Require().NoError(err)
}

func (s *InboxSuite) TearDownSuite() {
	if s.cli != nil {
		s.Require().NoError(infraredis.Disconnect(s.cli))
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(s.ctx))
	}
}

func (s *InboxSuite) SetupTest() {
	s.Require().NoError(s.cli.FlushDB(s.ctx).Err())
}

func (s *InboxSuite) TestNewestFirstAndCapped() {
	inbox := notify.NewInbox(s.cli, 3, time.Hour, logger.NewNop())
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := range 5 {
		err := inbox.Deliver(s.ctx, model.Notice{
			Kind:       model.NoticeRegistrationConfirmed,
			EventID:    fmt.Sprintf("ev-%d", i),
			EventTitle: fmt.Sprintf("Talk %d", i),
			UserID:     "alice",
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
		})
		s.Require().NoError(err)
	}

	items, err := inbox.List(s.ctx, "alice", 0)
	s.Require().NoError(err)
	s.Require().Len(items, 3)
	s.Equal("ev-4", items[0].EventID)
	s.Equal("ev-2", items[2].EventID)
	s.Equal("Registration Confirmed: Talk 4", items[0].Title)

	ttl, err := s.cli.TTL(s.ctx, "campus:notifications:alice").Result()
	s.Require().NoError(err)
	s.Positive(ttl)
}

func (s *InboxSuite) TestListIsPerUser() {
	inbox := notify.NewInbox(s.cli, 10, 0, logger.NewNop())

	s.Require().NoError(inbox.Deliver(s.ctx, model.Notice{
		Kind: model.NoticeEventCancelled, EventID: "ev-1", EventTitle: "Gala", UserID: "bob",
	}))

	items, err := inbox.List(s.ctx, "carol", 5)
	s.Require().NoError(err)
	s.Empty(items)

	items, err = inbox.List(s.ctx, "bob", 5)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal(model.NoticeEventCancelled, items[0].Kind)
}

func (s *InboxSuite) deliver(inbox *notify.Inbox, user string, n int) {
	for i := range n {
		s.Require().NoError(inbox.Deliver(s.ctx, model.Notice{
			Kind:       model.NoticeEventUpdated,
			EventID:    fmt.Sprintf("ev-%d", i),
			EventTitle: fmt.Sprintf("Talk %d", i),
			UserID:     user,
		}))
	}
}

func (s *InboxSuite) TestReadMarkerAndUnreadCount() {
	inbox := notify.NewInbox(s.cli, 10, time.Hour, logger.NewNop())

	unread, err := inbox.Unread(s.ctx, "dana")
	s.Require().NoError(err)
	s.Zero(unread)

	s.deliver(inbox, "dana", 3)

	unread, err = inbox.Unread(s.ctx, "dana")
	s.Require().NoError(err)
	s.EqualValues(3, unread)

	items, err := inbox.List(s.ctx, "dana", 0)
	s.Require().NoError(err)
	s.Require().Len(items, 3)
	for _, it := range items {
		s.False(it.Read)
	}
	s.EqualValues(3, items[0].Seq)

	s.Require().NoError(inbox.MarkRead(s.ctx, "dana", items[0].Seq))
	unread, err = inbox.Unread(s.ctx, "dana")
	s.Require().NoError(err)
	s.Zero(unread)

	// An older marker never rewinds the newer one.
	s.Require().NoError(inbox.MarkRead(s.ctx, "dana", 1))
	s.deliver(inbox, "dana", 1)

	items, err = inbox.List(s.ctx, "dana", 0)
	s.Require().NoError(err)
	s.Require().Len(items, 4)
	s.False(items[0].Read)
	s.True(items[1].Read)
	s.True(items[3].Read)

	unread, err = inbox.Unread(s.ctx, "dana")
	s.Require().NoError(err)
	s.EqualValues(1, unread)
}

func (s *InboxSuite) TestUnreadIgnoresTrimmedItems() {
	inbox := notify.NewInbox(s.cli, 2, 0, logger.NewNop())
	s.deliver(inbox, "erin", 5)

	unread, err := inbox.Unread(s.ctx, "erin")
	s.Require().NoError(err)
	s.EqualValues(2, unread)
}

func (s *InboxSuite) TestCorruptItemIsLoggedAndSkipped() {
	core, logs := observer.New(zap.WarnLevel)
	inbox := notify.NewInbox(s.cli, 10, 0, logger.FromZap(zap.New(core)))

	s.deliver(inbox, "finn", 1)
	s.Require().NoError(s.cli.LPush(s.ctx, "campus:notifications:finn", "{not json").Err())

	items, err := inbox.List(s.ctx, "finn", 0)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal("ev-0", items[0].EventID)

	entries := logs.FilterMessage("Skipping corrupt inbox item").All()
	s.Require().Len(entries, 1)
	s.Equal("finn", entries[0].ContextMap()["user_id"])
}
