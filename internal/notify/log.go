package notify

import (
	"context"

	"github.com/Shivanand-hulikatti/campus-events/internal/logger"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// LogSink writes notices to the service log. It is the only sink when
// neither Kafka nor Redis is configured.
type LogSink struct {
	logger logger.Logger
}

func NewLogSink(l logger.Logger) *LogSink {
	return &LogSink{logger: l}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, n model.Notice) error {
	title, _ := Render(n)
	s.logger.Info("Notice",
		"kind", n.Kind,
		"event_id", n.EventID,
		"user_id", n.UserID,
		"title", title,
	)
	return nil
}
