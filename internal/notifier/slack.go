package notifier

import (
	"log/slog"

	"github.com/slack-go/slack"
	"github.com/thermhub/thermhub/internal/engine"
)

type SlackNotifier struct {
	Logger  *slog.Logger
	Sender  SlackSender
	Channel string
}

type SlackSender interface {
	PostMessage(string, ...slack.MsgOption) (string, string, error)
}

var _ Notifier = &SlackNotifier{}

func (s *SlackNotifier) Notify(update engine.Update) {
	color := "warning"
	if update.Reading.HeatOn {
		color = "good"
	}
	_, _, err := s.Sender.PostMessage(s.Channel, slack.MsgOptionAttachments(slack.Attachment{
		Color: color,
		Title: buildMessage(update),
	}))
	if err != nil {
		s.Logger.Error("failed to post message", "err", err)
	}
}
