package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"modelmarket/internal/adapters/backend"
)

var (
	ErrEmptyConversation = errors.New("conversation has no user message")
	errEmptyReply        = errors.New("empty reply")
)

// Backend answers chat requests.
type Backend interface {
	Chat(ctx context.Context, messages []backend.ChatMessage) (backend.ChatReply, error)
}

type Service struct {
	backend Backend
	logger  *slog.Logger
}

func New(b Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: b, logger: logger}
}

const maxMessages = 50

// Reply asks the backend for the next assistant message. When the backend
// cannot answer, a canned reply marked Fallback is returned instead.
func (s *Service) Reply(ctx context.Context, messages []backend.ChatMessage) (backend.ChatReply, error) {
	last := lastUserMessage(messages)
	if last == "" {
		return backend.ChatReply{}, ErrEmptyConversation
	}
	if len(messages) > maxMessages {
		messages = messages[len(messages)-maxMessages:]
	}

	reply, err := s.backend.Chat(ctx, messages)
	if err == nil && strings.TrimSpace(reply.Reply) != "" {
		return reply, nil
	}
	if ctx.Err() != nil {
		return backend.ChatReply{}, ctx.Err()
	}
	if err == nil {
		err = errEmptyReply
	}
	s.logger.Warn("chat backend unavailable, using fallback", "error", err)
	return backend.ChatReply{Reply: Fallback(last), Fallback: true}, nil
}

func lastUserMessage(messages []backend.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" && strings.TrimSpace(messages[i].Content) != "" {
			return messages[i].Content
		}
	}
	return ""
}

var cannedReplies = []struct {
	keywords []string
	reply    string
}{
	{[]string{"verif", "scan", "security"}, "Upload your model on the Verify page. We run a security scan, architecture and layer analysis, benchmarks and a compatibility check, then produce a downloadable report with a quality grade."},
	{[]string{"compress", "quantiz", "prun", "smaller"}, "Open the Compress page and pick a level: light (about 30% smaller), balanced (50%), aggressive (70%) or extreme (85%). Higher levels trade a little accuracy for size and speed."},
	{[]string{"token", "price", "pay", "buy", "wallet"}, "Tokens are bought from the Wallet page. Your balance updates as soon as the payment is confirmed."},
	{[]string{"train", "dataset"}, "Create a project, upload a dataset, then start a training job. Progress shows up live on the project page."},
}

// Fallback picks a canned answer for the message.
func Fallback(message string) string {
	m := strings.ToLower(message)
	for _, c := range cannedReplies {
		for _, k := range c.keywords {
			if strings.Contains(m, k) {
				return c.reply
			}
		}
	}
	return "I can't reach the assistant right now. Ask me about verifying, compressing or training models and I'll point you in the right direction."
}
