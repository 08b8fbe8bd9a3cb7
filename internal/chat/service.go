package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hackgods/maternity-care-booking/internal/metrics"
)

var ErrEmptyQuestion = errors.New("question is required")

const systemPrompt = `You are a helpful medical assistant who only answers medical and health-related questions.
Respond in a casual and friendly manner.
If the question is not medical or health-related, politely say you can only help with medical topics and suggest asking something about health or medicine.
If the question describes a severe, urgent or potentially life-threatening condition (for example chest pain, difficulty breathing, severe bleeding, unconsciousness, a sudden severe headache or high fever in an infant), politely but clearly advise the user to seek immediate medical attention or book an appointment with a healthcare professional as soon as possible.`

var seriousPhrases = []string{
	"immediate medical attention",
	"book an appointment",
}

// IsSerious reports whether an answer tells the user to seek care.
func IsSerious(answer string) bool {
	lower := strings.ToLower(answer)
	for _, p := range seriousPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

type Answer struct {
	Answer    string `json:"answer"`
	IsSerious bool   `json:"is_serious"`
}

type Service struct {
	completer Completer
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

func NewService(c Completer, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		completer: c,
		metrics:   m,
		log:       logger.With().Str("component", "chat").Logger(),
	}
}

func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	reply, err := s.completer.Complete(ctx, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: question},
	})
	if err != nil {
		s.log.Error().Err(err).Msg("completion failed")
		return nil, fmt.Errorf("ask assistant: %w", err)
	}

	ans := &Answer{Answer: reply, IsSerious: IsSerious(reply)}
	s.metrics.ChatAnswered(ans.IsSerious)
	if ans.IsSerious {
		s.log.Warn().Msg("assistant flagged a serious condition")
	}
	return ans, nil
}
