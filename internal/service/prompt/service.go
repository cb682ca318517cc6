// Package prompt derives the next day's journaling question from the text a
// subject just saved. Generation is best-effort: every failure path ends in a
// static question, never in an error on the save path.
package prompt

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/daybook/internal/config"
)

const (
	// DefaultQuestion greets a subject whose day has no stored question yet,
	// and substitutes for a failed generation call.
	DefaultQuestion = "How are you feeling today?"

	// FallbackQuestion is returned when there is nothing to build on: empty
	// prior text or no configured model.
	FallbackQuestion = "What do you want to explore tomorrow?"

	// maxPriorRunes caps how much of the prior entry is sent to the model.
	maxPriorRunes = 4000

	// maxQuestionRunes bounds the generated question regardless of what the
	// model returns.
	maxQuestionRunes = 140
)

const systemPrompt = "You are a supportive daily journaling coach. Ask exactly ONE concise open-ended question (max 140 characters) that builds on the user's prior entry."

// Service 使用大模型生成次日提问，失败时回退到固定问题。
type Service struct {
	chain   compose.Runnable[map[string]any, *schema.Message]
	timeout time.Duration
}

// NewService 创建问题生成服务。cfg 未启用时返回一个纯回退的实例。
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	svc := &Service{timeout: timeout}
	if !cfg.Enabled() {
		return svc, nil
	}

	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, err
	}
	return newServiceWithModel(ctx, chatModel, timeout)
}

func newServiceWithModel(ctx context.Context, chatModel model.ChatModel, timeout time.Duration) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("Yesterday:\n\"\"\"\n{prior}\n\"\"\""),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, err
	}

	return &Service{chain: runnable, timeout: timeout}, nil
}

// Enabled 返回是否配置了可用的生成模型。
func (s *Service) Enabled() bool {
	return s != nil && s.chain != nil
}

// Generate produces tomorrow's question from priorText. It never returns an
// error: empty input or a missing model short-circuits to FallbackQuestion
// without any external call, and a failed or timed-out call degrades to
// DefaultQuestion.
func (s *Service) Generate(ctx context.Context, priorText string) string {
	if strings.TrimSpace(priorText) == "" || !s.Enabled() {
		return FallbackQuestion
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prior := priorText
	if runes := []rune(prior); len(runes) > maxPriorRunes {
		prior = string(runes[:maxPriorRunes])
	}

	msg, err := s.chain.Invoke(ctx, map[string]any{"prior": prior})
	if err != nil {
		log.Printf("[prompt] generation failed, using default question: %v", err)
		return DefaultQuestion
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return DefaultQuestion
	}

	return clampQuestion(msg.Content)
}

// clampQuestion keeps the first line of the model output, bounded to
// maxQuestionRunes.
func clampQuestion(raw string) string {
	line := strings.TrimSpace(raw)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	if line == "" {
		return DefaultQuestion
	}
	if runes := []rune(line); len(runes) > maxQuestionRunes {
		line = string(runes[:maxQuestionRunes])
	}
	return line
}
