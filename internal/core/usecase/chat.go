package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
	"github.com/kirillkom/chatbot-rag/internal/core/ports"
)

const (
	noContextAnswer = "I don't have information about that."

	systemPrompt = `You are a helpful assistant. Answer concisely and stay factual.`

	answerFromContextPrompt = `Answer the question using only the context below.
If the context does not contain the answer, say you do not know.

Context:
%s

Question: %s`

	generateSQLPrompt = `Write a single PostgreSQL SELECT statement that answers the request.

Schema:
  users(id bigint, name text, email text)
  user_preferences(user_id bigint, key text, value text)

Rules:
- exactly one SELECT statement, no comments, no trailing semicolon
- only the tables above
- respond with the SQL only

Request: %s`

	rewriteToolResultPrompt = `Rewrite the raw query result below as a short
natural-language answer to the request. Do not mention SQL or tables.

Request: %s

Result:
%s`
)

const historyLimit = 10

// ChatUseCase answers one utterance end to end: it routes the utterance, runs
// the target handler and always produces an answer. A handler failure
// degrades to an apologetic reply rather than surfacing an error to the
// caller; infrastructure errors are reserved for faults the caller can act
// on.
type ChatUseCase struct {
	router    *Router
	retriever ports.ContextRetriever
	generator ports.Generator
	dataTool  ports.DataTool
	log       *slog.Logger

	TopK           int
	ScoreThreshold float64
}

func NewChatUseCase(
	router *Router,
	retriever ports.ContextRetriever,
	generator ports.Generator,
	dataTool ports.DataTool,
	log *slog.Logger,
) *ChatUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &ChatUseCase{
		router:         router,
		retriever:      retriever,
		generator:      generator,
		dataTool:       dataTool,
		log:            log,
		TopK:           5,
		ScoreThreshold: 0.6,
	}
}

func (uc *ChatUseCase) Complete(ctx context.Context, utterance string, history []domain.Turn, namespace string) (*domain.ChatResult, error) {
	history = domain.TrimHistory(history, historyLimit)
	decision := uc.router.Route(ctx, utterance, history)
	uc.log.Info("utterance routed", "target", decision.Target, "reason", decision.Reason)

	switch decision.Target {
	case domain.TargetKnowledge:
		return uc.answerFromKnowledge(ctx, decision, history, namespace)
	case domain.TargetTool:
		return uc.answerFromTool(ctx, decision, history)
	default:
		return uc.answerDirectly(ctx, utterance, history)
	}
}

func (uc *ChatUseCase) answerFromKnowledge(ctx context.Context, decision domain.RouteDecision, history []domain.Turn, namespace string) (*domain.ChatResult, error) {
	matches := uc.retriever.Retrieve(ctx, decision.Question, ports.RetrieveOptions{
		TopK:           uc.TopK,
		ScoreThreshold: uc.ScoreThreshold,
		Namespace:      namespace,
	})
	if len(matches) == 0 {
		return &domain.ChatResult{Text: noContextAnswer, Target: decision.Target}, nil
	}

	var parts []string
	for _, m := range matches {
		parts = append(parts, m.Text)
	}
	prompt := fmt.Sprintf(answerFromContextPrompt, strings.Join(parts, "\n---\n"), decision.Question)

	text, err := uc.generate(ctx, prompt, history, domain.GenerateOptions{Temperature: 0.2})
	if err != nil {
		uc.log.Error("knowledge answer generation failed", "error", err)
		return &domain.ChatResult{Text: noContextAnswer, Target: decision.Target, Sources: matches}, nil
	}
	return &domain.ChatResult{Text: text, Target: decision.Target, Sources: matches}, nil
}

func (uc *ChatUseCase) answerFromTool(ctx context.Context, decision domain.RouteDecision, history []domain.Turn) (*domain.ChatResult, error) {
	result := &domain.ChatResult{Target: decision.Target}

	query, err := uc.generate(ctx, fmt.Sprintf(generateSQLPrompt, decision.Input), nil, domain.GenerateOptions{Temperature: 0.0})
	if err != nil {
		uc.log.Error("tool query generation failed", "error", err)
		result.Text = "I could not look that up right now."
		return result, nil
	}
	query = stripCodeFence(query)

	if err := SafeQuery(query); err != nil {
		uc.log.Warn("generated query rejected", "error", err)
		result.Text = "I could not answer that with the data I have access to."
		return result, nil
	}

	raw := uc.dataTool.Execute(ctx, query)
	if strings.HasPrefix(raw, "ERROR:") {
		uc.log.Warn("data tool reported failure", "result", raw)
		result.Text = "I could not look that up right now."
		return result, nil
	}
	if strings.TrimSpace(raw) == "" {
		result.Text = "I did not find any matching records."
		return result, nil
	}

	text, err := uc.generate(ctx, fmt.Sprintf(rewriteToolResultPrompt, decision.Input, raw), history, domain.GenerateOptions{Temperature: 0.2})
	if err != nil {
		uc.log.Error("tool result rewrite failed", "error", err)
		result.Text = raw
		return result, nil
	}
	result.Text = text
	return result, nil
}

func (uc *ChatUseCase) answerDirectly(ctx context.Context, utterance string, history []domain.Turn) (*domain.ChatResult, error) {
	text, err := uc.generate(ctx, utterance, history, domain.GenerateOptions{Temperature: 0.7})
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "usecase.Chat.Complete", err)
	}
	return &domain.ChatResult{Text: text, Target: domain.TargetGeneration}, nil
}

func (uc *ChatUseCase) generate(ctx context.Context, prompt string, history []domain.Turn, opts domain.GenerateOptions) (string, error) {
	turns := make([]domain.Turn, 0, len(history)+2)
	turns = append(turns, domain.Turn{Role: domain.RoleSystem, Content: systemPrompt})
	turns = append(turns, history...)
	turns = append(turns, domain.Turn{Role: domain.RoleUser, Content: prompt})

	text, err := uc.generator.Generate(ctx, turns, opts)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// stripCodeFence unwraps ```sql fenced responses the model sometimes emits
// despite the prompt asking for bare SQL.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "sql")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
