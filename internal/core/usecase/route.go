package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
	"github.com/kirillkom/chatbot-rag/internal/core/ports"
)

// RouteRule is one predicate of the fast rule tier. Rules are evaluated in
// slice order, first match wins, so the slice order IS the precedence.
type RouteRule struct {
	Name    string
	Pattern *regexp.Regexp
	Target  domain.RouteTarget
}

// DefaultRules orders tool-invocation predicates strictly before
// knowledge-retrieval ones: structured-data intents must not be shadowed by
// generic "what is" phrasing, which would otherwise match almost anything.
func DefaultRules() []RouteRule {
	return []RouteRule{
		{
			Name:    "tool-keywords",
			Pattern: regexp.MustCompile(`(?i)\b(database|preferences?|settings?|sql|query)\b`),
			Target:  domain.TargetTool,
		},
		{
			Name:    "tool-possessive",
			Pattern: regexp.MustCompile(`(?i)\b(who|what|which)\b.*\b(favou?rite|prefer(s|red)?)\b`),
			Target:  domain.TargetTool,
		},
		{
			Name:    "knowledge-source",
			Pattern: regexp.MustCompile(`(?i)\b(documents?|pdfs?|articles?)\b`),
			Target:  domain.TargetKnowledge,
		},
		{
			Name:    "knowledge-citation",
			Pattern: regexp.MustCompile(`(?i)\baccording to\b`),
			Target:  domain.TargetKnowledge,
		},
		{
			Name:    "knowledge-question",
			Pattern: regexp.MustCompile(`(?i)^\s*(what|explain|describe)\b`),
			Target:  domain.TargetKnowledge,
		},
	}
}

const classifyPromptTemplate = `Classify the user utterance into exactly one label.

Labels:
- knowledge-retrieval: the answer lives in indexed documents.
- tool-invocation: the answer requires querying stored user data.
- direct-generation: open conversation, no stored data needed.

Respond with the label only, no other text.

Utterance:
%s`

// Router classifies one utterance into exactly one target. It layers an
// ordered rule tier over an optional model-based classifier tier; when
// neither decides, FallbackTarget applies. The fallback is a named policy,
// not an accident of missing configuration, and every use of it is logged.
type Router struct {
	rules          []RouteRule
	classifier     ports.Generator
	FallbackTarget domain.RouteTarget
	historyLimit   int
	log            *slog.Logger
	onDecision     func(domain.RouteDecision)
}

type RouterOption func(*Router)

// WithClassifier enables the slow model tier.
func WithClassifier(g ports.Generator) RouterOption {
	return func(r *Router) { r.classifier = g }
}

// WithFallback overrides the default knowledge-retrieval fallback.
func WithFallback(target domain.RouteTarget) RouterOption {
	return func(r *Router) { r.FallbackTarget = target }
}

// WithDecisionHook observes every decision, e.g. for metrics.
func WithDecisionHook(hook func(domain.RouteDecision)) RouterOption {
	return func(r *Router) { r.onDecision = hook }
}

func NewRouter(rules []RouteRule, log *slog.Logger, opts ...RouterOption) *Router {
	if rules == nil {
		rules = DefaultRules()
	}
	if log == nil {
		log = slog.Default()
	}
	r := &Router{
		rules:          rules,
		FallbackTarget: domain.TargetKnowledge,
		historyLimit:   10,
		log:            log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route always resolves to some target: an utterance is never left
// unhandled.
func (r *Router) Route(ctx context.Context, utterance string, history []domain.Turn) domain.RouteDecision {
	decision := r.decide(ctx, utterance, history)
	if r.onDecision != nil {
		r.onDecision(decision)
	}
	return decision
}

func (r *Router) decide(ctx context.Context, utterance string, history []domain.Turn) domain.RouteDecision {
	for _, rule := range r.rules {
		if rule.Pattern.MatchString(utterance) {
			return makeDecision(rule.Target, utterance, "rule:"+rule.Name)
		}
	}

	if r.classifier != nil {
		if target, ok := r.classify(ctx, utterance, history); ok {
			return makeDecision(target, utterance, "classifier")
		}
	}

	r.log.Info("route fallback applied", "target", r.FallbackTarget, "classifier_configured", r.classifier != nil)
	return makeDecision(r.FallbackTarget, utterance, "fallback")
}

func (r *Router) classify(ctx context.Context, utterance string, history []domain.Turn) (domain.RouteTarget, bool) {
	turns := append(domain.TrimHistory(history, r.historyLimit), domain.Turn{
		Role:    domain.RoleUser,
		Content: fmt.Sprintf(classifyPromptTemplate, utterance),
	})

	raw, err := r.classifier.Generate(ctx, turns, domain.GenerateOptions{
		Temperature: 0.0,
		MaxTokens:   16,
	})
	if err != nil {
		r.log.Warn("classifier tier failed", "error", err)
		return "", false
	}

	label := strings.ToLower(strings.TrimSpace(raw))
	for _, target := range []domain.RouteTarget{domain.TargetTool, domain.TargetKnowledge, domain.TargetGeneration} {
		if strings.Contains(label, string(target)) {
			return target, true
		}
	}
	r.log.Warn("classifier returned no known label", "label", label)
	return "", false
}

func makeDecision(target domain.RouteTarget, utterance, reason string) domain.RouteDecision {
	decision := domain.RouteDecision{Target: target, Reason: reason}
	switch target {
	case domain.TargetKnowledge:
		decision.Question = utterance
	case domain.TargetTool:
		decision.Input = utterance
	default:
		decision.Input = utterance
	}
	return decision
}
