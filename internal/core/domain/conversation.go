package domain

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of an in-memory conversation history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TrimHistory keeps the most recent limit turns.
func TrimHistory(history []Turn, limit int) []Turn {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}

// GenerateOptions is the contract for invoking the generative model.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// ChatResult is the orchestrated answer for one utterance.
type ChatResult struct {
	Text    string           `json:"text"`
	Target  RouteTarget      `json:"target"`
	Sources []RetrievalMatch `json:"sources,omitempty"`
}
