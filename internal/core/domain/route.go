package domain

type RouteTarget string

const (
	TargetKnowledge  RouteTarget = "knowledge-retrieval"
	TargetTool       RouteTarget = "tool-invocation"
	TargetGeneration RouteTarget = "direct-generation"
)

// RouteDecision assigns one utterance to exactly one downstream handler.
// Reason names the rule or tier that decided, for logs and tests.
type RouteDecision struct {
	Target   RouteTarget
	Question string
	Input    string
	Reason   string
}

func (t RouteTarget) Valid() bool {
	switch t {
	case TargetKnowledge, TargetTool, TargetGeneration:
		return true
	}
	return false
}
