package domain

// Route is the triage outcome for an inbound message.
type Route string

const (
	RouteIgnore   Route = "ignore"
	RouteChitchat Route = "chitchat"
	RouteLLM      Route = "llm_required"
	RouteVision   Route = "vision"
)

// RouteDecision is produced once per inbound message and never persisted.
type RouteDecision struct {
	Route       Route
	Confidence  float64
	CannedReply string // set only when Route == RouteChitchat
}
