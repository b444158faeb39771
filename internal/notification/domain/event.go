package domain

// Event type tags. Chat webhook allow-lists filter on these.
const (
	TypeRuleMatch     = "RULE_MATCH"
	TypeFollowUp      = "FOLLOW_UP"
	TypeDigest        = "DIGEST"
	TypeMeetingPrep   = "MEETING_PREP"
	TypeEventProposal = "EVENT_PROPOSAL"
	TypeSystem        = "SYSTEM"
)

// Event is the transient notification payload handed to the dispatcher.
// It is never persisted; every producer (rule match, reminder, digest)
// emits this same shape.
type Event struct {
	Title string
	Body  string
	Type  string
	Extra map[string]string
}

// DispatchResult aggregates per-target outcomes of one dispatch.
// ChatSent is nil when no chat webhook applied (not configured,
// disabled, or filtered by type).
type DispatchResult struct {
	PushSent   int
	PushFailed int
	ChatSent   *bool
}
