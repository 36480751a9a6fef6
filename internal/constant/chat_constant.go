package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"

	// MaxSelectedDocuments caps how many documents a query can be scoped to.
	MaxSelectedDocuments = 2

	// DefaultResultLimit mirrors the backend schema default for n_results (1..20).
	DefaultResultLimit = 5

	// Streaming wire format
	DataLinePrefix = "data: "
	FrameTypeToken = "token"
	FrameTypeDone  = "done"

	// AnswerUnavailableFallback replaces the assistant placeholder when an
	// exchange fails before any answer text arrived.
	AnswerUnavailableFallback = "Sorry, I ran into a problem answering that. Please try again."

	// Event topics
	TranscriptEventsTopic = "TRANSCRIPT_EVENTS"
	AuthEventsTopic       = "AUTH_EVENTS"

	EventTypeAuthInvalidated = "AUTH_INVALIDATED"
)
