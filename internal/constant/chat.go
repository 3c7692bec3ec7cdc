package constant

// Chat message roles.
const (
	ChatMessageRoleUser  = "user"
	ChatMessageRoleModel = "model"
)

// Topic for in-process workflow events (watermill).
const WorkflowEventsTopic = "WORKFLOW_EVENTS"

// Greeting stored as the first model message of every new session.
const InitialGreeting = "Hi! Upload your facility dataset and say \"calculate tpr\" to start a malaria test-positivity analysis. You can also just ask questions about your data."
