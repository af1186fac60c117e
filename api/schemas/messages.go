package schemas

// -- Channel Protocol Schemas --
//
// Wire messages exchanged between a connected user and the session
// orchestrator. Every message carries a discriminating "type" tag.

// Inbound message types.
const (
	MsgUserMessage     = "user_message"
	MsgCaptchaSolution = "captcha_solution"
)

// Outbound message types.
const (
	MsgAgentLog        = "agent_log"
	MsgCaptchaRequired = "captcha_required"
	MsgAIReply         = "ai_reply"
	MsgAgentResult     = "agent_result"
)

// InboundMessage is the envelope for everything a user sends.
// Text is set for user_message, Code for captcha_solution.
type InboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Code string `json:"code,omitempty"`
}

// AgentLog is a single human-readable progress line, emitted in step order.
type AgentLog struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// CaptchaRequired carries the rendered challenge as a data URI
// (data:image/png;base64,...). The task that sent it is suspended until a
// captcha_solution arrives or the checkpoint deadline passes.
type CaptchaRequired struct {
	Type  string `json:"type"`
	Image string `json:"image"`
}

// AIReply relays the oracle's clarification prompt when no task was started.
type AIReply struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// AgentResult is the terminal message for one automation run.
type AgentResult struct {
	Type   string  `json:"type"`
	Result Outcome `json:"result"`
}

// NewAgentLog builds a tagged progress message.
func NewAgentLog(message string) AgentLog {
	return AgentLog{Type: MsgAgentLog, Message: message}
}

// NewCaptchaRequired builds a tagged checkpoint message.
func NewCaptchaRequired(imageDataURI string) CaptchaRequired {
	return CaptchaRequired{Type: MsgCaptchaRequired, Image: imageDataURI}
}

// NewAIReply builds a tagged clarification message.
func NewAIReply(text string) AIReply {
	return AIReply{Type: MsgAIReply, Text: text}
}

// NewAgentResult builds a tagged terminal message.
func NewAgentResult(outcome Outcome) AgentResult {
	return AgentResult{Type: MsgAgentResult, Result: outcome}
}
