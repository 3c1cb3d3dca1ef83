package core

// Request is the core platform's request view.
type Request struct {
	Version  string     `json:"version"`
	Platform string     `json:"platform,omitempty"`
	Type     string     `json:"type,omitempty"`
	Body     Body       `json:"body"`
	NLU      RequestNLU `json:"nlu"`
	Session  SessionRef `json:"session"`
	User     UserRef    `json:"user"`
}

// Body carries what the user said or typed.
type Body struct {
	Text  string `json:"text,omitempty"`
	Audio string `json:"audio,omitempty"`
}

// RequestNLU is an understanding result computed upstream of the engine.
type RequestNLU struct {
	Intent     string         `json:"intent,omitempty"`
	Inputs     map[string]any `json:"inputs,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
}

// SessionRef identifies the conversation.
type SessionRef struct {
	ID   string         `json:"id,omitempty"`
	New  bool           `json:"new,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// UserRef identifies the speaker.
type UserRef struct {
	ID   string         `json:"id,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

func newRequest() any {
	return &Request{Version: Version}
}
