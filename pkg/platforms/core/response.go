package core

import (
	"strings"

	"github.com/aretw0/turnstile/pkg/domain"
)

// Response is the payload returned to core clients.
type Response struct {
	Version     string         `json:"version"`
	Response    ResponseBody   `json:"response"`
	SessionData map[string]any `json:"sessionData,omitempty"`
}

// ResponseBody holds the rendered output.
type ResponseBody struct {
	Output           Speech `json:"output"`
	ShouldEndSession bool   `json:"shouldEndSession"`
}

// Speech is one utterance with its optional reprompt.
type Speech struct {
	Speech   string `json:"speech"`
	Reprompt string `json:"reprompt,omitempty"`
}

func convert(_ *domain.Turn, outputs []domain.Output) ([]any, error) {
	rendered := make([]any, 0, len(outputs))
	for _, o := range outputs {
		rendered = append(rendered, Response{
			Version: Version,
			Response: ResponseBody{
				Output:           Speech{Speech: o.Speech, Reprompt: o.Reprompt},
				ShouldEndSession: o.End,
			},
		})
	}
	return rendered, nil
}

// finalize joins every rendered utterance into one response. The last non-empty
// reprompt wins and any ending output ends the session.
func finalize(turn *domain.Turn, responses []any) (any, error) {
	out := Response{Version: Version}

	var speech []string
	for _, r := range responses {
		resp, ok := r.(Response)
		if !ok {
			continue
		}
		if s := resp.Response.Output.Speech; s != "" {
			speech = append(speech, s)
		}
		if rp := resp.Response.Output.Reprompt; rp != "" {
			out.Response.Output.Reprompt = rp
		}
		out.Response.ShouldEndSession = out.Response.ShouldEndSession || resp.Response.ShouldEndSession
	}
	out.Response.Output.Speech = strings.Join(speech, " ")

	if turn.Session != nil && !out.Response.ShouldEndSession {
		out.SessionData = turn.Session.Data
	}
	return out, nil
}
