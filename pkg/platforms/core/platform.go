package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/platform"
)

// ID is the identity token of the core platform.
const ID = "core"

// Version is written into request defaults and every response.
const Version = "1.0"

// Config holds the core platform options.
type Config struct {
	// MaxInputSize bounds body.text in bytes (default: DefaultMaxInputSize or TURNSTILE_MAX_INPUT_SIZE).
	MaxInputSize int `mapstructure:"maxInputSize"`
}

// Context is the capability attached to turns the core platform claims.
type Context struct {
	Request *Request
}

// From returns the core capability of a turn.
func From(turn *domain.Turn) (*Context, bool) {
	return domain.CapabilityOf[*Context](turn, ID)
}

// Claims recognizes core payloads: an explicit "platform": "core", or a body carrying text.
func Claims(raw map[string]any) bool {
	if raw["platform"] == ID {
		return true
	}
	if _, explicit := raw["platform"]; explicit {
		return false
	}
	body, ok := raw["body"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = body["text"].(string)
	return ok
}

// New builds the core platform.
func New(cfg Config, opts ...platform.Option) *platform.Platform {
	sanitizer := NewSanitizer(cfg.MaxInputSize)

	p := platform.New(ID, platform.Hooks{
		Claims:     Claims,
		NewRequest: newRequest,
		NewContext: func(*domain.Turn) any { return &Context{} },
		NewUser: func(turn *domain.Turn) *domain.User {
			req, ok := platform.RequestAs[*Request](turn)
			if !ok || req.User.ID == "" {
				return nil
			}
			u := domain.NewUser(req.User.ID)
			for k, v := range req.User.Data {
				u.Data[k] = v
			}
			return u
		},
		Converter: platform.ConverterFunc(convert),
		Finalize:  finalize,
	}, opts...)

	handlers := []struct {
		stage domain.Stage
		fn    func(context.Context, *domain.Turn, *Request) error
	}{
		{platform.StageRequest, attachRequest},
		{platform.StageSession, resolveSession},
		{platform.StageType, classify},
		{platform.StageASR, recognize(sanitizer)},
		{platform.StageNLU, understand},
		{platform.StageInputs, collectInputs},
	}
	for _, h := range handlers {
		fn := h.fn
		// Local stages are fixed, so registration cannot fail
		if _, err := p.On(h.stage, func(ctx context.Context, turn *domain.Turn, _ ...any) error {
			req, ok := platform.RequestAs[*Request](turn)
			if !ok {
				return fmt.Errorf("%w: core turn without core request view", domain.ErrConfiguration)
			}
			return fn(ctx, turn, req)
		}); err != nil {
			panic(err)
		}
	}
	return p
}

func attachRequest(_ context.Context, turn *domain.Turn, req *Request) error {
	if c, ok := From(turn); ok {
		c.Request = req
	}
	return nil
}

func resolveSession(_ context.Context, turn *domain.Turn, req *Request) error {
	if req.Session.ID == "" {
		return nil
	}
	s := domain.NewSession(req.Session.ID)
	s.New = req.Session.New
	for k, v := range req.Session.Data {
		s.Data[k] = v
	}
	turn.Session = s
	return nil
}

func classify(_ context.Context, turn *domain.Turn, req *Request) error {
	switch domain.RequestType(strings.ToUpper(req.Type)) {
	case domain.TypeLaunch:
		turn.Type = domain.TypeLaunch
	case domain.TypeIntent:
		turn.Type = domain.TypeIntent
	case domain.TypeText:
		turn.Type = domain.TypeText
	case domain.TypeEnd:
		turn.Type = domain.TypeEnd
	case "":
		switch {
		case req.NLU.Intent != "":
			turn.Type = domain.TypeIntent
		case req.Body.Text != "":
			turn.Type = domain.TypeText
		default:
			turn.Type = domain.TypeLaunch
		}
	default:
		turn.Type = domain.TypeUnhandled
	}
	return nil
}

func recognize(s *Sanitizer) func(context.Context, *domain.Turn, *Request) error {
	return func(_ context.Context, turn *domain.Turn, req *Request) error {
		if req.Body.Text == "" {
			return nil
		}
		text, err := s.Sanitize(req.Body.Text)
		if err != nil {
			return err
		}
		turn.ASR = domain.ASR{Text: text, Confidence: 1}
		return nil
	}
}

func understand(_ context.Context, turn *domain.Turn, req *Request) error {
	if req.NLU.Intent == "" {
		return nil
	}
	turn.NLU.Intent = req.NLU.Intent
	turn.NLU.Confidence = req.NLU.Confidence
	return nil
}

func collectInputs(_ context.Context, turn *domain.Turn, req *Request) error {
	for k, v := range req.NLU.Inputs {
		turn.Inputs[k] = v
	}
	for k, v := range turn.NLU.Entities {
		if _, set := turn.Inputs[k]; !set {
			turn.Inputs[k] = v
		}
	}
	return nil
}
