package platform

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/turnstile/pkg/config"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/extensible"
	"github.com/aretw0/turnstile/pkg/stage"
)

// Local stages of every platform, in execution order.
const (
	StageSetup        domain.Stage = "$setup"
	StageInit         domain.Stage = "$init"
	StageRequest      domain.Stage = "$request"
	StageSession      domain.Stage = "$session"
	StageUser         domain.Stage = "$user"
	StageType         domain.Stage = "$type"
	StageASR          domain.Stage = "$asr"
	StageNLU          domain.Stage = "$nlu"
	StageInputs       domain.Stage = "$inputs"
	StageOutputBefore domain.Stage = "$output.before"
	StageOutput       domain.Stage = "$output"
	StageResponse     domain.Stage = "$response"
)

// LocalStages returns the fixed local stage contract.
func LocalStages() []domain.Stage {
	return []domain.Stage{
		StageSetup, StageInit, StageRequest, StageSession, StageUser, StageType,
		StageASR, StageNLU, StageInputs, StageOutputBefore, StageOutput, StageResponse,
	}
}

// Pair links a parent stage to the local stages it propagates into.
type Pair struct {
	Parent domain.Stage
	Local  []domain.Stage
}

// DefaultPairs maps the application root pipeline onto the local stage contract.
func DefaultPairs() []Pair {
	return []Pair{
		{Parent: domain.StageSetup, Local: []domain.Stage{StageSetup}},
		{Parent: domain.StagePlatformInit, Local: []domain.Stage{StageInit}},
		{Parent: domain.StageRequest, Local: []domain.Stage{StageRequest}},
		{Parent: domain.StageSession, Local: []domain.Stage{StageSession}},
		{Parent: domain.StageUser, Local: []domain.Stage{StageUser}},
		{Parent: domain.StageType, Local: []domain.Stage{StageType}},
		{Parent: domain.StageASR, Local: []domain.Stage{StageASR}},
		{Parent: domain.StageNLU, Local: []domain.Stage{StageNLU}},
		{Parent: domain.StageInputs, Local: []domain.Stage{StageInputs}},
		{Parent: domain.StageOutput, Local: []domain.Stage{StageOutputBefore, StageOutput}},
		{Parent: domain.StageResponse, Local: []domain.Stage{StageResponse}},
	}
}

// Platform is an Extensible Node representing one conversational surface.
// Installed into a parent, it wires propagation shims so that the parent's stages
// delegate into its local stages for the turns it claims.
//
// A Platform is shared by every in-flight request: per-request state lives on the Turn.
type Platform struct {
	*extensible.Node

	id    string
	hooks Hooks
	pairs []Pair

	mu       sync.Mutex
	removers map[*extensible.Node][]stage.RemoveFunc
}

type options struct {
	pairs    []Pair
	nodeOpts []extensible.Option
}

// Option configures a Platform.
type Option func(*options)

// WithPairs replaces the default propagation pairs.
func WithPairs(pairs ...Pair) Option {
	return func(o *options) {
		o.pairs = pairs
	}
}

// WithNodeOptions forwards options to the underlying Extensible Node.
func WithNodeOptions(opts ...extensible.Option) Option {
	return func(o *options) {
		o.nodeOpts = append(o.nodeOpts, opts...)
	}
}

// New creates a platform with the given identity token and hooks.
// The identity doubles as the plugin name, so it is unique per parent.
func New(id string, hooks Hooks, opts ...Option) *Platform {
	o := &options{pairs: DefaultPairs()}
	for _, opt := range opts {
		opt(o)
	}

	p := &Platform{
		Node:     extensible.New(id, LocalStages(), o.nodeOpts...),
		id:       id,
		hooks:    hooks,
		pairs:    o.pairs,
		removers: make(map[*extensible.Node][]stage.RemoveFunc),
	}
	p.registerBuiltins()
	return p
}

// ID returns the identity token assigned to turns this platform claims.
func (p *Platform) ID() string {
	return p.id
}

// Owns reports whether the turn was claimed by this platform.
func (p *Platform) Owns(turn *domain.Turn) bool {
	return turn != nil && turn.Platform == p.id
}

// Install wires the claim shim, one propagation shim per pair and the finalize
// shim onto the parent's Stage Registry.
func (p *Platform) Install(_ context.Context, parent *extensible.Node) error {
	reg := parent.Stages()

	required := []domain.Stage{domain.StagePlatformClaim, domain.StageResponse}
	for _, pair := range p.pairs {
		required = append(required, pair.Parent)
		for _, l := range pair.Local {
			if !p.Stages().Has(l) {
				return fmt.Errorf("%w: local stage %s on platform %s", domain.ErrUnknownStage, l, p.id)
			}
		}
	}
	for _, s := range required {
		if !reg.Has(s) {
			return fmt.Errorf("%w: %s on %s (required by platform %s)", domain.ErrUnknownStage, s, parent.Name(), p.id)
		}
	}

	var removers []stage.RemoveFunc
	rollback := func() {
		for _, r := range removers {
			r()
		}
	}
	use := func(s domain.Stage, h stage.Handler) error {
		remove, err := reg.Use(s, h)
		if err != nil {
			rollback()
			return err
		}
		removers = append(removers, remove)
		return nil
	}

	if err := use(domain.StagePlatformClaim, p.claim); err != nil {
		return err
	}
	for _, pair := range p.pairs {
		if err := use(pair.Parent, p.shim(pair)); err != nil {
			return err
		}
	}
	if err := use(domain.StageResponse, p.finalize); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.removers[parent] = append(p.removers[parent], removers...)

	p.Logger().Debug("Platform installed", "platform", p.id, "parent", parent.Name(), "pairs", len(p.pairs))
	return nil
}

// Uninstall removes every shim this platform registered on the parent.
// Platform-local plugins stay installed.
func (p *Platform) Uninstall(_ context.Context, parent *extensible.Node) error {
	p.mu.Lock()
	removers := p.removers[parent]
	delete(p.removers, parent)
	p.mu.Unlock()

	for _, remove := range removers {
		remove()
	}
	return nil
}

// claim assigns this platform's identity to turns whose raw payload it recognizes.
func (p *Platform) claim(_ context.Context, turn *domain.Turn, _ ...any) error {
	if turn == nil || p.hooks.Claims == nil || !p.hooks.Claims(turn.Raw) {
		return nil
	}
	return turn.SetPlatform(p.id)
}

// shim is the propagation shim for one pair.
func (p *Platform) shim(pair Pair) stage.Handler {
	unconditional := pair.Parent == domain.StageSetup
	return func(ctx context.Context, turn *domain.Turn, args ...any) error {
		if !unconditional && !p.Owns(turn) {
			return nil
		}
		for _, l := range pair.Local {
			if err := p.Dispatch(ctx, l, turn, args...); err != nil {
				return err
			}
		}
		return nil
	}
}

func (p *Platform) finalize(_ context.Context, turn *domain.Turn, _ ...any) error {
	if !p.Owns(turn) {
		return nil
	}
	fn := p.hooks.Finalize
	if fn == nil {
		fn = FinalizeLast
	}
	resp, err := fn(turn, turn.Responses)
	if err != nil {
		return fmt.Errorf("platform %s failed to finalize response: %w", p.id, err)
	}
	turn.Response = resp
	return nil
}

func (p *Platform) registerBuiltins() {
	builtins := []struct {
		stage domain.Stage
		fn    stage.Handler
	}{
		{StageInit, p.initContext},
		{StageRequest, p.buildRequest},
		{StageUser, p.buildUser},
		{StageOutput, p.convertOutput},
	}
	for _, b := range builtins {
		// Local stages are fixed above, so registration cannot fail
		if _, err := p.On(b.stage, b.fn); err != nil {
			panic(err)
		}
	}
}

func (p *Platform) initContext(_ context.Context, turn *domain.Turn, _ ...any) error {
	if p.hooks.NewContext != nil {
		turn.SetCapability(p.id, p.hooks.NewContext(turn))
	}
	return nil
}

func (p *Platform) buildRequest(_ context.Context, turn *domain.Turn, _ ...any) error {
	if p.hooks.NewRequest == nil {
		return nil
	}
	view := p.hooks.NewRequest()
	if err := MergeRequest(view, turn.Raw); err != nil {
		return fmt.Errorf("platform %s failed to build request view: %w", p.id, err)
	}
	turn.Request = view
	return nil
}

func (p *Platform) buildUser(_ context.Context, turn *domain.Turn, _ ...any) error {
	if turn.User == nil && p.hooks.NewUser != nil {
		turn.User = p.hooks.NewUser(turn)
	}
	return nil
}

func (p *Platform) convertOutput(_ context.Context, turn *domain.Turn, _ ...any) error {
	if p.hooks.Converter == nil || len(turn.Output) == 0 {
		return nil
	}
	rendered, err := p.hooks.Converter.Convert(turn, turn.Output)
	if err != nil {
		return fmt.Errorf("platform %s failed to convert output: %w", p.id, err)
	}
	turn.Responses = append(turn.Responses, rendered...)
	return nil
}

// MergeRequest merges a raw payload into a request view (a pointer to struct,
// typically pre-populated with defaults). Keys present in raw win; `json` tags name fields.
func MergeRequest(view any, raw map[string]any) error {
	return config.DecodeTagged(raw, view, "json")
}

// RequestAs returns the turn's request view with its concrete type.
func RequestAs[T any](turn *domain.Turn) (T, bool) {
	v, ok := turn.Request.(T)
	return v, ok
}
