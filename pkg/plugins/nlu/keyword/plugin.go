// Package keyword is a platform-local NLU plugin resolving intents from keyword lists.
//
// It installs into a platform node (not the application root) and runs at $nlu,
// after the platform's own handlers. An intent already present on the turn is kept.
package keyword

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/aretw0/turnstile/pkg/config"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/extensible"
	"github.com/aretw0/turnstile/pkg/platform"
	"github.com/aretw0/turnstile/pkg/stage"
)

// PluginName is the name the keyword plugin installs under.
const PluginName = "nlu.keyword"

// Config maps intents to the keywords that trigger them.
type Config struct {
	Intents map[string][]string `mapstructure:"intents"`
	// Fallback is assigned when no keyword matches. Empty leaves the intent unset.
	Fallback string `mapstructure:"fallback"`
}

// DecodeConfig decodes raw plugin options.
func DecodeConfig(raw map[string]any) (Config, error) {
	var cfg Config
	if err := config.Decode(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Plugin matches turn.ASR.Text against the configured keywords.
type Plugin struct {
	intents  []string
	keywords map[string][]string
	fallback string
	remove   stage.RemoveFunc
}

// NewPlugin creates the plugin. Keywords are matched case-insensitively on whole words;
// multi-word keywords match as phrases.
func NewPlugin(cfg Config) *Plugin {
	p := &Plugin{keywords: make(map[string][]string), fallback: cfg.Fallback}
	for intent, words := range cfg.Intents {
		normalized := make([]string, 0, len(words))
		for _, w := range words {
			if w = strings.Join(tokenize(w), " "); w != "" {
				normalized = append(normalized, w)
			}
		}
		p.keywords[intent] = normalized
		p.intents = append(p.intents, intent)
	}
	sort.Strings(p.intents)
	return p
}

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Install(_ context.Context, parent *extensible.Node) error {
	if !parent.Stages().Has(platform.StageNLU) {
		return fmt.Errorf("%w: %s installs into a platform, not %s", domain.ErrConfiguration, PluginName, parent.Name())
	}
	remove, err := parent.On(platform.StageNLU, p.understand)
	if err != nil {
		return err
	}
	p.remove = remove
	return nil
}

func (p *Plugin) Uninstall(context.Context, *extensible.Node) error {
	if p.remove != nil {
		p.remove()
		p.remove = nil
	}
	return nil
}

func (p *Plugin) understand(_ context.Context, turn *domain.Turn, _ ...any) error {
	if turn.NLU.Intent != "" || turn.ASR.Text == "" {
		return nil
	}

	intent, hits, total := p.Match(turn.ASR.Text)
	if intent == "" {
		turn.NLU.Intent = p.fallback
		return nil
	}
	turn.NLU.Intent = intent
	turn.NLU.Confidence = float64(hits) / float64(total)
	return nil
}

// Match returns the intent with the most keyword hits in text, the hit count and
// the number of keywords for that intent. Ties go to the alphabetically first intent.
func (p *Plugin) Match(text string) (intent string, hits, total int) {
	padded := " " + strings.Join(tokenize(text), " ") + " "
	for _, name := range p.intents {
		n := 0
		for _, kw := range p.keywords[name] {
			if strings.Contains(padded, " "+kw+" ") {
				n++
			}
		}
		if n > hits {
			intent, hits, total = name, n, len(p.keywords[name])
		}
	}
	return intent, hits, total
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}
