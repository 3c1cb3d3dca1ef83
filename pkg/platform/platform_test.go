package platform_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/extensible"
	"github.com/aretw0/turnstile/pkg/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRequest struct {
	Platform string `json:"platform"`
	Version  string `json:"version"`
	Text     string `json:"text"`
}

// counting builds a platform claiming payloads tagged with its id and counts local stage calls.
func counting(t *testing.T, id string) (*platform.Platform, map[domain.Stage]int) {
	t.Helper()
	calls := make(map[domain.Stage]int)
	p := platform.New(id, platform.Hooks{
		Claims: func(raw map[string]any) bool { return raw["platform"] == id },
		NewRequest: func() any {
			return &testRequest{Version: "1.0"}
		},
		NewUser: func(turn *domain.Turn) *domain.User { return domain.NewUser("u-" + id) },
	})
	for _, s := range platform.LocalStages() {
		_, err := p.On(s, func(context.Context, *domain.Turn, ...any) error {
			calls[s]++
			return nil
		})
		require.NoError(t, err)
	}
	return p, calls
}

func newRoot() *extensible.Node {
	return extensible.New("root", domain.GlobalStages())
}

func runPipeline(t *testing.T, root *extensible.Node, turn *domain.Turn) error {
	t.Helper()
	ctx := context.Background()
	if err := root.Dispatch(ctx, domain.StagePlatformClaim, turn); err != nil {
		return err
	}
	for _, s := range domain.Pipeline {
		if err := root.Dispatch(ctx, s, turn); err != nil {
			return err
		}
	}
	return nil
}

func TestPlatform_ExclusiveDispatch(t *testing.T) {
	ctx := context.Background()
	root := newRoot()
	first, firstCalls := counting(t, "first")
	second, secondCalls := counting(t, "second")
	require.NoError(t, root.Use(ctx, first, second))

	turn := domain.NewTurn(map[string]any{"platform": "second"}, nil)
	require.NoError(t, runPipeline(t, root, turn))

	assert.Equal(t, "second", turn.Platform)
	assert.Empty(t, firstCalls, "first platform never runs")

	for _, s := range platform.LocalStages() {
		if s == platform.StageSetup {
			assert.Zero(t, secondCalls[s], "setup is not part of the per-turn pipeline")
			continue
		}
		assert.Equal(t, 1, secondCalls[s], "stage %s", s)
	}
}

func TestPlatform_Claim(t *testing.T) {
	ctx := context.Background()

	t.Run("Unclaimed Payload", func(t *testing.T) {
		root := newRoot()
		p, calls := counting(t, "core")
		require.NoError(t, root.Use(ctx, p))

		turn := domain.NewTurn(map[string]any{"platform": "other"}, nil)
		require.NoError(t, runPipeline(t, root, turn))
		assert.False(t, turn.Claimed())
		assert.Empty(t, calls)
	})

	t.Run("Overlapping Claims Are Ambiguous", func(t *testing.T) {
		root := newRoot()
		greedy := platform.New("greedy", platform.Hooks{Claims: func(map[string]any) bool { return true }})
		alsoGreedy := platform.New("also-greedy", platform.Hooks{Claims: func(map[string]any) bool { return true }})
		require.NoError(t, root.Use(ctx, greedy, alsoGreedy))

		err := root.Dispatch(ctx, domain.StagePlatformClaim, domain.NewTurn(nil, nil))
		assert.ErrorIs(t, err, domain.ErrAmbiguousDispatch)
	})
}

func TestPlatform_RequestView(t *testing.T) {
	ctx := context.Background()
	root := newRoot()
	p, _ := counting(t, "core")
	require.NoError(t, root.Use(ctx, p))

	turn := domain.NewTurn(map[string]any{"platform": "core", "text": "hi", "extra": 1}, nil)
	require.NoError(t, runPipeline(t, root, turn))

	req, ok := platform.RequestAs[*testRequest](turn)
	require.True(t, ok)
	assert.Equal(t, "1.0", req.Version, "defaults survive when the payload omits a key")
	assert.Equal(t, "hi", req.Text)
	assert.Equal(t, "u-core", turn.User.ID)
}

func TestMergeRequest_LaterKeysWin(t *testing.T) {
	view := &testRequest{Version: "1.0", Text: "default"}
	require.NoError(t, platform.MergeRequest(view, map[string]any{"version": "2.0"}))
	assert.Equal(t, "2.0", view.Version)
	assert.Equal(t, "default", view.Text)
}

type speechCtx struct{ Prefix string }

func TestPlatform_OutputAndFinalize(t *testing.T) {
	ctx := context.Background()
	root := newRoot()

	p := platform.New("voice", platform.Hooks{
		Claims:     func(map[string]any) bool { return true },
		NewContext: func(*domain.Turn) any { return &speechCtx{Prefix: ">"} },
		Converter: platform.ConverterFunc(func(turn *domain.Turn, outs []domain.Output) ([]any, error) {
			sc, _ := domain.CapabilityOf[*speechCtx](turn, "voice")
			var rendered []any
			for _, o := range outs {
				rendered = append(rendered, sc.Prefix+o.Speech)
			}
			return rendered, nil
		}),
		Finalize: func(_ *domain.Turn, responses []any) (any, error) {
			parts := make([]string, 0, len(responses))
			for _, r := range responses {
				parts = append(parts, r.(string))
			}
			return strings.Join(parts, " "), nil
		},
	})
	_, err := p.On(platform.StageOutputBefore, func(_ context.Context, turn *domain.Turn, _ ...any) error {
		turn.Ask("Hello.", "")
		turn.Ask("How are you?", "")
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, root.Use(ctx, p))

	turn := domain.NewTurn(nil, nil)
	require.NoError(t, runPipeline(t, root, turn))

	assert.Len(t, turn.Responses, 2)
	assert.Equal(t, ">Hello. >How are you?", turn.Response)
}

func TestPlatform_DefaultFinalizeKeepsLast(t *testing.T) {
	resp, err := platform.FinalizeLast(nil, []any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "b", resp)

	resp, err = platform.FinalizeLast(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestPlatform_InstallRequiresParentStages(t *testing.T) {
	parent := extensible.New("bare", []domain.Stage{domain.StageRequest})
	p := platform.New("core", platform.Hooks{})

	err := parent.Use(context.Background(), p)
	assert.ErrorIs(t, err, domain.ErrUnknownStage)
	assert.Zero(t, parent.Stages().Handlers(domain.StageRequest), "nothing left behind")
}

func TestPlatform_CustomPairs(t *testing.T) {
	ctx := context.Background()
	root := newRoot()
	p := platform.New("text", platform.Hooks{Claims: func(map[string]any) bool { return true }},
		platform.WithPairs(platform.Pair{Parent: domain.StageNLU, Local: []domain.Stage{platform.StageASR, platform.StageNLU}}),
	)
	var order []domain.Stage
	for _, s := range []domain.Stage{platform.StageASR, platform.StageNLU} {
		_, err := p.On(s, func(context.Context, *domain.Turn, ...any) error {
			order = append(order, s)
			return nil
		})
		require.NoError(t, err)
	}
	require.NoError(t, root.Use(ctx, p))

	require.NoError(t, runPipeline(t, root, domain.NewTurn(nil, nil)))
	assert.Equal(t, []domain.Stage{platform.StageASR, platform.StageNLU}, order)

	bad := platform.New("bad", platform.Hooks{}, platform.WithPairs(platform.Pair{Parent: domain.StageNLU, Local: []domain.Stage{"$missing"}}))
	assert.ErrorIs(t, root.Use(ctx, bad), domain.ErrUnknownStage)
}

func TestPlatform_Uninstall(t *testing.T) {
	ctx := context.Background()
	root := newRoot()
	p, calls := counting(t, "core")
	require.NoError(t, root.Use(ctx, p))
	require.NoError(t, root.Remove(ctx, "core"))

	for _, s := range domain.GlobalStages() {
		assert.Zero(t, root.Stages().Handlers(s), "stage %s still has shims", s)
	}

	turn := domain.NewTurn(map[string]any{"platform": "core"}, nil)
	require.NoError(t, runPipeline(t, root, turn))
	assert.False(t, turn.Claimed())
	assert.Empty(t, calls)

	// Installable again
	require.NoError(t, root.Use(ctx, p))
}

func TestPlatform_SetupPropagates(t *testing.T) {
	ctx := context.Background()
	root := newRoot()
	p := platform.New("core", platform.Hooks{})
	setups := 0
	_, err := p.On(platform.StageSetup, func(_ context.Context, turn *domain.Turn, _ ...any) error {
		assert.Nil(t, turn)
		setups++
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, root.Use(ctx, p))

	require.NoError(t, root.Dispatch(ctx, domain.StageSetup, nil))
	assert.Equal(t, 1, setups)
}

// localPlugin installs into a platform, composing root → platform → plugin.
type localPlugin struct{ hits *int }

func (localPlugin) Name() string { return "local" }

func (l localPlugin) Install(_ context.Context, parent *extensible.Node) error {
	_, err := parent.On(platform.StageNLU, func(_ context.Context, turn *domain.Turn, _ ...any) error {
		*l.hits++
		turn.NLU.Intent = "HelloIntent"
		return nil
	})
	return err
}

func TestPlatform_LocalPlugin(t *testing.T) {
	ctx := context.Background()
	root := newRoot()
	p, _ := counting(t, "core")
	hits := 0
	require.NoError(t, p.Use(ctx, localPlugin{hits: &hits}))
	require.NoError(t, root.Use(ctx, p))

	turn := domain.NewTurn(map[string]any{"platform": "core"}, nil)
	require.NoError(t, runPipeline(t, root, turn))
	assert.Equal(t, 1, hits)
	assert.Equal(t, "HelloIntent", turn.NLU.Intent)
}
