package extensible

import (
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/stage"
)

// Binding pairs a stage with the handler registered on it.
type Binding struct {
	Stage   domain.Stage
	Handler stage.Handler
}

// On builds a Binding.
func On(s domain.Stage, h stage.Handler) Binding {
	return Binding{Stage: s, Handler: h}
}

// Bind registers every binding on the node's registry. If one fails, the ones
// already registered are removed again. The returned func removes them all.
func (n *Node) Bind(bindings ...Binding) (stage.RemoveFunc, error) {
	removers := make([]stage.RemoveFunc, 0, len(bindings))
	removeAll := func() {
		for i := len(removers) - 1; i >= 0; i-- {
			removers[i]()
		}
	}
	for _, b := range bindings {
		remove, err := n.On(b.Stage, b.Handler)
		if err != nil {
			removeAll()
			return nil, err
		}
		removers = append(removers, remove)
	}
	return removeAll, nil
}
