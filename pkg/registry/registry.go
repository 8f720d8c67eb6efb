// Package registry maps node types to their processors. The node kind set is
// closed, so the registry is a static table populated at construction time.
package registry

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ccxxllhl2/ai-workflow/pkg/log"
	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/nodes"
	"github.com/ccxxllhl2/ai-workflow/pkg/nodes/agent"
	"github.com/ccxxllhl2/ai-workflow/pkg/nodes/conditional"
	"github.com/ccxxllhl2/ai-workflow/pkg/nodes/entry"
	"github.com/ccxxllhl2/ai-workflow/pkg/nodes/humancontrol"
	"github.com/ccxxllhl2/ai-workflow/pkg/nodes/terminal"
)

// ErrUnknownNodeType is returned when a workflow references a node type the
// registry does not know.
var ErrUnknownNodeType = errors.New("unknown node type")

type Registry struct {
	processors map[models.NodeType]nodes.Processor
	logger     *slog.Logger
}

// NewRegistry builds a registry with every supported node processor
// registered.
func NewRegistry() *Registry {
	r := &Registry{
		processors: make(map[models.NodeType]nodes.Processor),
		logger:     log.WithModule("registry"),
	}

	r.register(entry.NewNode())
	r.register(agent.NewNode())
	r.register(conditional.NewNode())
	r.register(humancontrol.NewNode())
	r.register(terminal.NewNode())

	return r
}

func (r *Registry) register(p nodes.Processor) {
	r.processors[p.Type()] = p
	r.logger.Debug("Registered node processor", "node_type", p.Type())
}

// Processor returns the processor for the given node type.
func (r *Registry) Processor(nodeType models.NodeType) (nodes.Processor, error) {
	p, ok := r.processors[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNodeType, nodeType)
	}

	return p, nil
}

// Types lists the registered node types.
func (r *Registry) Types() []models.NodeType {
	types := make([]models.NodeType, 0, len(r.processors))
	for t := range r.processors {
		types = append(types, t)
	}

	return types
}
