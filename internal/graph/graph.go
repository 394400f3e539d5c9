// Package graph implements a small workflow graph with named nodes, fixed and
// conditional edges, and a single-level interrupt/resume primitive backed by a
// checkpointer. It covers linear agent pipelines, not general dataflow.
package graph

import (
	"context"
	"fmt"
)

// END is the terminal pseudo-node every path must reach.
const END = "__end__"

// NodeFunc transforms the workflow state. Nodes receive the state by value
// and return the updated state.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// RouteFunc picks the label of the outgoing conditional edge for a state.
type RouteFunc[S any] func(state S) string

type conditionalEdge[S any] struct {
	route   RouteFunc[S]
	targets map[string]string
}

// Graph is a workflow definition under construction. Compile validates it
// and produces a Runner.
type Graph[S any] struct {
	nodes       map[string]NodeFunc[S]
	edges       map[string]string
	conditional map[string]conditionalEdge[S]
	entry       string
}

func New[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:       make(map[string]NodeFunc[S]),
		edges:       make(map[string]string),
		conditional: make(map[string]conditionalEdge[S]),
	}
}

func (g *Graph[S]) AddNode(name string, fn NodeFunc[S]) error {
	if name == "" || name == END {
		return fmt.Errorf("invalid node name %q", name)
	}
	if fn == nil {
		return fmt.Errorf("node %q has no function", name)
	}
	if _, ok := g.nodes[name]; ok {
		return fmt.Errorf("node %q already exists", name)
	}

	g.nodes[name] = fn
	return nil
}

func (g *Graph[S]) AddEdge(from, to string) error {
	if err := g.checkEdgeSource(from); err != nil {
		return err
	}

	g.edges[from] = to
	return nil
}

// AddConditionalEdges wires from to one of the targets. The route function
// returns a label, the targets map translates labels to node names.
func (g *Graph[S]) AddConditionalEdges(from string, route RouteFunc[S], targets map[string]string) error {
	if err := g.checkEdgeSource(from); err != nil {
		return err
	}
	if route == nil {
		return fmt.Errorf("conditional edge from %q has no route function", from)
	}
	if len(targets) == 0 {
		return fmt.Errorf("conditional edge from %q has no targets", from)
	}

	g.conditional[from] = conditionalEdge[S]{route: route, targets: targets}
	return nil
}

func (g *Graph[S]) SetEntryPoint(name string) error {
	if _, ok := g.nodes[name]; !ok {
		return fmt.Errorf("entry point %q is not a node", name)
	}

	g.entry = name
	return nil
}

func (g *Graph[S]) checkEdgeSource(from string) error {
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("edge source %q is not a node", from)
	}
	if _, ok := g.edges[from]; ok {
		return fmt.Errorf("node %q already has an outgoing edge", from)
	}
	if _, ok := g.conditional[from]; ok {
		return fmt.Errorf("node %q already has a conditional edge", from)
	}
	return nil
}

// Compile validates the graph and returns a Runner executing it.
func (g *Graph[S]) Compile(opts ...Option[S]) (*Runner[S], error) {
	if g.entry == "" {
		return nil, fmt.Errorf("graph has no entry point")
	}

	if len(g.nodes) == 0 {
		return nil, fmt.Errorf("graph has no nodes")
	}

	for name := range g.nodes {
		_, hasEdge := g.edges[name]
		_, hasConditional := g.conditional[name]
		if !hasEdge && !hasConditional {
			return nil, fmt.Errorf("node %q has no outgoing edge", name)
		}
	}

	for from, to := range g.edges {
		if err := g.checkTarget(from, to); err != nil {
			return nil, err
		}
	}

	for from, edge := range g.conditional {
		for label, to := range edge.targets {
			if err := g.checkTarget(fmt.Sprintf("%s[%s]", from, label), to); err != nil {
				return nil, err
			}
		}
	}

	return newRunner(g, opts...), nil
}

func (g *Graph[S]) checkTarget(from, to string) error {
	if to == END {
		return nil
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("edge %s -> %s points to unknown node", from, to)
	}
	return nil
}

// next resolves the node following from for the given state.
func (g *Graph[S]) next(from string, state S) (string, error) {
	if to, ok := g.edges[from]; ok {
		return to, nil
	}

	edge, ok := g.conditional[from]
	if !ok {
		return "", fmt.Errorf("node %q has no outgoing edge", from)
	}

	label := edge.route(state)
	to, ok := edge.targets[label]
	if !ok {
		return "", fmt.Errorf("route from %q returned unknown label %q", from, label)
	}

	return to, nil
}
