package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type testState struct {
	Steps []string `json:"steps"`
	Count int      `json:"count"`
}

func appendStep(name string) NodeFunc[testState] {
	return func(_ context.Context, state testState) (testState, error) {
		state.Steps = append(state.Steps, name)
		return state, nil
	}
}

func TestGraphRunsLinearPath(t *testing.T) {
	t.Parallel()

	g := New[testState]()
	mustAddNode(t, g, "a", appendStep("a"))
	mustAddNode(t, g, "b", appendStep("b"))
	mustAddEdge(t, g, "a", "b")
	mustAddEdge(t, g, "b", END)
	mustSetEntry(t, g, "a")

	runner, err := g.Compile()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	result, err := runner.Invoke(context.Background(), testState{}, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := strings.Join(result.State.Steps, ","); got != "a,b" {
		t.Fatalf("expected a,b got %s", got)
	}
	if result.ThreadID == "" {
		t.Fatal("expected generated thread id")
	}
	if result.Interrupt != nil {
		t.Fatal("did not expect interrupt")
	}
}

func TestGraphRoutesConditionally(t *testing.T) {
	t.Parallel()

	g := New[testState]()
	mustAddNode(t, g, "start", func(_ context.Context, s testState) (testState, error) {
		s.Count = 3
		return s, nil
	})
	mustAddNode(t, g, "many", appendStep("many"))
	mustAddNode(t, g, "few", appendStep("few"))

	route := func(s testState) string {
		if s.Count > 2 {
			return "many"
		}
		return "few"
	}
	if err := g.AddConditionalEdges("start", route, map[string]string{
		"many": "many",
		"few":  "few",
	}); err != nil {
		t.Fatal(err)
	}
	mustAddEdge(t, g, "many", END)
	mustAddEdge(t, g, "few", END)
	mustSetEntry(t, g, "start")

	runner, err := g.Compile()
	if err != nil {
		t.Fatal(err)
	}

	result, err := runner.Invoke(context.Background(), testState{}, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(result.State.Steps) != 1 || result.State.Steps[0] != "many" {
		t.Fatalf("expected many branch, got %v", result.State.Steps)
	}
}

func TestCompileRejectsInvalidGraphs(t *testing.T) {
	t.Parallel()

	g := New[testState]()
	if _, err := g.Compile(); err == nil {
		t.Fatal("expected error for empty graph")
	}

	mustAddNode(t, g, "a", appendStep("a"))
	mustSetEntry(t, g, "a")
	if _, err := g.Compile(); err == nil {
		t.Fatal("expected error for node without outgoing edge")
	}

	mustAddEdge(t, g, "a", "missing")
	if _, err := g.Compile(); err == nil {
		t.Fatal("expected error for edge to unknown node")
	}
}

func TestGraphBuilderRejectsDuplicates(t *testing.T) {
	t.Parallel()

	g := New[testState]()
	mustAddNode(t, g, "a", appendStep("a"))

	if err := g.AddNode("a", appendStep("a")); err == nil {
		t.Fatal("expected error for duplicate node")
	}
	if err := g.AddNode(END, appendStep("end")); err == nil {
		t.Fatal("expected error for reserved name")
	}

	mustAddEdge(t, g, "a", END)
	if err := g.AddEdge("a", END); err == nil {
		t.Fatal("expected error for second outgoing edge")
	}
	if err := g.AddEdge("ghost", END); err == nil {
		t.Fatal("expected error for unknown edge source")
	}
}

func TestNodeErrorsCarryNodeName(t *testing.T) {
	t.Parallel()

	g := New[testState]()
	mustAddNode(t, g, "broken", func(_ context.Context, s testState) (testState, error) {
		return s, errors.New("boom")
	})
	mustAddEdge(t, g, "broken", END)
	mustSetEntry(t, g, "broken")

	runner, err := g.Compile()
	if err != nil {
		t.Fatal(err)
	}

	_, err = runner.Invoke(context.Background(), testState{}, "")
	if err == nil || !strings.Contains(err.Error(), `node "broken"`) {
		t.Fatalf("expected node name in error, got %v", err)
	}
}

func mustAddNode(t *testing.T, g *Graph[testState], name string, fn NodeFunc[testState]) {
	t.Helper()
	if err := g.AddNode(name, fn); err != nil {
		t.Fatal(err)
	}
}

func mustAddEdge(t *testing.T, g *Graph[testState], from, to string) {
	t.Helper()
	if err := g.AddEdge(from, to); err != nil {
		t.Fatal(err)
	}
}

func mustSetEntry(t *testing.T, g *Graph[testState], name string) {
	t.Helper()
	if err := g.SetEntryPoint(name); err != nil {
		t.Fatal(err)
	}
}
