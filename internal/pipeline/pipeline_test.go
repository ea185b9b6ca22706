package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/tabcollate/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, visit *model.Visit) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, visit *model.Visit) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, visit)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func newVisit() *model.Visit {
	return model.NewVisit("https://example.test/stats",
		model.NewSelection(model.Choice{Axis: "Year", Value: "2020"}),
		"State", "TX", "Status")
}

// TestPipelineNew tests the Pipeline constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()

		if p == nil {
			t.Fatal("expected non-nil pipeline")
		}
		if len(p.steps) != 0 {
			t.Errorf("expected 0 steps, got %d", len(p.steps))
		}
		if p.logger == nil {
			t.Error("expected the default logger")
		}
	})
}

// TestPipelineAddSteps tests adding steps to the pipeline.
func TestPipelineAddSteps(t *testing.T) {
	t.Parallel()

	t.Run("adds multiple steps with AddSteps", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddSteps(&mockStep{name: "step-1"}, &mockStep{name: "step-2"}, &mockStep{name: "step-3"})

		if len(p.steps) != 3 {
			t.Errorf("expected 3 steps, got %d", len(p.steps))
		}
	})

	t.Run("maintains step order", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddSteps(&mockStep{name: "first"})
		p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

		expected := []string{"first", "second", "third"}
		for i, step := range p.steps {
			if step.Name() != expected[i] {
				t.Errorf("step %d: got %q, expected %q", i, step.Name(), expected[i])
			}
		}
	})
}

// TestPipelineExecute tests pipeline execution.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		executionOrder := make([]string, 0)
		record := func(name string) func(context.Context, *model.Visit) error {
			return func(context.Context, *model.Visit) error {
				executionOrder = append(executionOrder, name)
				return nil
			}
		}

		p := New()
		p.AddSteps(
			&mockStep{name: "step-1", doFunc: record("step-1")},
			&mockStep{name: "step-2", doFunc: record("step-2")},
		)

		if err := p.Execute(context.Background(), newVisit()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(executionOrder) != 2 || executionOrder[0] != "step-1" || executionOrder[1] != "step-2" {
			t.Errorf("wrong execution order: %v", executionOrder)
		}
	})

	t.Run("stops on first error and records it", func(t *testing.T) {
		t.Parallel()

		expectedErr := errors.New("step failed")
		second := &mockStep{name: "should-not-run"}

		p := New()
		p.AddSteps(&mockStep{
			name: "failing-step",
			doFunc: func(context.Context, *model.Visit) error {
				return expectedErr
			},
		}, second)

		visit := newVisit()
		err := p.Execute(context.Background(), visit)

		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if !errors.Is(visit.Err, expectedErr) {
			t.Errorf("expected visit.Err to be %v, got %v", expectedErr, visit.Err)
		}
		if second.callCount != 0 {
			t.Error("second step should not have been called")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		step := &mockStep{name: "should-not-run"}
		p := New()
		p.AddSteps(step)

		visit := newVisit()
		err := p.Execute(ctx, visit)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("step should not have been called")
		}
		if visit.State.IsTerminal() {
			t.Errorf("cancelled visit reached terminal state %q", visit.State)
		}
	})
}
