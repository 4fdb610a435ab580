package pipeline

import (
	"context"
	"errors"
	"testing"
)

// recorder is the value threaded through test pipelines.
type recorder struct {
	calls []string
}

// appendStep returns a handler that records its name and continues.
func appendStep(name string) Handler[*recorder] {
	return Func(name, func(ctx context.Context, r *recorder, next Next[*recorder]) error {
		r.calls = append(r.calls, name)
		return next(ctx, r)
	})
}

// TestPipelineNew tests the Pipeline constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	p := New[*recorder]()
	if p == nil {
		t.Fatal("expected non-nil pipeline")
	}
	if p.Len() != 0 {
		t.Errorf("expected 0 handlers, got %d", p.Len())
	}
	if p.logger == nil {
		t.Error("expected default logger")
	}
}

// TestPipelineUse tests adding handlers.
func TestPipelineUse(t *testing.T) {
	t.Parallel()

	t.Run("maintains handler order", func(t *testing.T) {
		t.Parallel()

		p := New[*recorder]()
		if err := p.Use(appendStep("first"), appendStep("second")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := p.Use(appendStep("third")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		names := p.Names()
		expected := []string{"first", "second", "third"}
		if len(names) != len(expected) {
			t.Fatalf("expected %v, got %v", expected, names)
		}
		for i, name := range names {
			if name != expected[i] {
				t.Errorf("handler %d: got %q, expected %q", i, name, expected[i])
			}
		}
	})

	t.Run("fails after freeze", func(t *testing.T) {
		t.Parallel()

		p := New[*recorder]()
		p.Freeze()
		if !p.Frozen() {
			t.Error("expected pipeline to be frozen")
		}
		if err := p.Use(appendStep("late")); !errors.Is(err, ErrFrozen) {
			t.Errorf("expected ErrFrozen, got %v", err)
		}
		if p.Len() != 0 {
			t.Errorf("expected no handlers, got %d", p.Len())
		}
	})
}

// TestPipelineRun tests chain execution.
func TestPipelineRun(t *testing.T) {
	t.Parallel()

	t.Run("runs handlers in order then final", func(t *testing.T) {
		t.Parallel()

		p := New[*recorder]()
		_ = p.Use(appendStep("a"), appendStep("b"))

		r := &recorder{}
		err := p.Run(context.Background(), r, func(_ context.Context, r *recorder) error {
			r.calls = append(r.calls, "final")
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"a", "b", "final"}
		if len(r.calls) != len(want) {
			t.Fatalf("expected %v, got %v", want, r.calls)
		}
		for i := range want {
			if r.calls[i] != want[i] {
				t.Errorf("call %d: expected %q, got %q", i, want[i], r.calls[i])
			}
		}
	})

	t.Run("nil final is allowed", func(t *testing.T) {
		t.Parallel()

		p := New[*recorder]()
		_ = p.Use(appendStep("only"))

		r := &recorder{}
		if err := p.Run(context.Background(), r, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(r.calls) != 1 {
			t.Errorf("expected one call, got %v", r.calls)
		}
	})

	t.Run("error halts the chain and names the handler", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		p := New[*recorder]()
		_ = p.Use(
			appendStep("before"),
			Func("failing", func(context.Context, *recorder, Next[*recorder]) error {
				return boom
			}),
			appendStep("after"),
		)

		r := &recorder{}
		finalCalled := false
		err := p.Run(context.Background(), r, func(context.Context, *recorder) error {
			finalCalled = true
			return nil
		})

		if !errors.Is(err, boom) {
			t.Fatalf("expected %v, got %v", boom, err)
		}
		var he *HandlerError
		if !errors.As(err, &he) {
			t.Fatalf("expected *HandlerError, got %T", err)
		}
		if he.Handler != "failing" {
			t.Errorf("expected handler %q, got %q", "failing", he.Handler)
		}
		if len(r.calls) != 1 || r.calls[0] != "before" {
			t.Errorf("expected only the first handler to run, got %v", r.calls)
		}
		if finalCalled {
			t.Error("final should not have been called")
		}
	})

	t.Run("handler may stop without error", func(t *testing.T) {
		t.Parallel()

		p := New[*recorder]()
		_ = p.Use(
			Func("gate", func(context.Context, *recorder, Next[*recorder]) error { return nil }),
			appendStep("after"),
		)

		r := &recorder{}
		if err := p.Run(context.Background(), r, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(r.calls) != 0 {
			t.Errorf("expected no calls after gate, got %v", r.calls)
		}
	})

	t.Run("handler sees downstream result", func(t *testing.T) {
		t.Parallel()

		finalErr := errors.New("final failed")
		var seen error
		p := New[*recorder]()
		_ = p.Use(Func("observer", func(ctx context.Context, r *recorder, next Next[*recorder]) error {
			seen = next(ctx, r)
			return seen
		}))

		err := p.Run(context.Background(), &recorder{}, func(context.Context, *recorder) error {
			return finalErr
		})
		if !errors.Is(seen, finalErr) {
			t.Errorf("expected observer to see %v, got %v", finalErr, seen)
		}
		if err != finalErr {
			t.Errorf("expected final error unchanged, got %v", err)
		}
	})

	t.Run("cancelled context stops before the first handler", func(t *testing.T) {
		t.Parallel()

		p := New[*recorder]()
		_ = p.Use(appendStep("a"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		r := &recorder{}
		if err := p.Run(ctx, r, nil); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(r.calls) != 0 {
			t.Errorf("expected no calls, got %v", r.calls)
		}
	})
}
