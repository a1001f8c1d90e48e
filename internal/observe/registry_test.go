package observe

import (
	"errors"
	"reflect"
	"testing"
)

type fakeExecution struct {
	starts int
	stops  int
	emit   Emitter[int]
}

func (f *fakeExecution) start(emit Emitter[int]) func() {
	f.starts++
	f.emit = emit
	return func() { f.stops++ }
}

func TestObserveDeduplicatesExecution(t *testing.T) {
	r := NewRegistry[int]()
	exec := &fakeExecution{}

	var got []string
	unsubA := r.Observe("k", Listener[int]{OnData: func(v int) { got = append(got, "a") }}, exec.start)
	unsubB := r.Observe("k", Listener[int]{OnData: func(v int) { got = append(got, "b") }}, exec.start)

	if exec.starts != 1 {
		t.Fatalf("expected one execution, got %d", exec.starts)
	}
	if r.Listeners("k") != 2 {
		t.Fatalf("expected 2 listeners, got %d", r.Listeners("k"))
	}

	exec.emit.Data(1)
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("fan-out order mismatch: %v", got)
	}

	unsubA()
	if exec.stops != 0 {
		t.Fatalf("execution stopped while a listener remains")
	}
	exec.emit.Data(2)
	if !reflect.DeepEqual(got, []string{"a", "b", "b"}) {
		t.Fatalf("removed listener still notified: %v", got)
	}

	unsubB()
	if exec.stops != 1 {
		t.Fatalf("expected stop after last listener, got %d", exec.stops)
	}
	if r.Groups() != 0 {
		t.Fatalf("group not discarded")
	}

	exec.emit.Data(3)
	exec.emit.Error(errors.New("late"))
	if len(got) != 3 {
		t.Fatalf("emission after close should be dropped: %v", got)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	r := NewRegistry[int]()
	exec := &fakeExecution{}

	unsubA := r.Observe("k", Listener[int]{}, exec.start)
	unsubB := r.Observe("k", Listener[int]{}, exec.start)

	unsubA()
	unsubA()
	if r.Listeners("k") != 1 {
		t.Fatalf("double unsubscribe removed another listener")
	}

	unsubB()
	unsubB()
	if exec.stops != 1 {
		t.Fatalf("expected a single stop, got %d", exec.stops)
	}
}

func TestDistinctKeysIndependent(t *testing.T) {
	r := NewRegistry[int]()
	a := &fakeExecution{}
	b := &fakeExecution{}

	unsubA := r.Observe("a", Listener[int]{}, a.start)
	unsubB := r.Observe("b", Listener[int]{}, b.start)
	if a.starts != 1 || b.starts != 1 {
		t.Fatalf("each key should start its own execution")
	}

	unsubA()
	if b.stops != 0 {
		t.Fatalf("stopping one key affected another")
	}
	unsubB()
}

func TestRestartAfterClose(t *testing.T) {
	r := NewRegistry[int]()
	exec := &fakeExecution{}

	unsub := r.Observe("k", Listener[int]{}, exec.start)
	unsub()
	unsub = r.Observe("k", Listener[int]{}, exec.start)
	defer unsub()

	if exec.starts != 2 {
		t.Fatalf("expected a fresh execution after close, got %d starts", exec.starts)
	}
}

func TestErrorsFanOut(t *testing.T) {
	r := NewRegistry[int]()
	exec := &fakeExecution{}

	var errs int
	listener := Listener[int]{OnError: func(error) { errs++ }}
	unsubA := r.Observe("k", listener, exec.start)
	unsubB := r.Observe("k", listener, exec.start)
	defer unsubA()
	defer unsubB()

	exec.emit.Error(errors.New("boom"))
	if errs != 2 {
		t.Fatalf("expected error on both listeners, got %d", errs)
	}
}

func TestUnsubscribeFromCallback(t *testing.T) {
	r := NewRegistry[int]()
	exec := &fakeExecution{}

	var calls int
	var unsub func()
	unsub = r.Observe("k", Listener[int]{OnData: func(int) {
		calls++
		unsub()
	}}, exec.start)

	exec.emit.Data(1)
	exec.emit.Data(2)
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
	if exec.stops != 1 {
		t.Fatalf("expected stop, got %d", exec.stops)
	}
}
