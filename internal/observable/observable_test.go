package observable

import (
	"sync"
	"testing"
)

func TestSubscribeEmitsCurrentThenUpdates(t *testing.T) {
	v := New(1)

	ch, cancel := v.Subscribe()
	defer cancel()

	if got := <-ch; got != 1 {
		t.Fatalf("expected initial value 1, got %d", got)
	}

	v.Set(2)
	if got := <-ch; got != 2 {
		t.Fatalf("expected updated value 2, got %d", got)
	}
}

func TestSlowSubscriberSeesLatest(t *testing.T) {
	v := New(0)

	ch, cancel := v.Subscribe()
	defer cancel()
	<-ch

	v.Set(1)
	v.Set(2)
	v.Set(3)

	if got := <-ch; got != 3 {
		t.Fatalf("expected latest value 3, got %d", got)
	}
}

func TestUpdateIsAtomic(t *testing.T) {
	v := New(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.Update(func(n int) int { return n + 1 })
		}()
	}
	wg.Wait()

	if got := v.Get(); got != 50 {
		t.Fatalf("expected 50 increments, got %d", got)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	v := New("a")

	ch, cancel := v.Subscribe()
	<-ch
	cancel()
	cancel() // second cancel is a no-op

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after cancel")
	}

	v.Set("b") // must not panic on the removed subscriber
}
