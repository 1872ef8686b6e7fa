package coordinator

import (
	"sync"
	"testing"
	"time"
)

func TestGenerateWorkReleasesWaitingWorkers(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	ran := make([]bool, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			gen, shouldRun := c.WaitForWorkItems(0)
			if gen == 0 {
				t.Errorf("worker %d: expected a generation > 0", idx)
			}
			ran[idx] = shouldRun
			c.OnWorkItemCompleted()
		}(i)
	}

	// Give the workers a moment to park in WaitForWorkItems before releasing
	// them, otherwise this test would be trivially true even with a broken
	// barrier.
	time.Sleep(10 * time.Millisecond)
	c.GenerateWork(3)
	c.WaitForWorkers()
	wg.Wait()

	for i, r := range ran {
		if !r {
			t.Fatalf("worker %d never saw shouldRun=true", i)
		}
	}
}

func TestRequestShutDownUnblocksWaiters(t *testing.T) {
	c := New()

	done := make(chan bool, 1)
	go func() {
		_, shouldRun := c.WaitForWorkItems(0)
		done <- shouldRun
	}()

	time.Sleep(10 * time.Millisecond)
	c.RequestShutDown(StopInterrupt)

	select {
	case shouldRun := <-done:
		if shouldRun {
			t.Fatal("expected shouldRun=false after shutdown")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForWorkItems did not unblock after RequestShutDown")
	}

	if !c.ShouldShutDown() {
		t.Fatal("expected ShouldShutDown to report true")
	}
	if c.StopReason() != StopInterrupt {
		t.Fatalf("expected StopInterrupt, got %v", c.StopReason())
	}
}

func TestResetClearsStopAndGeneration(t *testing.T) {
	c := New()
	c.GenerateWork(1)
	c.RequestShutDown(StopMovetime)

	c.Reset()

	if c.ShouldShutDown() {
		t.Fatal("expected ShouldShutDown to be false after Reset")
	}
	if c.StopReason() != StopNone {
		t.Fatalf("expected StopNone after Reset, got %v", c.StopReason())
	}
}

func TestWaitForWorkersReturnsImmediatelyWhenAlreadyComplete(t *testing.T) {
	c := New()
	c.GenerateWork(0)
	// No workers released; WaitForWorkers must not block forever.
	finished := make(chan struct{})
	go func() {
		c.WaitForWorkers()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("WaitForWorkers blocked with zero released workers")
	}
}
