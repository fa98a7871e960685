package guard

import (
	"sync"
	"testing"
)

// TestEnterExit tests the basic guard lifecycle on one goroutine.
func TestEnterExit(t *testing.T) {
	if Active() {
		t.Fatal("guard active before Enter")
	}

	Enter()
	if !Active() {
		t.Fatal("guard inactive after Enter")
	}

	Exit()
	if Active() {
		t.Fatal("guard still active after Exit")
	}
}

// TestNesting tests that nested Enter calls stack and the guard stays
// active until the outermost Exit.
func TestNesting(t *testing.T) {
	Enter()
	Enter()
	Enter()

	Exit()
	if !Active() {
		t.Fatal("guard released by inner Exit")
	}
	Exit()
	if !Active() {
		t.Fatal("guard released before outermost Exit")
	}
	Exit()
	if Active() {
		t.Fatal("guard still active after balanced exits")
	}
}

// TestExitWithoutEnter tests that an unbalanced Exit panics instead of
// silently corrupting depth tracking.
func TestExitWithoutEnter(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Exit without Enter did not panic")
		}
	}()
	Exit()
}

// TestPerGoroutineIsolation tests that one goroutine holding the guard
// does not make it active for any other goroutine.
func TestPerGoroutineIsolation(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		Enter()
		defer Exit()
		close(entered)
		<-release
	}()

	<-entered
	if Active() {
		t.Error("guard held by another goroutine reported active here")
	}
	close(release)
	<-done
}

// TestConcurrentGuards exercises many goroutines entering and exiting
// at once; each must observe only its own depth.
func TestConcurrentGuards(t *testing.T) {
	const goroutines = 32
	const rounds = 200

	var wg sync.WaitGroup
	errs := make(chan string, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				Enter()
				if !Active() {
					errs <- "inactive inside own Enter"
					Exit()
					return
				}
				Enter()
				Exit()
				Exit()
				if Active() {
					errs <- "active after balanced exits"
					return
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}
