package progress

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/humanmixer/api/internal/model"
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "progress.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestInitAndGet(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	if err := store.Init(ctx, "session-a"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	state, err := store.Get(ctx, "session-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if state.Status != model.StatusPending {
		t.Errorf("status: got %s, want pending", state.Status)
	}
	if state.Progress != 0 {
		t.Errorf("progress: got %v, want 0", state.Progress)
	}
}

func TestGetUnknownSession(t *testing.T) {
	store, _ := openStore(t)

	state, err := store.Get(context.Background(), "never-created")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if state.Status != model.StatusNotFound {
		t.Errorf("status: got %s, want not_found", state.Status)
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	if err := store.Init(ctx, "s"); err != nil {
		t.Fatal(err)
	}
	for _, p := range []float64{0.1, 0.4, 0.8} {
		if err := store.SetProgress(ctx, "s", model.StatusRunning, p); err != nil {
			t.Fatalf("SetProgress(%v): %v", p, err)
		}
	}

	// A stale lower write must not lower the stored value
	if err := store.SetProgress(ctx, "s", model.StatusRunning, 0.2); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	state, _ := store.Get(ctx, "s")
	if state.Progress != 0.8 {
		t.Errorf("progress went backwards: got %v, want 0.8", state.Progress)
	}
}

func TestFailFreezesProgress(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	store.Init(ctx, "s")
	store.SetProgress(ctx, "s", model.StatusRunning, 0.4)

	if err := store.Fail(ctx, "s", "model exploded"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	state, _ := store.Get(ctx, "s")
	if state.Status != model.StatusFailed {
		t.Errorf("status: got %s, want failed", state.Status)
	}
	if state.Progress != 0.4 {
		t.Errorf("progress was not frozen: got %v, want 0.4", state.Progress)
	}
	if state.Error != "model exploded" {
		t.Errorf("error: got %q", state.Error)
	}
}

func TestFailedSessionIsNotResurrected(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	store.Init(ctx, "s")
	store.Fail(ctx, "s", "cancelled by user")

	err := store.SetProgress(ctx, "s", model.StatusRunning, 0.5)
	if !errors.Is(err, ErrNotWritable) {
		t.Errorf("SetProgress after Fail: got %v, want ErrNotWritable", err)
	}

	err = store.Complete(ctx, "s")
	if !errors.Is(err, ErrNotWritable) {
		t.Errorf("Complete after Fail: got %v, want ErrNotWritable", err)
	}

	state, _ := store.Get(ctx, "s")
	if state.Status != model.StatusFailed {
		t.Errorf("status changed after terminal failure: %s", state.Status)
	}
}

func TestCompletedSessionCannotBeFailed(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	store.Init(ctx, "s")
	store.SetProgress(ctx, "s", model.StatusRunning, 0.95)
	if err := store.Complete(ctx, "s"); err != nil {
		t.Fatal(err)
	}

	// A cancel that lost the race against Complete must not flip the
	// session; its stems are already final.
	err := store.Fail(ctx, "s", "cancelled by user")
	if !errors.Is(err, ErrNotWritable) {
		t.Errorf("Fail after Complete: got %v, want ErrNotWritable", err)
	}

	state, _ := store.Get(ctx, "s")
	if state.Status != model.StatusCompleted || state.Progress != 1.0 {
		t.Errorf("completed state overwritten: %+v", state)
	}
	if state.Error != "" {
		t.Errorf("completed session picked up an error: %q", state.Error)
	}
}

func TestComplete(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	store.Init(ctx, "s")
	store.SetProgress(ctx, "s", model.StatusRunning, 0.95)
	if err := store.Complete(ctx, "s"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	state, _ := store.Get(ctx, "s")
	if state.Status != model.StatusCompleted {
		t.Errorf("status: got %s, want completed", state.Status)
	}
	if state.Progress != 1.0 {
		t.Errorf("completed session must report progress 1.0, got %v", state.Progress)
	}
}

func TestStateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()

	store.Init(ctx, "s")
	store.SetProgress(ctx, "s", model.StatusRunning, 0.8)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	state, err := reopened.Get(ctx, "s")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if state.Status != model.StatusRunning || state.Progress != 0.8 {
		t.Errorf("state lost across reopen: %+v", state)
	}
}

func TestDelete(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	store.Init(ctx, "s")
	if err := store.Delete(ctx, "s"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	state, _ := store.Get(ctx, "s")
	if state.Status != model.StatusNotFound {
		t.Errorf("deleted session still present: %s", state.Status)
	}
}

func TestConcurrentSessionsDoNotInteract(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	const sessions = 20
	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		id := fmt.Sprintf("session-%d", i)
		if err := store.Init(ctx, id); err != nil {
			t.Fatal(err)
		}
		wg.Add(1)
		go func(id string, final float64) {
			defer wg.Done()
			for p := 0.1; p <= final+1e-9; p += 0.1 {
				if err := store.SetProgress(ctx, id, model.StatusRunning, p); err != nil {
					t.Errorf("%s: SetProgress: %v", id, err)
					return
				}
			}
		}(id, float64(i%10+1)/10)
	}
	wg.Wait()

	for i := 0; i < sessions; i++ {
		id := fmt.Sprintf("session-%d", i)
		want := float64(i%10+1) / 10
		state, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get %s: %v", id, err)
		}
		if state.Progress < want-1e-6 || state.Progress > want+1e-6 {
			t.Errorf("%s: progress %v, want %v", id, state.Progress, want)
		}
	}
}
