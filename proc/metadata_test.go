package proc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testAttribution() Attribution {
	return Attribution{UserID: 123, DisplayName: "tester"}
}

func TestReadOrGenerateResolvesOnce(t *testing.T) {
	var calls int32
	resolve := func(ctx context.Context, query string) (TrackMetadata, error) {
		atomic.AddInt32(&calls, 1)
		return TrackMetadata{Title: "resolved " + query, Source: RemoteVideo("vid1")}, nil
	}

	slot := NewPendingSlot("some song", testAttribution(), resolve)

	meta, err := slot.ReadOrGenerate(context.Background())
	if err != nil {
		t.Fatalf("ReadOrGenerate: %v", err)
	}
	if meta.Title != "resolved some song" {
		t.Errorf("Title = %q", meta.Title)
	}

	// Second call reads through without touching the resolver
	if _, err := slot.ReadOrGenerate(context.Background()); err != nil {
		t.Fatalf("second ReadOrGenerate: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("resolver called %d times, want 1", got)
	}

	if !slot.IsResolved() {
		t.Error("slot still pending after resolution")
	}
	if q := slot.ReadQuery(); q != "" {
		t.Errorf("ReadQuery = %q after resolution, want empty", q)
	}
}

func TestSlotNeverPendingAndResolved(t *testing.T) {
	resolve := func(ctx context.Context, query string) (TrackMetadata, error) {
		time.Sleep(time.Millisecond)
		return TrackMetadata{Title: query, Source: RemoteVideo("v")}, nil
	}
	slot := NewPendingSlot("query", testAttribution(), resolve)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = slot.EnsureResolved(context.Background())
		}()
	}

	// Observers must never see metadata while the pending marker remains
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			meta := slot.ReadMetadata()
			if meta != nil && !slot.IsResolved() {
				t.Error("slot observed resolved and pending at once")
				return
			}
		}
	}()

	wg.Wait()
	<-done

	if !slot.IsResolved() {
		t.Fatal("slot not resolved after EnsureResolved calls")
	}
	if slot.ReadMetadata() == nil {
		t.Fatal("no metadata after EnsureResolved")
	}
}

func TestGenerateMissingState(t *testing.T) {
	resolve := func(ctx context.Context, query string) (TrackMetadata, error) {
		return TrackMetadata{}, nil
	}

	t.Run("missing query", func(t *testing.T) {
		slot := NewResolvedSlot(TrackMetadata{Title: "t"}, testAttribution())
		if _, err := slot.Generate(context.Background()); !errors.Is(err, ErrMissingQuery) {
			t.Errorf("err = %v, want ErrMissingQuery", err)
		}
	})

	t.Run("missing attribution", func(t *testing.T) {
		slot := &MetadataSlot{pendingQuery: "q", resolve: resolve}
		if _, err := slot.Generate(context.Background()); !errors.Is(err, ErrMissingAttribution) {
			t.Errorf("err = %v, want ErrMissingAttribution", err)
		}
	})
}

func TestGenerateDoesNotMutate(t *testing.T) {
	resolve := func(ctx context.Context, query string) (TrackMetadata, error) {
		return TrackMetadata{Title: "found"}, nil
	}
	slot := NewPendingSlot("q", testAttribution(), resolve)

	if _, err := slot.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if slot.IsResolved() {
		t.Error("Generate mutated the slot; pending marker cleared")
	}
	if slot.ReadMetadata() != nil {
		t.Error("Generate wrote metadata into the slot")
	}
}

func TestWriteQueryClearsMetadata(t *testing.T) {
	slot := NewResolvedSlot(TrackMetadata{Title: "old"}, testAttribution())
	slot.WriteQuery("new search")

	if slot.IsResolved() {
		t.Error("slot resolved after WriteQuery")
	}
	if slot.ReadMetadata() != nil {
		t.Error("metadata survived WriteQuery")
	}
	if q := slot.ReadQuery(); q != "new search" {
		t.Errorf("ReadQuery = %q", q)
	}
}

func TestEnsureResolvedPropagatesFailure(t *testing.T) {
	wantErr := errors.New("backend down")
	resolve := func(ctx context.Context, query string) (TrackMetadata, error) {
		return TrackMetadata{}, wantErr
	}
	slot := NewPendingSlot("q", testAttribution(), resolve)

	if err := slot.EnsureResolved(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if slot.IsResolved() {
		t.Error("slot resolved despite failure")
	}
}
