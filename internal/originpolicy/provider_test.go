package originpolicy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/R3E-Network/origin-gateway/internal/logging"
)

type failingSource struct {
	err error
}

func (s failingSource) Name() string { return "failing" }

func (s failingSource) Load(context.Context) (*string, error) {
	return nil, s.err
}

func testLogger() *logging.Logger {
	return logging.New("test", "error", "json")
}

func TestProviderSeedsDefaults(t *testing.T) {
	p := NewProvider(StaticSource{}, DefaultOrigins, testLogger())

	if got := p.Current(); !reflect.DeepEqual(got, DefaultOrigins) {
		t.Errorf("Current() before reload = %v, want defaults %v", got, DefaultOrigins)
	}
	if got := p.Snapshot().Source; got != "defaults" {
		t.Errorf("Snapshot().Source = %q, want %q", got, "defaults")
	}
}

func TestProviderReloadStatic(t *testing.T) {
	raw := "https://app.example.com, https://admin.example.com"
	p := NewProvider(StaticSource{Raw: &raw}, DefaultOrigins, testLogger())

	snapshot, err := p.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	want := AllowList{"https://app.example.com", "https://admin.example.com"}
	if !reflect.DeepEqual(snapshot.List, want) {
		t.Errorf("snapshot list = %v, want %v", snapshot.List, want)
	}
	if !reflect.DeepEqual(p.Current(), want) {
		t.Errorf("Current() = %v, want %v", p.Current(), want)
	}
	if snapshot.Source != "static" {
		t.Errorf("snapshot source = %q, want %q", snapshot.Source, "static")
	}
	if snapshot.LoadedAt.IsZero() {
		t.Error("snapshot LoadedAt is zero")
	}
}

func TestProviderReloadAbsentFallsBackToDefaults(t *testing.T) {
	p := NewProvider(StaticSource{Raw: nil}, DefaultOrigins, testLogger())

	if _, err := p.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := p.Current(); !reflect.DeepEqual(got, DefaultOrigins) {
		t.Errorf("Current() = %v, want defaults %v", got, DefaultOrigins)
	}
}

func TestProviderReloadEmptyDeniesAll(t *testing.T) {
	raw := ""
	p := NewProvider(StaticSource{Raw: &raw}, DefaultOrigins, testLogger())

	if _, err := p.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := p.Current(); len(got) != 0 {
		t.Errorf("Current() = %v, want empty list", got)
	}
}

func TestProviderReloadErrorKeepsCurrentList(t *testing.T) {
	raw := "https://app.example.com"
	p := NewProvider(StaticSource{Raw: &raw}, DefaultOrigins, testLogger())
	if _, err := p.Reload(context.Background()); err != nil {
		t.Fatalf("initial Reload() error = %v", err)
	}
	before := p.Current()

	p.source = failingSource{err: errors.New("store unavailable")}
	snapshot, err := p.Reload(context.Background())
	if err == nil {
		t.Fatal("Reload() with failing source returned nil error")
	}
	if !reflect.DeepEqual(snapshot.List, before) {
		t.Errorf("snapshot after failed reload = %v, want previous %v", snapshot.List, before)
	}
	if !reflect.DeepEqual(p.Current(), before) {
		t.Errorf("Current() after failed reload = %v, want previous %v", p.Current(), before)
	}
}

func TestProviderSwapIsVisibleToConcurrentReaders(t *testing.T) {
	raw := "https://old.example.com"
	p := NewProvider(StaticSource{Raw: &raw}, DefaultOrigins, testLogger())
	if _, err := p.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// Every observed list must be one of the two complete
				// snapshots, never a partial state.
				list := p.Current()
				s := list.String()
				if s != "https://old.example.com" && s != "https://new.example.com" {
					t.Errorf("observed partial allowlist %q", s)
					return
				}
			}
		}()
	}

	raw2 := "https://new.example.com"
	p.source = StaticSource{Raw: &raw2}
	if _, err := p.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	close(stop)
	wg.Wait()

	if got := p.Current().String(); got != "https://new.example.com" {
		t.Errorf("Current() after swap = %q", got)
	}
}

func TestProviderWatchPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "origins.txt")
	if err := os.WriteFile(path, []byte("https://one.example.com"), 0o600); err != nil {
		t.Fatal(err)
	}

	p := NewProvider(FileSource{Path: path}, DefaultOrigins, testLogger())
	if _, err := p.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Watch(ctx, 5*time.Millisecond)
	}()

	if err := os.WriteFile(path, []byte("https://two.example.com"), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.Current().Contains("https://two.example.com") {
			cancel()
			<-done
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Watch never picked up the updated file")
}

func TestProviderWatchZeroIntervalReturns(t *testing.T) {
	p := NewProvider(StaticSource{}, DefaultOrigins, testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Watch(context.Background(), 0)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch with zero interval did not return")
	}
}
