package directory

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func sample(names ...string) []Retailer {
	out := make([]Retailer, 0, len(names))
	for _, n := range names {
		out = append(out, Retailer{Name: n, Phone: "+14155550100"})
	}
	return out
}

func TestCache_LoadsOnceForConcurrentCallers(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	c := NewCache(CacheOptions{Loader: LoaderFunc(func(ctx context.Context) ([]Retailer, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return sample("A", "B"), nil
	})})

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rs, err := c.GetOrLoad(context.Background())
			if err == nil && len(rs) != 2 {
				err = errors.New("wrong retailer count")
			}
			errs <- err
		}()
	}
	<-started
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected loader to run once, ran %d times", n)
	}
}

func TestCache_TTLAndInvalidate(t *testing.T) {
	now := time.Unix(1700000000, 0)
	var calls int
	c := NewCache(CacheOptions{
		TTL: time.Hour,
		Now: func() time.Time { return now },
		Loader: LoaderFunc(func(context.Context) ([]Retailer, error) {
			calls++
			return sample("A"), nil
		}),
	})
	ctx := context.Background()

	_, _ = c.GetOrLoad(ctx)
	_, _ = c.GetOrLoad(ctx)
	if calls != 1 {
		t.Fatalf("expected cached read, loader ran %d times", calls)
	}
	now = now.Add(time.Hour)
	_, _ = c.GetOrLoad(ctx)
	if calls != 2 {
		t.Fatalf("expected reload after ttl, loader ran %d times", calls)
	}
	c.Invalidate()
	_, _ = c.GetOrLoad(ctx)
	if calls != 3 {
		t.Fatalf("expected reload after invalidate, loader ran %d times", calls)
	}
}

func TestCache_PrefersSnapshot(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "retailers.json"))
	if err := store.Save(context.Background(), sample("From Disk")); err != nil {
		t.Fatalf("save: %v", err)
	}
	c := NewCache(CacheOptions{Store: store, Loader: LoaderFunc(func(context.Context) ([]Retailer, error) {
		t.Fatalf("loader should not run when a snapshot exists")
		return nil, nil
	})})
	rs, err := c.GetOrLoad(context.Background())
	if err != nil || len(rs) != 1 || rs[0].Name != "From Disk" {
		t.Fatalf("unexpected result %v %v", rs, err)
	}
}

func TestCache_SavesLoadedSnapshot(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "retailers.json"))
	c := NewCache(CacheOptions{Store: store, Loader: LoaderFunc(func(context.Context) ([]Retailer, error) {
		return sample("Fresh"), nil
	})})
	if _, err := c.GetOrLoad(context.Background()); err != nil {
		t.Fatalf("get: %v", err)
	}
	rs, err := store.Load(context.Background())
	if err != nil || len(rs) != 1 || rs[0].Name != "Fresh" {
		t.Fatalf("expected snapshot saved, got %v %v", rs, err)
	}
}

func TestCache_WaitTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := NewCache(CacheOptions{
		WaitTimeout: 20 * time.Millisecond,
		Loader: LoaderFunc(func(context.Context) ([]Retailer, error) {
			<-release
			return sample("A"), nil
		}),
	})
	if _, err := c.GetOrLoad(context.Background()); !errors.Is(err, ErrLoadTimeout) {
		t.Fatalf("expected ErrLoadTimeout, got %v", err)
	}
}

func TestCache_LoaderErrorAndMissingLoader(t *testing.T) {
	boom := errors.New("boom")
	c := NewCache(CacheOptions{Loader: LoaderFunc(func(context.Context) ([]Retailer, error) { return nil, boom })})
	if _, err := c.GetOrLoad(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	if _, err := NewCache(CacheOptions{}).GetOrLoad(context.Background()); !errors.Is(err, ErrNoLoader) {
		t.Fatalf("expected ErrNoLoader, got %v", err)
	}
}

func TestFileStore_MissingIsNoSnapshot(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	if _, err := s.Load(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}
