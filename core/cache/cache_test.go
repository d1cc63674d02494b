package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestLRU_BasicOperations(t *testing.T) {
	c := NewLRU[string, int](DefaultConfig())

	if _, ok := c.Get("missing"); ok {
		t.Error("Get on empty cache returned ok")
	}
	c.Put("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	c.Put("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("updated Get(a) = %d, want 2", v)
	}
	c.Remove("a")
	if c.Len() != 0 {
		t.Errorf("Len() after Remove = %d", c.Len())
	}
}

func TestLRU_Eviction(t *testing.T) {
	var evicted []string
	c := NewLRU[string, int](Config{
		MaxSize: 2,
		OnEvict: func(key, _ any) { evicted = append(evicted, key.(string)) },
	})
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // b is now least recently used
	c.Put("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Errorf("evicted = %v, want [b]", evicted)
	}
	if s := c.Stats(); s.Evictions != 1 || s.Size != 2 || s.MaxSize != 2 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestLRU_GetOrLoadLoadsOnce(t *testing.T) {
	c := NewLRU[string, string](DefaultConfig())
	var calls int
	var mu sync.Mutex
	load := func() (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return "value", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := c.GetOrLoad("k", load); err != nil || v != "value" {
				t.Errorf("GetOrLoad() = %q, %v", v, err)
			}
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("loader called %d times, want 1", calls)
	}
	if s := c.Stats(); s.Loads != 1 {
		t.Errorf("Stats().Loads = %d, want 1", s.Loads)
	}
}

func TestLRU_GetOrLoadErrorNotCached(t *testing.T) {
	c := NewLRU[string, int](DefaultConfig())
	boom := errors.New("boom")
	if _, err := c.GetOrLoad("k", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("GetOrLoad() error = %v, want boom", err)
	}
	if c.Len() != 0 {
		t.Error("failed load must not be cached")
	}
	v, err := c.GetOrLoad("k", func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("retry GetOrLoad() = %d, %v", v, err)
	}
}

func TestLRU_ClearAndUnlimited(t *testing.T) {
	c := NewLRU[int, int](Config{MaxSize: -1})
	for i := 0; i < 100; i++ {
		c.Put(i, i)
	}
	if c.Len() != 100 {
		t.Errorf("unlimited cache Len() = %d, want 100", c.Len())
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
}

func TestLRU_Concurrency(t *testing.T) {
	c := NewLRU[string, int](Config{MaxSize: 10})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (n+j)%15)
				c.Put(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() > 10 {
		t.Errorf("Len() = %d exceeds MaxSize", c.Len())
	}
}
