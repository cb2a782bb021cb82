package cache

import (
	"testing"
	"time"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := New(4, 0)
	c.Set("a", 1)
	v, ok := c.Get("a")
	if !ok || v.(int) != 1 {
		t.Fatal("expected cached value")
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("missing key should not be found")
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // refresh a
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should survive, it was used most recently")
	}
}

func TestTTLExpiry(t *testing.T) {
	now := time.Now()
	c := New(4, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("fresh entry should be present")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expired entry should be dropped")
	}
	if c.Len() != 0 {
		t.Fatal("expired entry should be removed on read")
	}
}

func TestInvalidateByTag(t *testing.T) {
	c := New(8, 0)
	c.Set("q1", "r1", "session:s1")
	c.Set("q2", "r2", "session:s1")
	c.Set("q3", "r3", "session:s2")

	if n := c.InvalidateByTag("session:s1"); n != 2 {
		t.Fatalf("expected 2 invalidated, got %d", n)
	}
	if _, ok := c.Get("q1"); ok {
		t.Fatal("tagged entry should be gone")
	}
	if _, ok := c.Get("q3"); !ok {
		t.Fatal("other tag should be untouched")
	}
}

func TestOverwriteReplacesEntry(t *testing.T) {
	c := New(2, 0)
	c.Set("a", 1, "t")
	c.Set("a", 2)
	v, _ := c.Get("a")
	if v.(int) != 2 {
		t.Fatal("overwrite should replace the value")
	}
	if n := c.InvalidateByTag("t"); n != 0 {
		t.Fatal("old tags should not survive overwrite")
	}
}
