package imagemap

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"merchbatch/internal/services"
)

func TestResolveFallsBackToOriginal(t *testing.T) {
	r := New()
	if got := r.Resolve("designs/a.png"); got != "designs/a.png" {
		t.Fatalf("expected original path, got %q", got)
	}
}

func TestSubmitLastWriteWins(t *testing.T) {
	r := New()
	if err := r.Submit("a.png", "/uploads/a1.png"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := r.Submit("a.png", "/uploads/a2.png"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := r.Resolve("a.png"); got != "/uploads/a2.png" {
		t.Fatalf("expected latest mapping, got %q", got)
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 mapping, got %d", r.Len())
	}
	copied := r.Mappings()
	copied["a.png"] = "mutated"
	if got := r.Resolve("a.png"); got != "/uploads/a2.png" {
		t.Fatalf("Mappings returned shared map, resolve=%q", got)
	}
}

func TestResolveReturnsSubmittedPathUnchanged(t *testing.T) {
	r := New()
	if err := r.Submit(" designs/a.png ", " /uploads/a b.png "); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := r.Resolve("designs/a.png"); got != " /uploads/a b.png " {
		t.Fatalf("expected resolved path as submitted, got %q", got)
	}
}

func TestSubmitRejectsBlank(t *testing.T) {
	r := New()
	for _, pair := range [][2]string{{"", "x"}, {"x", " "}} {
		if err := r.Submit(pair[0], pair[1]); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("Submit(%q, %q) expected validation error, got %v", pair[0], pair[1], err)
		}
	}
}

func TestConcurrentSubmitAndResolve(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := range 100 {
				_ = r.Submit(fmt.Sprintf("k%d", j), fmt.Sprintf("v%d-%d", i, j))
			}
		}()
		go func() {
			defer wg.Done()
			for j := range 100 {
				_ = r.Resolve(fmt.Sprintf("k%d", j))
			}
		}()
	}
	wg.Wait()
	if r.Len() != 100 {
		t.Fatalf("expected 100 mappings, got %d", r.Len())
	}
}
