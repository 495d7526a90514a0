package pipeline

import (
	"strconv"
	"sync"
	"testing"

	"github.com/aluiziolira/go-scrape-products/models"
)

func TestStoreKeepsInsertionOrder(t *testing.T) {
	store := NewStore()
	for i := 0; i < 3; i++ {
		store.Add(&models.Product{Name: "p" + strconv.Itoa(i)})
	}
	store.Add(nil)

	all := store.All()
	if len(all) != 3 {
		t.Fatalf("len=%d, want 3", len(all))
	}
	for i, p := range all {
		if want := "p" + strconv.Itoa(i); p.Name != want {
			t.Fatalf("all[%d]=%q, want %q", i, p.Name, want)
		}
	}

	all[0] = nil
	if store.All()[0] == nil {
		t.Fatal("All must return a copy")
	}
}

func TestStoreConcurrentAdds(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Add(&models.Product{Name: strconv.Itoa(i), Partial: i%10 == 0})
		}(i)
	}
	wg.Wait()

	if store.Len() != 50 {
		t.Fatalf("len=%d, want 50", store.Len())
	}
	stats := store.Stats()
	if stats["partial_products"] != 5 {
		t.Fatalf("partial=%d, want 5", stats["partial_products"])
	}

	store.Clear()
	if store.Len() != 0 || store.Stats()["partial_products"] != 0 {
		t.Fatalf("store not cleared: %v", store.Stats())
	}
}

func TestErrorLogRecentAndClear(t *testing.T) {
	log := NewErrorLog()
	if got := log.Recent(3); len(got) != 0 {
		t.Fatalf("recent on empty log = %v", got)
	}
	for i := 1; i <= 5; i++ {
		log.Append("e" + strconv.Itoa(i))
	}

	recent := log.Recent(3)
	if len(recent) != 3 || recent[0] != "e3" || recent[2] != "e5" {
		t.Fatalf("recent=%v, want [e3 e4 e5]", recent)
	}
	if got := log.Recent(10); len(got) != 5 {
		t.Fatalf("recent(10) len=%d, want 5", len(got))
	}
	if log.Len() != 5 || len(log.Entries()) != 5 {
		t.Fatalf("len=%d entries=%d, want 5", log.Len(), len(log.Entries()))
	}

	log.Clear()
	if log.Len() != 0 {
		t.Fatalf("len after clear=%d", log.Len())
	}
}
