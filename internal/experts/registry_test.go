package experts

import (
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/expertmesh/internal/testutil/testlog"
)

func testProvider(id string, caps ...string) Provider {
	return Provider{
		ID: id,
		Spec: Spec{
			Name:            "Expert " + id,
			Specialty:       "testing",
			ProviderAddress: "0x" + id,
			ModelHash:       "Qm" + id,
			Capabilities:    caps,
			Pricing:         Pricing{CostPerCall: 0.5, Currency: CurrencyETH},
		},
		Performance: Performance{SuccessRate: 90, AverageLatencyMS: 100, UserRating: 4.5},
	}
}

func TestRegisterGetAndDefaults(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.SetNowFunc(func() time.Time { return fixed })

	got, err := r.Register(testProvider("expert-python", " Python ", "code_generation", "python"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if got.Status != StatusActive {
		t.Fatalf("expected default active status, got %q", got.Status)
	}
	if !reflect.DeepEqual(got.Capabilities, []string{"python", "code_generation"}) {
		t.Fatalf("capabilities not normalized: %v", got.Capabilities)
	}
	if !got.CreatedAt.Equal(fixed) || !got.UpdatedAt.Equal(fixed) {
		t.Fatalf("unexpected timestamps: %v %v", got.CreatedAt, got.UpdatedAt)
	}

	loaded, err := r.Get("expert-python")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.DominantCapability() != "python" {
		t.Fatalf("unexpected dominant capability %q", loaded.DominantCapability())
	}
}

func TestGetMissingProvider(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	if _, err := r.Get("expert-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.IncrementCallCount("expert-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on increment, got %v", err)
	}
	if _, err := r.SetStatus("expert-missing", StatusInactive); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on set status, got %v", err)
	}
}

func TestRegisterUpsertKeepsOrderAndCalls(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	for _, id := range []string{"expert-a", "expert-b", "expert-c"} {
		if _, err := r.Register(testProvider(id, "python")); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	if _, err := r.IncrementCallCount("expert-a"); err != nil {
		t.Fatalf("increment: %v", err)
	}

	updated := testProvider("expert-a", "poetry")
	updated.Name = "Renamed"
	if _, err := r.Register(updated); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	list := r.List()
	ids := []string{list[0].ID, list[1].ID, list[2].ID}
	if !reflect.DeepEqual(ids, []string{"expert-a", "expert-b", "expert-c"}) {
		t.Fatalf("registration order lost: %v", ids)
	}
	if list[0].Name != "Renamed" || !list[0].HasCapability("poetry") {
		t.Fatalf("upsert did not overwrite: %+v", list[0])
	}
	if list[0].Performance.TotalCalls != 1 {
		t.Fatalf("upsert lost call count: %d", list[0].Performance.TotalCalls)
	}
	if r.Count() != 3 {
		t.Fatalf("unexpected count %d", r.Count())
	}
}

func TestListActiveFiltersStatus(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	_, _ = r.Register(testProvider("expert-a", "python"))
	_, _ = r.Register(testProvider("expert-b", "python"))
	_, _ = r.Register(testProvider("expert-c", "python"))

	if _, err := r.SetStatus("expert-b", StatusUnderReview); err != nil {
		t.Fatalf("set status: %v", err)
	}
	active := r.ListActive()
	if len(active) != 2 || active[0].ID != "expert-a" || active[1].ID != "expert-c" {
		t.Fatalf("unexpected active list: %+v", active)
	}
	if _, err := r.SetStatus("expert-a", Status("gone")); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	_, _ = r.Register(testProvider("expert-a", "python", "code_generation"))

	got, _ := r.Get("expert-a")
	got.Capabilities[0] = "mutated"
	got.Performance.TotalCalls = 99

	again, _ := r.Get("expert-a")
	if again.Capabilities[0] != "python" || again.Performance.TotalCalls != 0 {
		t.Fatalf("registry state leaked through copy: %+v", again)
	}
}

func TestIncrementCallCountConcurrent(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	_, _ = r.Register(testProvider("expert-a", "python"))

	const workers = 32
	const perWorker = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := r.IncrementCallCount("expert-a"); err != nil {
					t.Errorf("increment: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, _ := r.Get("expert-a")
	if got.Performance.TotalCalls != workers*perWorker {
		t.Fatalf("lost increments: got=%d want=%d", got.Performance.TotalCalls, workers*perWorker)
	}
}

func TestRegisterInvalidRecords(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	cases := []Provider{
		testProvider("Expert.Upper", "python"),
		testProvider(".expert", "python"),
		testProvider("expert..a", "python"),
		testProvider("expert-nocaps"),
		func() Provider { p := testProvider("expert-a", "python"); p.Name = " "; return p }(),
		func() Provider { p := testProvider("expert-a", "python"); p.ProviderAddress = ""; return p }(),
		func() Provider { p := testProvider("expert-a", "python"); p.Pricing.CostPerCall = -1; return p }(),
		func() Provider { p := testProvider("expert-a", "python"); p.Pricing.Currency = "DOGE"; return p }(),
		func() Provider { p := testProvider("expert-a", "python"); p.Performance.SuccessRate = 101; return p }(),
		func() Provider { p := testProvider("expert-a", "python"); p.Performance.UserRating = 5.5; return p }(),
		func() Provider {
			p := testProvider("expert-a", "python")
			p.Performance.UserRating = math.NaN()
			return p
		}(),
		func() Provider {
			p := testProvider("expert-a", "python")
			p.Performance.SuccessRate = math.NaN()
			return p
		}(),
		func() Provider { p := testProvider("expert-a", "python"); p.Pricing.CostPerCall = math.NaN(); return p }(),
		func() Provider {
			p := testProvider("expert-a", "python")
			p.Pricing.CostPerCall = math.Inf(1)
			return p
		}(),
	}
	for _, p := range cases {
		if _, err := r.Register(p); !errors.Is(err, ErrInvalidRecord) {
			t.Fatalf("expected ErrInvalidRecord for %+v, got %v", p, err)
		}
	}
	if r.Count() != 0 {
		t.Fatalf("invalid records were stored")
	}
}
