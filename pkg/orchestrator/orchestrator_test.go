package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dexlens/dexlens/pkg/chain"
	"github.com/dexlens/dexlens/pkg/pricedb"
	"github.com/dexlens/dexlens/pkg/pricedb/dao"
	"github.com/dexlens/dexlens/pkg/pricesource"
)

type fakeSource struct {
	chainID uint64
	obs     []pricesource.Observation
	err     error
	calls   int
}

func (f *fakeSource) ChainID() uint64 { return f.chainID }

func (f *fakeSource) Fetch(_ context.Context, _ []pricesource.Token, _ time.Time) ([]pricesource.Observation, error) {
	f.calls++
	return f.obs, f.err
}

type fakeStore struct {
	tokens   map[uint64][]dao.TokenDao
	stored   map[pricedb.Granularity][]pricesource.Observation
	listErr  error
	storeErr map[pricedb.Granularity]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tokens: make(map[uint64][]dao.TokenDao),
		stored: make(map[pricedb.Granularity][]pricesource.Observation),
	}
}

func (f *fakeStore) ListTokens(_ context.Context, chainID uint64) ([]dao.TokenDao, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tokens[chainID], nil
}

func (f *fakeStore) StoreSeries(_ context.Context, g pricedb.Granularity, observations []pricesource.Observation) (int, error) {
	if err := f.storeErr[g]; err != nil {
		return 0, err
	}
	f.stored[g] = append(f.stored[g], observations...)
	return len(observations), nil
}

func testRegistry(t *testing.T, ids ...uint64) *chain.Registry {
	t.Helper()
	networks := make([]chain.Network, 0, len(ids))
	for _, id := range ids {
		networks = append(networks, chain.Network{
			ChainID:       id,
			Name:          "net",
			Capability:    chain.CapabilitySubgraph,
			StableAddress: "0xstable",
			SubgraphURL:   "http://localhost/subgraph",
		})
	}
	registry, err := chain.NewRegistry(networks)
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}
	return registry
}

func TestRunCycle_StoresAllGranularities(t *testing.T) {
	store := newFakeStore()
	store.tokens[1] = []dao.TokenDao{{ID: 10, ChainID: 1, Address: "0xaaa", Decimals: 18}}

	obs := []pricesource.Observation{
		{TokenID: 10, ChainID: 1, Address: "0xaaa", Value: decimal.RequireFromString("2.5")},
	}
	source := &fakeSource{chainID: 1, obs: obs}

	o := New(testRegistry(t, 1), map[uint64]pricesource.Source{1: source}, store, zap.NewNop())

	if err := o.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() failed: %v", err)
	}

	for _, g := range pricedb.Granularities {
		got := store.stored[g]
		if len(got) != 1 {
			t.Fatalf("granularity %s: expected 1 observation, got %d", g, len(got))
		}
		if got[0].TokenID != 10 {
			t.Errorf("granularity %s: expected token 10, got %d", g, got[0].TokenID)
		}
	}
}

func TestRunCycle_ChainFailureIsolated(t *testing.T) {
	store := newFakeStore()
	store.tokens[1] = []dao.TokenDao{{ID: 10, ChainID: 1, Address: "0xaaa", Decimals: 18}}
	store.tokens[2] = []dao.TokenDao{{ID: 20, ChainID: 2, Address: "0xbbb", Decimals: 18}}

	bad := &fakeSource{chainID: 1, err: errors.New("subgraph down")}
	good := &fakeSource{chainID: 2, obs: []pricesource.Observation{
		{TokenID: 20, ChainID: 2, Address: "0xbbb", Value: decimal.NewFromInt(7)},
	}}

	o := New(testRegistry(t, 1, 2),
		map[uint64]pricesource.Source{1: bad, 2: good}, store, zap.NewNop())

	if err := o.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() failed: %v", err)
	}

	got := store.stored[pricedb.Minute]
	if len(got) != 1 || got[0].TokenID != 20 {
		t.Fatalf("expected only the healthy chain's observation, got %+v", got)
	}
}

func TestRunCycle_WriteFailureIsolatedPerGranularity(t *testing.T) {
	store := newFakeStore()
	store.tokens[1] = []dao.TokenDao{{ID: 10, ChainID: 1, Address: "0xaaa", Decimals: 18}}
	store.storeErr = map[pricedb.Granularity]error{pricedb.Hour: errors.New("write timeout")}

	source := &fakeSource{chainID: 1, obs: []pricesource.Observation{
		{TokenID: 10, ChainID: 1, Address: "0xaaa", Value: decimal.NewFromInt(3)},
	}}

	o := New(testRegistry(t, 1), map[uint64]pricesource.Source{1: source}, store, zap.NewNop())

	if err := o.RunCycle(context.Background()); err == nil {
		t.Fatal("expected an error when a granularity write fails")
	}

	for _, g := range []pricedb.Granularity{pricedb.Minute, pricedb.Day} {
		if len(store.stored[g]) != 1 {
			t.Errorf("granularity %s: expected 1 observation despite the hour failure, got %d", g, len(store.stored[g]))
		}
	}
	if len(store.stored[pricedb.Hour]) != 0 {
		t.Errorf("expected no hour rows, got %d", len(store.stored[pricedb.Hour]))
	}
}

func TestRunCycle_SkipsWhenAlreadyRunning(t *testing.T) {
	store := newFakeStore()
	store.tokens[1] = []dao.TokenDao{{ID: 10, ChainID: 1, Address: "0xaaa", Decimals: 18}}
	source := &fakeSource{chainID: 1}

	o := New(testRegistry(t, 1), map[uint64]pricesource.Source{1: source}, store, zap.NewNop())
	o.running.Store(true)

	if err := o.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() failed: %v", err)
	}
	if source.calls != 0 {
		t.Errorf("expected overlapping cycle to be skipped, source fetched %d times", source.calls)
	}
	if len(store.stored[pricedb.Minute]) != 0 {
		t.Error("expected no writes from a skipped cycle")
	}
}

func TestRunCycle_NoTokensSkipsFetch(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{chainID: 1}

	o := New(testRegistry(t, 1), map[uint64]pricesource.Source{1: source}, store, zap.NewNop())

	if err := o.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() failed: %v", err)
	}
	if source.calls != 0 {
		t.Errorf("expected no fetch for an empty token inventory, got %d calls", source.calls)
	}
}

func TestScheduler_RunsAndStops(t *testing.T) {
	ran := make(chan struct{}, 10)
	job := Job{
		Name:     "test",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		},
	}

	s := NewScheduler([]Job{job}, zap.NewNop())
	s.Start()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job did not run within a second")
	}

	s.Stop()
}

func TestScheduler_StopTwiceIsSafe(t *testing.T) {
	job := Job{
		Name:     "test",
		Interval: time.Hour,
		Run:      func(ctx context.Context) error { return nil },
	}

	s := NewScheduler([]Job{job}, zap.NewNop())
	s.Start()

	s.Stop()
	s.Stop()
}
