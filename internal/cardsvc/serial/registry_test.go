package serial_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/avvvet/cardbot-services/internal/cardsvc/catalog"
	"github.com/avvvet/cardbot-services/internal/cardsvc/models"
	"github.com/avvvet/cardbot-services/internal/cardsvc/serial"
)

type fakeLedger struct {
	mu      sync.Mutex
	serials map[string]struct{}
	scans   int
	err     error
}

func newFakeLedger(existing ...string) *fakeLedger {
	l := &fakeLedger{serials: make(map[string]struct{})}
	for _, s := range existing {
		l.serials[s] = struct{}{}
	}
	return l
}

func (l *fakeLedger) Serials(ctx context.Context) (map[string]struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scans++
	if l.err != nil {
		return nil, l.err
	}
	out := make(map[string]struct{}, len(l.serials))
	for s := range l.serials {
		out[s] = struct{}{}
	}
	return out, nil
}

func (l *fakeLedger) add(s string) {
	l.mu.Lock()
	l.serials[s] = struct{}{}
	l.mu.Unlock()
}

func newRegistry(t *testing.T, ledger serial.Ledger, opts ...serial.Option) *serial.Registry {
	t.Helper()
	r, err := serial.NewRegistry(context.Background(), catalog.DefaultCodes(), ledger, opts...)
	require.NoError(t, err)
	return r
}

func TestNext_SequentialForOneKey(t *testing.T) {
	r := newRegistry(t, newFakeLedger())
	ctx := context.Background()

	var got []string
	for i := 0; i < 3; i++ {
		s, err := r.Next(ctx, "Kira Ryosuke", models.Uncommon, "Matsukaze Kokuo High")
		require.NoError(t, err)
		got = append(got, s)
	}
	assert.Equal(t, []string{"MTKZ-UC-KIRY-1", "MTKZ-UC-KIRY-2", "MTKZ-UC-KIRY-3"}, got)
}

func TestNext_KeysCountIndependently(t *testing.T) {
	r := newRegistry(t, newFakeLedger())
	ctx := context.Background()

	a, err := r.Next(ctx, "Isagi Yoichi", models.Common, "Ichinan High")
	require.NoError(t, err)
	b, err := r.Next(ctx, "Isagi Yoichi", models.Legendary, "Samurai Blue")
	require.NoError(t, err)

	assert.Equal(t, "ICHI-CM-ISYO-1", a)
	assert.Equal(t, "JFA-LG-ISYO-1", b)
}

func TestNext_SkipsSerialsAlreadyInLedger(t *testing.T) {
	// counter starts at zero after a restart; the ledger already holds 1 and 2
	ledger := newFakeLedger("ICHI-CM-ISYO-1", "ICHI-CM-ISYO-2", "ICHI-CM-ISYO-4")
	r := newRegistry(t, ledger)
	ctx := context.Background()

	s, err := r.Next(ctx, "Isagi Yoichi", models.Common, "Ichinan High")
	require.NoError(t, err)
	assert.Equal(t, "ICHI-CM-ISYO-3", s)

	s, err = r.Next(ctx, "Isagi Yoichi", models.Common, "Ichinan High")
	require.NoError(t, err)
	assert.Equal(t, "ICHI-CM-ISYO-5", s)
}

func TestNext_DistinctKeysRenderingTheSamePrefixNeverCollide(t *testing.T) {
	r := newRegistry(t, newFakeLedger())
	ctx := context.Background()

	// both characters are unknown to the code tables and render as UNKN
	a, err := r.Next(ctx, "Chigiri Hyoma", models.Rare, "Ichinan High")
	require.NoError(t, err)
	b, err := r.Next(ctx, "Barou Shoei", models.Rare, "Ichinan High")
	require.NoError(t, err)

	assert.Equal(t, "ICHI-RA-UNKN-1", a)
	assert.Equal(t, "ICHI-RA-UNKN-2", b)
}

func TestNext_RescansLedgerEveryCallByDefault(t *testing.T) {
	ledger := newFakeLedger()
	r := newRegistry(t, ledger)
	ctx := context.Background()

	_, err := r.Next(ctx, "Kira Ryosuke", models.Uncommon, "Matsukaze Kokuo High")
	require.NoError(t, err)

	// another process persisted the next serial behind our back
	ledger.add("MTKZ-UC-KIRY-2")
	s, err := r.Next(ctx, "Kira Ryosuke", models.Uncommon, "Matsukaze Kokuo High")
	require.NoError(t, err)
	assert.Equal(t, "MTKZ-UC-KIRY-3", s)
}

func TestNext_SnapshotCacheRefreshesOnInvalidate(t *testing.T) {
	ledger := newFakeLedger()
	r := newRegistry(t, ledger, serial.WithSnapshotCache())
	ctx := context.Background()
	scansAfterInit := ledger.scans

	_, err := r.Next(ctx, "Kira Ryosuke", models.Uncommon, "Matsukaze Kokuo High")
	require.NoError(t, err)
	assert.Equal(t, scansAfterInit, ledger.scans, "cached snapshot must not rescan")

	ledger.add("MTKZ-UC-KIRY-2")
	r.Invalidate()
	s, err := r.Next(ctx, "Kira Ryosuke", models.Uncommon, "Matsukaze Kokuo High")
	require.NoError(t, err)
	assert.Equal(t, "MTKZ-UC-KIRY-3", s)
	assert.Equal(t, scansAfterInit+1, ledger.scans)
}

func TestObserve_UpdatesCachedSnapshot(t *testing.T) {
	ledger := newFakeLedger()
	r := newRegistry(t, ledger, serial.WithSnapshotCache())
	r.Observe("NEL-MY-NAGI-1")

	s, err := r.Next(context.Background(), "Nagi Seishiro", models.Mythic, "Neo Egoist League")
	require.NoError(t, err)
	assert.Equal(t, "NEL-MY-NAGI-2", s)
}

func TestOutstanding_PrunedOncePersisted(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	r := newRegistry(t, ledger, serial.WithSnapshotCache())

	first, err := r.Next(ctx, "Kira Ryosuke", models.Uncommon, "Matsukaze Kokuo High")
	require.NoError(t, err)
	second, err := r.Next(ctx, "Kira Ryosuke", models.Uncommon, "Matsukaze Kokuo High")
	require.NoError(t, err)
	assert.Equal(t, 2, r.Outstanding())

	ledger.add(first)
	r.Observe(first)
	assert.Equal(t, 1, r.Outstanding())

	// a rescan drops serials another writer persisted
	ledger.add(second)
	r.Invalidate()
	third, err := r.Next(ctx, "Kira Ryosuke", models.Uncommon, "Matsukaze Kokuo High")
	require.NoError(t, err)
	assert.Equal(t, "MTKZ-UC-KIRY-3", third)
	assert.Equal(t, 1, r.Outstanding())

	// the unclaimed third serial is still never handed out again
	fourth, err := r.Next(ctx, "Kira Ryosuke", models.Uncommon, "Matsukaze Kokuo High")
	require.NoError(t, err)
	assert.Equal(t, "MTKZ-UC-KIRY-4", fourth)
	assert.Equal(t, 2, r.Outstanding())
}

func TestNext_LedgerErrorFailsIssuance(t *testing.T) {
	ledger := newFakeLedger()
	r := newRegistry(t, ledger)
	ledger.err = errors.New("disk gone")

	_, err := r.Next(context.Background(), "Kira Ryosuke", models.Uncommon, "Matsukaze Kokuo High")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

func TestNewRegistry_LedgerErrorFails(t *testing.T) {
	ledger := newFakeLedger()
	ledger.err = errors.New("unreadable")
	_, err := serial.NewRegistry(context.Background(), catalog.DefaultCodes(), ledger)
	assert.Error(t, err)
}

func TestNext_ConcurrentIssuanceIsUnique(t *testing.T) {
	r := newRegistry(t, newFakeLedger())
	ctx := context.Background()

	const workers, perWorker = 16, 50
	results := make(chan string, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				s, err := r.Next(ctx, "Kira Ryosuke", models.Uncommon, "Matsukaze Kokuo High")
				assert.NoError(t, err)
				results <- s
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for s := range results {
		assert.False(t, seen[s], "duplicate serial %s", s)
		seen[s] = true
	}
	assert.Len(t, seen, workers*perWorker)
	assert.True(t, seen["MTKZ-UC-KIRY-800"], "counts must be dense from 1")
}

func TestNext_Unique_Property(t *testing.T) {
	names := []string{"Isagi Yoichi", "Kira Ryosuke", "Chigiri Hyoma", "Barou Shoei"}
	sets := []string{"Ichinan High", "Samurai Blue", "U-20 Japan"}

	rapid.Check(t, func(rt *rapid.T) {
		var existing []string
		for _, s := range rapid.SliceOfN(rapid.IntRange(1, 6), 0, 5).Draw(rt, "existing") {
			existing = append(existing, serial.Format("ICHI", "CM", "ISYO", s))
		}
		ledger := newFakeLedger(existing...)
		r, err := serial.NewRegistry(context.Background(), catalog.DefaultCodes(), ledger)
		require.NoError(rt, err)

		seen := make(map[string]bool)
		for _, s := range existing {
			seen[s] = true
		}
		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			name := rapid.SampledFrom(names).Draw(rt, "name")
			set := rapid.SampledFrom(sets).Draw(rt, "set")
			rarity := rapid.SampledFrom(models.Rarities).Draw(rt, "rarity")

			s, err := r.Next(context.Background(), name, rarity, set)
			require.NoError(rt, err)
			require.False(rt, seen[s], "serial %s issued twice", s)
			seen[s] = true
			if rapid.Bool().Draw(rt, "persist") {
				ledger.add(s)
			}
		}
	})
}

type memCounters struct {
	saved map[string]int
	err   error
}

func (m *memCounters) Load(context.Context) (map[string]int, error) {
	out := make(map[string]int, len(m.saved))
	for k, v := range m.saved {
		out[k] = v
	}
	return out, nil
}

func (m *memCounters) Save(_ context.Context, counts map[string]int) error {
	if m.err != nil {
		return m.err
	}
	m.saved = counts
	return nil
}

func TestCounterStore_UnclaimedSerialsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	counters := &memCounters{}

	r := newRegistry(t, ledger, serial.WithCounterStore(counters))
	for i := 0; i < 2; i++ {
		_, err := r.Next(ctx, "Kira Ryosuke", models.Uncommon, "Matsukaze Kokuo High")
		require.NoError(t, err)
	}
	assert.Equal(t, map[string]int{"Kira Ryosuke|Uncommon|Matsukaze Kokuo High": 2}, counters.saved)

	// neither serial reached the ledger; a new process must still skip them
	restarted := newRegistry(t, ledger, serial.WithCounterStore(counters))
	s, err := restarted.Next(ctx, "Kira Ryosuke", models.Uncommon, "Matsukaze Kokuo High")
	require.NoError(t, err)
	assert.Equal(t, "MTKZ-UC-KIRY-3", s)
}

func TestCounterStore_SaveFailureFailsIssuance(t *testing.T) {
	ctx := context.Background()
	counters := &memCounters{}
	r := newRegistry(t, newFakeLedger(), serial.WithCounterStore(counters))

	counters.err = errors.New("read-only file system")
	_, err := r.Next(ctx, "Kira Ryosuke", models.Uncommon, "Matsukaze Kokuo High")
	require.ErrorIs(t, err, counters.err)
	assert.Zero(t, r.Outstanding())

	counters.err = nil
	s, err := r.Next(ctx, "Kira Ryosuke", models.Uncommon, "Matsukaze Kokuo High")
	require.NoError(t, err)
	assert.Equal(t, "MTKZ-UC-KIRY-1", s)
}
