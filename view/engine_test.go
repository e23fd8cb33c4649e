package view

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vwapbook/orderbook"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ins(p, v string) orderbook.Event { return orderbook.InsertEvent(d(p), d(v)) }
func del(p, v string) orderbook.Event { return orderbook.DeleteEvent(d(p), d(v)) }

func applyAll(t *testing.T, e *Engine, events ...orderbook.Event) {
	t.Helper()
	for _, ev := range events {
		require.NoError(t, e.Apply(ev))
		require.NoError(t, e.Check())
	}
}

// bruteVWAP computes the result straight from its definition.
func bruteVWAP(live [][2]decimal.Decimal, w decimal.Decimal) (decimal.Decimal, bool) {
	total := decimal.Zero
	for _, pv := range live {
		total = total.Add(pv[1])
	}
	prices := make([]decimal.Decimal, 0, len(live))
	for _, pv := range live {
		prices = append(prices, pv[0])
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })
	for _, k := range prices {
		above := decimal.Zero
		for _, pv := range live {
			if pv[0].GreaterThan(k) {
				above = above.Add(pv[1])
			}
		}
		if above.LessThan(w.Mul(total)) {
			sum := decimal.Zero
			for _, pv := range live {
				if pv[0].GreaterThanOrEqual(k) {
					sum = sum.Add(pv[0].Mul(pv[1]))
				}
			}
			return sum, true
		}
	}
	return decimal.Zero, false
}

func TestEngine_EmptyHasNoResult(t *testing.T) {
	e := New()
	_, ok := e.Result()
	assert.False(t, ok)
	require.NoError(t, e.Check())
}

func TestEngine_SingleInsert(t *testing.T) {
	e := New()
	applyAll(t, e, ins("10", "100"))

	res, ok := e.Result()
	require.True(t, ok)
	assert.True(t, res.Equal(d("1000")), "got %s", res)

	th, ok := e.Threshold()
	require.True(t, ok)
	assert.True(t, th.Equal(d("10")))
}

func TestEngine_TwoInsertsOneDelete(t *testing.T) {
	e := New()
	applyAll(t, e, ins("10", "100"), ins("20", "50"))

	// 0.25 * 150 = 37.5; nothing above 20, 50 above 10
	th, _ := e.Threshold()
	assert.True(t, th.Equal(d("20")), "threshold %s", th)
	res, _ := e.Result()
	assert.True(t, res.Equal(d("1000")), "got %s", res)

	applyAll(t, e, del("10", "100"))

	dump := e.Dump()
	require.Len(t, dump.Base, 1)
	assert.True(t, dump.Base[0][0].Equal(d("20")))
	assert.True(t, sameKeys([]decimal.Decimal{d("20")}, dump.Domains["depth_dom"]))
	assert.True(t, sameKeys([]decimal.Decimal{d("20")}, dump.Domains["level_dom"]))

	gap, ok := e.depthGap.Get(d("20"))
	require.True(t, ok)
	assert.True(t, gap.Equal(d("-12.5")), "gap %s", gap)

	res, ok = e.Result()
	require.True(t, ok)
	assert.True(t, res.Equal(d("1000")), "got %s", res)
}

func TestEngine_LowerThresholdAfterDelete(t *testing.T) {
	e := New()
	applyAll(t, e,
		ins("10", "100"),
		ins("11", "100"),
		ins("12", "10"),
	)
	// W*total = 52.5; above 11 is 10, above 10 is 110
	th, _ := e.Threshold()
	assert.True(t, th.Equal(d("11")), "threshold %s", th)
	res, _ := e.Result()
	assert.True(t, res.Equal(d("1220")), "got %s", res)

	applyAll(t, e, del("12", "10"))
	th, _ = e.Threshold()
	assert.True(t, th.Equal(d("11")), "threshold %s", th)
	res, _ = e.Result()
	assert.True(t, res.Equal(d("1100")), "got %s", res)

	// key 12 lost its only tuple and left every domain
	_, ok := e.Query(d("12"))
	assert.False(t, ok)
	assert.Equal(t, map[string]int{"depth_dom": 2, "level_dom": 2, "vwap_dom": 2}, e.DomainSizes())
}

func TestEngine_DuplicateTuples(t *testing.T) {
	e := New()
	applyAll(t, e, ins("10", "5"), ins("10", "5"), ins("10", "7"))

	cnt, ok := e.levelCount.Get(d("10"))
	require.True(t, ok)
	assert.True(t, cnt.Equal(d("3")))

	applyAll(t, e, del("10", "5"))
	cnt, _ = e.levelCount.Get(d("10"))
	assert.True(t, cnt.Equal(d("2")))
	res, _ := e.Result()
	assert.True(t, res.Equal(d("120")), "got %s", res)

	applyAll(t, e, del("10", "5"), del("10", "7"))
	_, ok = e.Result()
	assert.False(t, ok)
	assert.Equal(t, 0, e.base.Len())
	assert.Empty(t, e.vwap.Entries())
}

func TestEngine_EquivalentDecimalsShareKey(t *testing.T) {
	e := New()
	applyAll(t, e, ins("10", "1"), ins("10.00", "2"))
	assert.Equal(t, 1, e.levelDom.Len())
	applyAll(t, e, del("10.0", "1.000"))
	cnt, _ := e.levelCount.Get(d("10"))
	assert.True(t, cnt.Equal(d("1")))
}

func TestEngine_DeleteOfDeadTupleIsRejected(t *testing.T) {
	e := New()
	applyAll(t, e, ins("10", "100"))
	before := e.Dump()

	err := e.Apply(del("10", "99"))
	require.ErrorIs(t, err, ErrUnknownTuple)
	assert.Equal(t, before, e.Dump())
	assert.Equal(t, uint64(1), e.Applied())
}

func TestEngine_UnknownEventKind(t *testing.T) {
	e := New()
	err := e.Apply(orderbook.Event{Kind: 0, Price: d("1"), Volume: d("1")})
	require.ErrorIs(t, err, ErrUnknownEvent)
}

func TestEngine_UninitialisedEntryPanics(t *testing.T) {
	e := New()
	e.depthDom.Add(d("5"))

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, ErrUninitialized)
	}()
	_ = e.Apply(ins("10", "1"))
}

func TestEngine_CheckDetectsDrift(t *testing.T) {
	e := New()
	applyAll(t, e, ins("10", "100"), ins("20", "50"))

	e.vwap.Set(d("20"), d("1"))
	require.ErrorIs(t, e.Check(), ErrDivergence)
}

func TestEngine_CheckDetectsParityBreak(t *testing.T) {
	e := New()
	applyAll(t, e, ins("10", "100"))

	e.levelCount.Delete(d("10"))
	require.ErrorIs(t, e.Check(), ErrDivergence)
}

func TestEngine_ValidationModeSurfacesDrift(t *testing.T) {
	e := New(WithValidation(true))
	require.NoError(t, e.Apply(ins("10", "100")))

	e.depthGap.Set(d("10"), d("3"))
	err := e.Apply(ins("20", "1"))
	require.ErrorIs(t, err, ErrDivergence)
}

func TestEngine_CustomWeight(t *testing.T) {
	e := New(WithWeight(d("0.5")))
	applyAll(t, e, ins("10", "100"), ins("20", "100"), ins("30", "100"))
	// W*total = 150; above 20 is 100 < 150, above 10 is 200
	th, _ := e.Threshold()
	assert.True(t, th.Equal(d("20")), "threshold %s", th)
	res, _ := e.Result()
	assert.True(t, res.Equal(d("5000")), "got %s", res)
}

func TestEngine_SnapshotIsDetached(t *testing.T) {
	e := New()
	applyAll(t, e, ins("10", "100"))
	snap := e.Snapshot()
	applyAll(t, e, ins("20", "100"))

	require.Len(t, snap.Entries, 1)
	assert.True(t, snap.Result.Equal(d("1000")))
	assert.Equal(t, uint64(1), snap.Applied)
	assert.True(t, snap.HasResult)
}

func TestEngine_RandomisedMatchesFullRecomputation(t *testing.T) {
	prices := []string{"9.5", "10", "10.25", "11", "12", "13.75", "15", "20"}
	rnd := rand.New(rand.NewSource(42))

	for _, w := range []string{"0.25", "0.5", "0.9"} {
		t.Run("w="+w, func(t *testing.T) {
			weight := d(w)
			e := New(WithWeight(weight))
			var live [][2]decimal.Decimal

			for step := 0; step < 600; step++ {
				if len(live) == 0 || rnd.Intn(3) != 0 {
					p := d(prices[rnd.Intn(len(prices))])
					v := decimal.NewFromInt(int64(rnd.Intn(200) + 1))
					require.NoError(t, e.Apply(orderbook.InsertEvent(p, v)))
					live = append(live, [2]decimal.Decimal{p, v})
				} else {
					i := rnd.Intn(len(live))
					pv := live[i]
					require.NoError(t, e.Apply(orderbook.DeleteEvent(pv[0], pv[1])))
					live = append(live[:i], live[i+1:]...)
				}

				require.NoError(t, e.Check(), "step %d", step)

				want, wantOK := bruteVWAP(live, weight)
				got, gotOK := e.Result()
				require.Equal(t, wantOK, gotOK, "step %d", step)
				require.True(t, want.Equal(got), "step %d: want %s, got %s", step, want, got)
			}
		})
	}
}
