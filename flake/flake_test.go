package flake

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sony/sonyflake"
	"github.com/vigilglc/flakegen/flake/machineid"
)

func i64(v int64) *int64 { return &v }

func frozenClock(ms int64) func() int64 {
	return func() int64 { return ms }
}

func TestDecomposeLayout(t *testing.T) {
	testCases := []struct {
		ticks     uint64
		sequence  uint64
		machineID uint64
	}{
		{0, 0, 0},
		{5, 3, 258},
		{uint64(MaxTimestamp), MaxSequence, MaxMachineID},
	}
	for i, tc := range testCases {
		id := tc.ticks<<24 | tc.sequence<<16 | tc.machineID
		ts, seq, mid := Decompose(id)
		if ts != int64(tc.ticks)*TickMillis {
			t.Fatalf("testCase %v timestamp, expected: %v, actual: %v", i, int64(tc.ticks)*TickMillis, ts)
		}
		if seq != tc.sequence {
			t.Fatalf("testCase %v sequence, expected: %v, actual: %v", i, tc.sequence, seq)
		}
		if mid != tc.machineID {
			t.Fatalf("testCase %v machine id, expected: %v, actual: %v", i, tc.machineID, mid)
		}
	}
}

func TestMachineIDValidation(t *testing.T) {
	testCases := []struct {
		machineID int64
		wantErr   error
	}{
		{-1, ErrMachineIDOutOfRange},
		{1 << 16, ErrMachineIDOutOfRange},
		{0, nil},
		{1<<16 - 1, nil},
		{258, nil},
	}
	for i, tc := range testCases {
		gen, err := NewGenerator(Settings{MachineID: i64(tc.machineID)})
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("testCase %v err, expected: %v, actual: %v", i, tc.wantErr, err)
		}
		if err != nil {
			continue
		}
		if gen.MachineID() != uint64(tc.machineID) {
			t.Fatalf("testCase %v machine id, expected: %v, actual: %v", i, tc.machineID, gen.MachineID())
		}
	}
}

func TestMachineIDResolution(t *testing.T) {
	gen, err := NewGenerator(Settings{
		MachineIDResolver: func() (uint16, error) { return 258, nil },
	})
	if err != nil {
		t.Fatal(err)
	}
	if gen.MachineID() != 258 {
		t.Fatalf("resolved machine id, expected: %v, actual: %v", 258, gen.MachineID())
	}
	_, err = NewGenerator(Settings{
		MachineIDResolver: func() (uint16, error) { return 0, machineid.ErrNotFound },
	})
	if !errors.Is(err, ErrNoMachineID) {
		t.Fatalf("failing resolver, expected: %v, actual: %v", ErrNoMachineID, err)
	}
	// explicit id wins over a resolver that would fail
	gen, err = NewGenerator(Settings{
		MachineID:         i64(7),
		MachineIDResolver: func() (uint16, error) { return 0, machineid.ErrNotFound },
	})
	if err != nil {
		t.Fatal(err)
	}
	if gen.MachineID() != 7 {
		t.Fatalf("machine id, expected: %v, actual: %v", 7, gen.MachineID())
	}
}

func TestTickTruncation(t *testing.T) {
	epoch := time.UnixMilli(1_000_000)
	testCases := []struct {
		nowMillis int64
		ticks     int64
	}{
		{1_000_000, 0},
		{1_000_009, 0},
		{1_000_010, 1},
		{1_000_019, 1},
		{1_000_020, 2},
	}
	for i, tc := range testCases {
		gen, err := NewGenerator(Settings{Epoch: epoch, MachineID: i64(1), Clock: frozenClock(tc.nowMillis)})
		if err != nil {
			t.Fatal(err)
		}
		if got := gen.ElapsedTicks(); got != tc.ticks {
			t.Fatalf("testCase %v ticks, expected: %v, actual: %v", i, tc.ticks, got)
		}
	}
}

func TestSequenceWithinTick(t *testing.T) {
	epoch := time.UnixMilli(0)
	gen, err := NewGenerator(Settings{Epoch: epoch, MachineID: i64(258), Clock: frozenClock(1000)})
	if err != nil {
		t.Fatal(err)
	}
	var last uint64
	for i := 0; i < 16; i++ {
		id, err := gen.Next()
		if err != nil {
			t.Fatal(err)
		}
		if i > 0 && id <= last {
			t.Fatalf("id not increasing, previous: %v, actual: %v", last, id)
		}
		pl := gen.Parse(id)
		if pl.Sequence != uint64(i) {
			t.Fatalf("sequence, expected: %v, actual: %v", i, pl.Sequence)
		}
		if pl.MachineID != 258 {
			t.Fatalf("machine id, expected: %v, actual: %v", 258, pl.MachineID)
		}
		if pl.Timestamp != 100*TickMillis {
			t.Fatalf("timestamp, expected: %v, actual: %v", 100*TickMillis, pl.Timestamp)
		}
		last = id
	}
}

func TestSequenceWrapWaitsNextTick(t *testing.T) {
	epoch := time.UnixMilli(0)
	var reads int
	now := int64(1000)
	gen, err := NewGenerator(Settings{Epoch: epoch, MachineID: i64(1), Clock: func() int64 {
		reads++
		if reads > int(MaxSequence)+2 { // one read per mint filling the tick, one more hitting the wrap
			now += TickMillis
		}
		return now
	}})
	if err != nil {
		t.Fatal(err)
	}
	var last uint64
	for i := 0; i <= int(MaxSequence); i++ {
		id, err := gen.Next()
		if err != nil {
			t.Fatal(err)
		}
		last = id
	}
	ticks, seq := gen.Last()
	if ticks != 100 || seq != MaxSequence {
		t.Fatalf("state before wrap, expected: (100, %v), actual: (%v, %v)", MaxSequence, ticks, seq)
	}
	id, err := gen.Next()
	if err != nil {
		t.Fatal(err)
	}
	if id <= last {
		t.Fatalf("id not increasing, previous: %v, actual: %v", last, id)
	}
	pl := gen.Parse(id)
	if pl.Sequence != 0 {
		t.Fatalf("sequence after wrap, expected: %v, actual: %v", 0, pl.Sequence)
	}
	if pl.Timestamp <= 100*TickMillis {
		t.Fatalf("timestamp after wrap should pass %v, actual: %v", 100*TickMillis, pl.Timestamp)
	}
}

func TestClockRegression(t *testing.T) {
	epoch := time.UnixMilli(0)
	now := int64(10_000)
	gen, err := NewGenerator(Settings{Epoch: epoch, MachineID: i64(9), Clock: func() int64 { return now }})
	if err != nil {
		t.Fatal(err)
	}
	first, err := gen.Next()
	if err != nil {
		t.Fatal(err)
	}
	wantTicks, wantSeq := gen.Last()

	now = 5_000
	if _, err := gen.Next(); !errors.Is(err, ErrClockRegression) {
		t.Fatalf("regressed clock, expected: %v, actual: %v", ErrClockRegression, err)
	}
	ticks, seq := gen.Last()
	if ticks != wantTicks || seq != wantSeq {
		t.Fatalf("state after failure, expected: (%v, %v), actual: (%v, %v)", wantTicks, wantSeq, ticks, seq)
	}

	now = 10_020
	second, err := gen.Next()
	if err != nil {
		t.Fatal(err)
	}
	if second <= first {
		t.Fatalf("id not increasing, previous: %v, actual: %v", first, second)
	}
	if pl := gen.Parse(second); pl.Sequence != 0 || pl.Timestamp != 10_020 {
		t.Fatalf("recovered id, expected: (10020, 0), actual: (%v, %v)", pl.Timestamp, pl.Sequence)
	}
}

func TestTimestampOverflow(t *testing.T) {
	epoch := time.UnixMilli(0)
	gen, err := NewGenerator(Settings{
		Epoch: epoch, MachineID: i64(1),
		Clock: frozenClock((MaxTimestamp + 1) * TickMillis),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := gen.Next(); !errors.Is(err, ErrTimestampOverflow) {
		t.Fatalf("overflowed clock, expected: %v, actual: %v", ErrTimestampOverflow, err)
	}
}

func TestNextAgainstDefaultEpoch(t *testing.T) {
	frozen := time.Date(2023, time.September, 1, 0, 0, 0, 0, time.UTC)
	gen, err := NewGenerator(Settings{MachineID: i64(1), Clock: frozenClock(frozen.UnixMilli())})
	if err != nil {
		t.Fatal(err)
	}
	id, err := gen.Next()
	if err != nil {
		t.Fatal(err)
	}
	pl := gen.Parse(id)
	wantMs := frozen.UnixMilli() - defaultEpoch.UnixMilli()
	if pl.Timestamp != wantMs {
		t.Fatalf("timestamp, expected: %v, actual: %v", wantMs, pl.Timestamp)
	}
	if pl.Sequence != 0 || pl.MachineID != 1 {
		t.Fatalf("payload, expected: (0, 1), actual: (%v, %v)", pl.Sequence, pl.MachineID)
	}
	if !pl.StartTime.Equal(defaultEpoch) {
		t.Fatalf("start time, expected: %v, actual: %v", defaultEpoch, pl.StartTime)
	}
	if !pl.GeneratedTime.Equal(frozen) {
		t.Fatalf("generated time, expected: %v, actual: %v", frozen, pl.GeneratedTime)
	}
}

func TestConcurrentUniqueness(t *testing.T) {
	gen, err := NewGenerator(Settings{MachineID: i64(77)})
	if err != nil {
		t.Fatal(err)
	}
	const workers, perWorker = 4, 500
	idSets := make([][]uint64, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ids := make([]uint64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				id, err := gen.Next()
				if err != nil {
					t.Error(err)
					return
				}
				ids = append(ids, id)
			}
			idSets[w] = ids
		}(w)
	}
	wg.Wait()
	var all []uint64
	for w, ids := range idSets {
		if len(ids) != perWorker {
			t.Fatalf("worker %v ids, expected: %v, actual: %v", w, perWorker, len(ids))
		}
		for i := 1; i < len(ids); i++ {
			if ids[i] <= ids[i-1] {
				t.Fatalf("worker %v ids not increasing at %v", w, i)
			}
		}
		all = append(all, ids...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	for i := 1; i < len(all); i++ {
		if all[i] == all[i-1] {
			t.Fatalf("duplicated id: %v", all[i])
		}
	}
	for _, id := range all {
		if _, _, mid := Decompose(id); mid != 77 {
			t.Fatalf("machine id, expected: %v, actual: %v", 77, mid)
		}
	}
}

func TestLayoutMatchesSonyflake(t *testing.T) {
	epoch := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	const mid = 258
	gen, err := NewGenerator(Settings{Epoch: epoch, MachineID: i64(mid)})
	if err != nil {
		t.Fatal(err)
	}
	sf := sonyflake.NewSonyflake(sonyflake.Settings{
		StartTime: epoch,
		MachineID: func() (uint16, error) { return mid, nil },
	})
	if sf == nil {
		t.Fatal("sonyflake settings rejected")
	}

	ours, err := gen.Next()
	if err != nil {
		t.Fatal(err)
	}
	parts := sonyflake.Decompose(ours)
	if parts["machine-id"] != mid {
		t.Fatalf("sonyflake machine id, expected: %v, actual: %v", mid, parts["machine-id"])
	}
	ts, seq, _ := Decompose(ours)
	if int64(parts["time"])*TickMillis != ts {
		t.Fatalf("sonyflake time, expected: %v, actual: %v", ts, int64(parts["time"])*TickMillis)
	}
	if parts["sequence"] != seq {
		t.Fatalf("sonyflake sequence, expected: %v, actual: %v", seq, parts["sequence"])
	}

	theirs, err := sf.NextID()
	if err != nil {
		t.Fatal(err)
	}
	ts2, _, mid2 := Decompose(theirs)
	if mid2 != mid {
		t.Fatalf("machine id of sonyflake id, expected: %v, actual: %v", mid, mid2)
	}
	// both generators read the same wall clock against the same epoch
	if diff := ts2 - ts; diff < 0 || diff > int64(time.Minute/time.Millisecond) {
		t.Fatalf("timestamps diverge: %v vs %v", ts, ts2)
	}
}
