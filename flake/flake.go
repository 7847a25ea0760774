// Package flake generates roughly time-sortable 63-bit unique IDs laid out as
// 39 bits of 10ms ticks, 8 bits of sequence, and 16 bits of machine ID.
package flake

import (
	"sync"
	"time"

	"github.com/vigilglc/flakegen/flake/machineid"
)

const (
	TimestampBits = 39
	SequenceBits  = 8
	MachineIDBits = 16

	timestampShift = SequenceBits + MachineIDBits
	sequenceShift  = MachineIDBits

	MaxTimestamp = int64(1)<<TimestampBits - 1
	MaxSequence  = uint64(1)<<SequenceBits - 1
	MaxMachineID = uint64(1)<<MachineIDBits - 1

	// TickMillis is the wall-clock span of one timestamp unit.
	TickMillis = 10
)

var defaultEpoch = time.Date(2014, time.September, 1, 0, 0, 0, 0, time.UTC)

// Settings configures a Generator. The zero value resolves the machine ID
// from the host's first non-loopback IPv4 address and counts ticks from
// 2014-09-01T00:00:00Z using the system clock.
type Settings struct {
	// Epoch is the instant ticks are counted from.
	Epoch time.Time
	// MachineID, when non-nil, is used verbatim after range validation and
	// MachineIDResolver is ignored.
	MachineID *int64
	// MachineIDResolver derives the machine ID when MachineID is nil.
	MachineIDResolver func() (uint16, error)
	// Clock reports milliseconds since the Unix epoch.
	Clock func() int64
}

type Generator struct {
	mu          sync.Mutex
	epoch       time.Time
	epochMillis int64
	machineID   uint64
	clock       func() int64
	lastTicks   int64
	sequence    uint64
}

func NewGenerator(settings Settings) (*Generator, error) {
	epoch := settings.Epoch
	if epoch.IsZero() {
		epoch = defaultEpoch
	}
	gen := &Generator{
		epoch:       epoch,
		epochMillis: epoch.UnixMilli(),
		clock:       settings.Clock,
	}
	if gen.clock == nil {
		gen.clock = func() int64 { return time.Now().UnixMilli() }
	}
	if settings.MachineID != nil {
		mid := *settings.MachineID
		if mid < 0 || mid > int64(MaxMachineID) {
			return nil, ErrMachineIDOutOfRange
		}
		gen.machineID = uint64(mid)
	} else {
		resolve := settings.MachineIDResolver
		if resolve == nil {
			resolve = machineid.Resolve
		}
		mid, err := resolve()
		if err != nil {
			return nil, ErrNoMachineID
		}
		gen.machineID = uint64(mid)
	}
	return gen, nil
}

// Next mints one ID. Within a tick the sequence increments; when it wraps,
// Next polls the clock until the next tick begins. A clock reading behind the
// last minted tick fails with ErrClockRegression and leaves the generator
// state untouched, so a later call succeeds once the clock catches up.
func (gen *Generator) Next() (uint64, error) {
	gen.mu.Lock()
	defer gen.mu.Unlock()

	elapsed := gen.elapsedTicks()
	if elapsed > MaxTimestamp {
		return 0, ErrTimestampOverflow
	}
	if elapsed < gen.lastTicks {
		return 0, ErrClockRegression
	}
	if elapsed == gen.lastTicks {
		gen.sequence = (gen.sequence + 1) & MaxSequence
		if gen.sequence == 0 {
			for elapsed <= gen.lastTicks {
				elapsed = gen.elapsedTicks()
			}
			if elapsed > MaxTimestamp {
				return 0, ErrTimestampOverflow
			}
		}
	} else {
		gen.sequence = 0
	}
	gen.lastTicks = elapsed
	return uint64(elapsed)<<timestampShift | gen.sequence<<sequenceShift | gen.machineID, nil
}

func (gen *Generator) elapsedTicks() int64 {
	return (gen.clock() - gen.epochMillis) / TickMillis
}

// Payload is the decoded view of an ID relative to its generator's epoch.
type Payload struct {
	Timestamp     int64 // milliseconds since StartTime, tick-aligned
	Sequence      uint64
	MachineID     uint64
	StartTime     time.Time
	GeneratedTime time.Time
}

// Parse decodes id against the generator's epoch. It never fails; every
// uint64 decomposes into the three fields.
func (gen *Generator) Parse(id uint64) Payload {
	ts, seq, mid := Decompose(id)
	return Payload{
		Timestamp:     ts,
		Sequence:      seq,
		MachineID:     mid,
		StartTime:     gen.epoch,
		GeneratedTime: gen.epoch.Add(time.Duration(ts) * time.Millisecond),
	}
}

// Decompose splits id into its relative timestamp in milliseconds, sequence,
// and machine ID.
func Decompose(id uint64) (timestamp int64, sequence, machineID uint64) {
	timestamp = int64(id>>timestampShift) * TickMillis
	sequence = (id >> sequenceShift) & MaxSequence
	machineID = id & MaxMachineID
	return
}

func (gen *Generator) MachineID() uint64 { return gen.machineID }

func (gen *Generator) Epoch() time.Time { return gen.epoch }

// Last reports the tick and sequence of the most recently minted ID.
func (gen *Generator) Last() (ticks int64, sequence uint64) {
	gen.mu.Lock()
	defer gen.mu.Unlock()
	return gen.lastTicks, gen.sequence
}

// ElapsedTicks reads the generator's clock as ticks since its epoch.
func (gen *Generator) ElapsedTicks() int64 {
	return gen.elapsedTicks()
}
