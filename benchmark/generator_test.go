package benchmark

import (
	"math/rand"
	"testing"
)

func Benchmark_Flakegen_Generator_Next(b *testing.B) {
	gen := newFlakegenGenerator()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := gen.Next(); err != nil {
			b.Error(err)
		}
	}
}

func Benchmark_Sonyflake_Generator_NextID(b *testing.B) {
	sf := newSonyflakeGenerator()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := sf.NextID(); err != nil {
			b.Error(err)
		}
	}
}

func Benchmark_Concurrent1_Flakegen_Generator_Next(b *testing.B) {
	benchmarkConcurrentFlakegenGeneratorNextCommon(b, 1)
}
func Benchmark_Concurrent2_Flakegen_Generator_Next(b *testing.B) {
	benchmarkConcurrentFlakegenGeneratorNextCommon(b, 2)
}
func Benchmark_Concurrent4_Flakegen_Generator_Next(b *testing.B) {
	benchmarkConcurrentFlakegenGeneratorNextCommon(b, 4)
}
func Benchmark_Concurrent8_Flakegen_Generator_Next(b *testing.B) {
	benchmarkConcurrentFlakegenGeneratorNextCommon(b, 8)
}
func benchmarkConcurrentFlakegenGeneratorNextCommon(b *testing.B, parallelism int) {
	gen := newFlakegenGenerator()
	b.SetParallelism(parallelism)
	b.ResetTimer()
	defer b.StopTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := gen.Next(); err != nil {
				b.Error(err)
			}
		}
	})
}

func Benchmark_Flakegen_Generator_Parse(b *testing.B) {
	gen := newFlakegenGenerator()
	ids := make([]uint64, 1<<16)
	for i := range ids {
		ids[i] = rand.Uint64()
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = gen.Parse(ids[i%len(ids)])
	}
}
