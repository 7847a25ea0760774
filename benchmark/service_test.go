package benchmark

import (
	"context"
	"math/rand"
	"testing"

	"github.com/vigilglc/flakegen/client"
	"github.com/vigilglc/flakegen/server/api/idpb"
)

// These benchmarks expect flakegen servers already listening on the hosts
// below; runs against nothing measure rpc failures.
var benchServiceHosts = []string{"localhost:7333", "localhost:7334", "localhost:7335"}

func Benchmark_Sequential_Flakegen_Service_NextID(b *testing.B) {
	agt := client.NewAgent(context.Background(), benchServiceHosts...)
	defer func(agt client.Agent) { _ = agt.Close() }(agt)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		err := agt.Pick(func(ctx context.Context, c client.Client) error {
			_, err := c.NextID(ctx, &idpb.NextIDRequest{})
			return err
		})
		if err != nil {
			b.Logf("%v\n", err)
		}
	}
}

func Benchmark_Sequential_Flakegen_Service_BulkIDs(b *testing.B) {
	agt := client.NewAgent(context.Background(), benchServiceHosts...)
	defer func(agt client.Agent) { _ = agt.Close() }(agt)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		err := agt.Pick(func(ctx context.Context, c client.Client) error {
			_, err := c.BulkIDs(ctx, &idpb.BulkIDsRequest{Count: 256})
			return err
		})
		if err != nil {
			b.Logf("%v\n", err)
		}
	}
}

func Benchmark_Sequential_Flakegen_Service_ParseID(b *testing.B) {
	agt := client.NewAgent(context.Background(), benchServiceHosts...)
	defer func(agt client.Agent) { _ = agt.Close() }(agt)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		err := agt.Pick(func(ctx context.Context, c client.Client) error {
			_, err := c.ParseID(ctx, &idpb.ParseIDRequest{Id: generateID(b)})
			return err
		})
		if err != nil {
			b.Logf("%v\n", err)
		}
	}
}

func generateID(b *testing.B) uint64 {
	b.StopTimer()
	defer b.StartTimer()
	return rand.Uint64()
}
