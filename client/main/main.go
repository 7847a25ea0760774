package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/vigilglc/flakegen/client"
	"github.com/vigilglc/flakegen/client/app"
	"github.com/vigilglc/flakegen/server/api/idpb"
)

func initApp(ctx context.Context, agentGen func(ctx context.Context, initHosts ...string) client.Agent) {
	agent := agentGen(ctx)

	var caller = func(host string, act func(ctx context.Context, client client.Client) error) error {
		if len(host) != 0 {
			return agent.PickByHost(host, act)
		}
		return agent.Pick(act)
	}

	app.SetExeNextFunc(func() (id uint64, err error) {
		err = caller("", func(ctx context.Context, cli client.Client) error {
			var resp *idpb.NextIDResponse
			resp, err = cli.NextID(ctx, &idpb.NextIDRequest{})
			if resp != nil {
				id = resp.Id
			}
			return err
		})
		return
	})
	app.SetExeBulkFunc(func(count uint32) (ids []uint64, err error) {
		err = caller("", func(ctx context.Context, cli client.Client) error {
			var resp *idpb.BulkIDsResponse
			resp, err = cli.BulkIDs(ctx, &idpb.BulkIDsRequest{Count: count})
			if resp != nil {
				ids = resp.Ids
			}
			return err
		})
		return
	})
	app.SetExeParseFunc(func(id uint64) (parsed *idpb.ParseIDResponse, err error) {
		err = caller("", func(ctx context.Context, cli client.Client) error {
			parsed, err = cli.ParseID(ctx, &idpb.ParseIDRequest{Id: id})
			return err
		})
		return
	})
	app.SetExeStatusFunc(func(host string) (status *idpb.StatusResponse, err error) {
		err = caller(host, func(ctx context.Context, cli client.Client) error {
			status, err = cli.Status(ctx, &idpb.StatusRequest{})
			return err
		})
		return
	})
	app.SetExeHostsFunc(func() (alive, all []string, err error) {
		return agent.AliveHosts(), agent.AllHosts(), nil
	})

	app.SetInitFunc(func(hosts []string) error {
		agent.AddClients(hosts)
		if len(agent.AllHosts()) == 0 {
			return fmt.Errorf("failed to start client, since no server hosts provided")
		}
		_ = agent.Revive()
		return nil
	})
	app.SetCloseFunc(agent.Close)
}

func main() {
	var agentGen = client.NewAgent
	for i, arg := range os.Args {
		if arg == "--test" {
			os.Args = append(os.Args[:i], os.Args[i+1:]...)
			agentGen = newFakeAgent
			log.Println("testing mode...")
			break
		}
	}
	initApp(context.Background(), agentGen)
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
	if err := app.Close(); err != nil {
		log.Fatal(err)
	}
}
