package app

import (
	"strings"
	"time"

	grb "github.com/desertbit/grumble"
	"github.com/vigilglc/flakegen/server/api/idpb"
)

const (
	flagHost = "host"

	argCount = "N"
	argID    = "ID"
	argHost  = "host"
)

var (
	exeNextFunc   func() (id uint64, err error)
	exeBulkFunc   func(count uint32) (ids []uint64, err error)
	exeParseFunc  func(id uint64) (parsed *idpb.ParseIDResponse, err error)
	exeStatusFunc func(host string) (status *idpb.StatusResponse, err error)
	exeHostsFunc  func() (alive, all []string, err error)
	initFunc      func(hosts []string) error
	closeFunc     func() error
)

func SetExeNextFunc(f func() (id uint64, err error))                       { exeNextFunc = f }
func SetExeBulkFunc(f func(count uint32) (ids []uint64, err error))        { exeBulkFunc = f }
func SetExeParseFunc(f func(id uint64) (*idpb.ParseIDResponse, error))     { exeParseFunc = f }
func SetExeStatusFunc(f func(host string) (*idpb.StatusResponse, error))   { exeStatusFunc = f }
func SetExeHostsFunc(f func() (alive, all []string, err error))            { exeHostsFunc = f }
func SetInitFunc(f func(hosts []string) error)                             { initFunc = f }
func SetCloseFunc(f func() error)                                          { closeFunc = f }

var (
	App = grb.New(&grb.Config{
		Name:        "flakegen-cli",
		Description: "client for flakegen-server",
		Flags: func(f *grb.Flags) {
			f.StringL(flagHost, "", "hosts to connect, e.g. \"127.0.0.1:7333;127.1.1.1:7334\"")
		},
		HistoryLimit: 1000,
		Prompt:       ">>>",
	})

	cmdNext = &grb.Command{
		Name:    "NEXT",
		Aliases: []string{"next"},
		Help:    "mint the next N unique ids",
		Usage:   "NEXT [N]",
		Args: func(a *grb.Args) {
			a.Uint64(argCount, "count of ids to mint", grb.Default(uint64(1)))
		},
		Run: func(c *grb.Context) error {
			if exeNextFunc == nil || exeBulkFunc == nil {
				return ErrClientStateInvalid
			}
			N := c.Args.Uint64(argCount)
			if N <= 1 {
				id, err := exeNextFunc()
				if err != nil {
					return err
				}
				_, _ = c.App.Println(id)
				return nil
			}
			ids, err := exeBulkFunc(uint32(N))
			if err != nil {
				return err
			}
			for _, id := range ids {
				_, _ = c.App.Println(id)
			}
			return nil
		},
	}
	cmdParse = &grb.Command{
		Name:    "PARSE",
		Aliases: []string{"parse"},
		Help:    "decompose an id into its fields",
		Usage:   "PARSE ID",
		Args: func(a *grb.Args) {
			a.Uint64(argID, "id to decompose")
		},
		Run: func(c *grb.Context) error {
			if exeParseFunc == nil {
				return ErrClientStateInvalid
			}
			parsed, err := exeParseFunc(c.Args.Uint64(argID))
			if err != nil {
				return err
			}
			_, _ = c.App.Printf("timestamp: %dms\n", parsed.Timestamp)
			_, _ = c.App.Printf("sequence: %d\n", parsed.Sequence)
			_, _ = c.App.Printf("machineID: %d\n", parsed.MachineId)
			_, _ = c.App.Printf("startTime: %s\n", fmtUnixMillis(parsed.StartTime))
			_, _ = c.App.Printf("generatedTime: %s\n", fmtUnixMillis(parsed.GeneratedTime))
			return nil
		},
	}
	cmdStatus = &grb.Command{
		Name:    "STATUS",
		Aliases: []string{"status"},
		Help:    "get a server's generator status",
		Usage:   "STATUS [host]",
		Args: func(a *grb.Args) {
			a.String(argHost, "server host to ask, any alive one when omitted", grb.Default(""))
		},
		Run: func(c *grb.Context) error {
			if exeStatusFunc == nil {
				return ErrClientStateInvalid
			}
			status, err := exeStatusFunc(c.Args.String(argHost))
			if err != nil {
				return err
			}
			_, _ = c.App.Printf("name: %s\n", status.Name)
			_, _ = c.App.Printf("machineID: %d\n", status.MachineId)
			_, _ = c.App.Printf("epoch: %s\n", fmtUnixMillis(status.EpochMillis))
			_, _ = c.App.Printf("lastTicks: %d\n", status.LastTicks)
			_, _ = c.App.Printf("sequence: %d\n", status.Sequence)
			_, _ = c.App.Printf("watermark: %d\n", status.Watermark)
			return nil
		},
	}
	cmdHosts = &grb.Command{
		Name:    "HOSTS",
		Aliases: []string{"hosts"},
		Help:    "list known server hosts",
		Usage:   "HOSTS",
		Args: func(a *grb.Args) {
		},
		Run: func(c *grb.Context) error {
			if exeHostsFunc == nil {
				return ErrClientStateInvalid
			}
			alive, all, err := exeHostsFunc()
			if err != nil {
				return err
			}
			aliveSet := map[string]struct{}{}
			for _, h := range alive {
				aliveSet[h] = struct{}{}
			}
			for _, h := range all {
				state := "dead"
				if _, ok := aliveSet[h]; ok {
					state = "alive"
				}
				_, _ = c.App.Printf("%s\t%s\n", h, state)
			}
			return nil
		},
	}
)

func fmtUnixMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}

func init() {
	App.AddCommand(cmdNext)
	App.AddCommand(cmdParse)
	App.AddCommand(cmdStatus)
	App.AddCommand(cmdHosts)

	App.OnInit(func(a *grb.App, flags grb.FlagMap) error {
		if initFunc == nil {
			return ErrClientStateInvalid
		}
		var hosts []string
		for _, h := range strings.Split(flags.String(flagHost), ";") {
			if h = strings.TrimSpace(h); len(h) != 0 {
				hosts = append(hosts, h)
			}
		}
		return initFunc(hosts)
	})
}

func Run() error {
	return App.Run()
}

func Close() error {
	if closeFunc == nil {
		return nil
	}
	return closeFunc()
}
