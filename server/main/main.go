package main

import (
	"fmt"
	"log"
	"strconv"

	"github.com/vigilglc/flakegen/server/api"
	"github.com/vigilglc/flakegen/server/config"
	"github.com/vigilglc/flakegen/server/main/cmd"
)

func main() {
	var cfg *config.ServerConfig
	if err := cmd.Parse(func(cmdFlags *cmd.CommandFlags) (err error) {
		if fn, set := cmdFlags.ConfFilePath(); set {
			cfg, err = config.ReadServerConfig(fn)
		} else {
			return fmt.Errorf("config flag not set")
		}
		if err != nil {
			return err
		}
		if s, set := cmdFlags.MachineID(); set {
			mid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("cmd flag machine-id, integer expected: %v", err)
			}
			cfg.MachineID = mid
		}
		if s, set := cmdFlags.DataDir(); set {
			cfg.DataDir = s
		}
		if b, set := cmdFlags.BackendSync(); set {
			cfg.BackendSync = b
		}
		if b, set := cmdFlags.Development(); set {
			cfg.Development = b
		}
		if s, set := cmdFlags.LogLevel(); set {
			cfg.LogLevel = s
		}
		if ss, set := cmdFlags.LogOutputPaths(); set {
			cfg.LogOutputPaths = ss
		}
		return
	}); err != nil {
		log.Fatal(err)
	}
	if err := api.StartService(cfg); err != nil {
		log.Fatal(err)
	}
}
