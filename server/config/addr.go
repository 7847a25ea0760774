package config

import "fmt"

type AddrInfo struct {
	Name        string `json:"name,omitempty" toml:"Name"`
	Host        string `json:"host" toml:"Host"`
	ServicePort uint16 `json:"servicePort" toml:"ServicePort"`
}

func (addr *AddrInfo) ServiceAddress() string {
	return fmt.Sprintf("%s:%d", addr.Host, addr.ServicePort)
}

func AddrInfoEmpty(info AddrInfo) bool {
	return len(info.Host) == 0 || info.ServicePort == 0
}
