// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// BindListenAddr replaces the host part of a listen address when it is of the
// form ":PORT" or empty. Explicit host:port values are left untouched.
// Supports "if:<name>" to bind to the first non-loopback IPv4 of an interface.
func BindListenAddr(listenAddr, bind string) (string, error) {
	if bind == "" {
		return listenAddr, nil
	}

	if listenAddr == "" || listenAddr[0] == ':' {
		port := listenAddr
		if port == "" {
			port = ":0"
		}

		host := bind
		if len(bind) > 3 && bind[:3] == "if:" {
			ifName := bind[3:]
			iface, err := net.InterfaceByName(ifName)
			if err != nil {
				return "", fmt.Errorf("resolve interface %q: %w", ifName, err)
			}
			addrs, err := iface.Addrs()
			if err != nil {
				return "", fmt.Errorf("list addrs for %q: %w", ifName, err)
			}
			found := false
			for _, a := range addrs {
				var ip net.IP
				switch v := a.(type) {
				case *net.IPNet:
					ip = v.IP
				case *net.IPAddr:
					ip = v.IP
				}
				if ip == nil || ip.IsLoopback() || ip.To4() == nil {
					continue
				}
				host = ip.String()
				found = true
				break
			}
			if !found {
				return "", fmt.Errorf("no suitable IPv4 on interface %q", ifName)
			}
		}

		return net.JoinHostPort(host, port[1:]), nil
	}

	return listenAddr, nil
}

// ServerConfig holds HTTP server configuration shared by fleetd's API and
// metrics servers.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., ":8080").
	ListenAddr string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

const (
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultMaxHeaderBytes  = 1 << 20 // 1 MB
	defaultShutdownTimeout = 15 * time.Second
	fallbackListenAddr     = ":8088"
)

// ParseServerConfig reads server configuration from environment variables,
// applying sensible defaults.
func ParseServerConfig() ServerConfig {
	listen := strings.TrimSpace(ParseString("FLEETD_LISTEN", fallbackListenAddr))

	cfg := ServerConfig{
		ListenAddr:      listen,
		ReadTimeout:     ParseDuration("FLEETD_READ_TIMEOUT", defaultReadTimeout),
		WriteTimeout:    ParseDuration("FLEETD_WRITE_TIMEOUT", defaultWriteTimeout),
		IdleTimeout:     ParseDuration("FLEETD_IDLE_TIMEOUT", defaultIdleTimeout),
		MaxHeaderBytes:  ParseInt("FLEETD_MAX_HEADER_BYTES", defaultMaxHeaderBytes),
		ShutdownTimeout: ParseDuration("FLEETD_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}

	if bind := ParseString("FLEETD_BIND", ""); bind != "" {
		if addr, err := BindListenAddr(cfg.ListenAddr, bind); err == nil {
			cfg.ListenAddr = addr
		}
	}

	return cfg
}
