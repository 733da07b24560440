package tg

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"
)

const (
	probeTimeout = 3 * time.Second
	proxyTimeout = 5 * time.Second
)

// checkConnectivity пишет в лог, доступны ли сеть и прокси. Ничего не блокирует:
// TDLib сам переподключается, а лог помогает понять, почему бот молчит.
func checkConnectivity(logger *slog.Logger, proxy *ProxyConfig) {
	probe(logger, "tcp4", "8.8.8.8:53", probeTimeout)
	probe(logger, "tcp6", "[2606:4700:4700::1111]:53", probeTimeout)
	checkProxy(logger, proxy)
}

func probe(logger *slog.Logger, network, addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout(network, addr, timeout)
	if err != nil {
		logger.Warn("connectivity check failed", "network", network, "addr", addr, "error", err)
		return false
	}
	_ = conn.Close()
	logger.Debug("connectivity OK", "network", network, "addr", addr)
	return true
}

func checkProxy(logger *slog.Logger, proxy *ProxyConfig) {
	if proxy == nil {
		logger.Info("proxy disabled, skipping check")
		return
	}

	for _, network := range proxyNetworks(proxy.Server) {
		addr := net.JoinHostPort(proxy.Server, strconv.Itoa(int(proxy.Port)))
		if probe(logger, network, addr, proxyTimeout) {
			logger.Info("proxy reachable", "network", network, "addr", addr)
			return
		}
	}
	logger.Error("proxy unreachable", "server", proxy.Server, "port", proxy.Port)
}

// proxyNetworks: для IP-литерала его семейство, для имени хоста сначала IPv6, потом IPv4.
func proxyNetworks(host string) []string {
	ip := net.ParseIP(host)
	switch {
	case ip == nil:
		return []string{"tcp6", "tcp4"}
	case ip.To4() != nil:
		return []string{"tcp4"}
	default:
		return []string{"tcp6"}
	}
}

func (p *ProxyConfig) String() string {
	if p == nil {
		return "none"
	}
	return fmt.Sprintf("socks5://%s", net.JoinHostPort(p.Server, strconv.Itoa(int(p.Port))))
}
