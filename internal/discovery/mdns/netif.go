package mdns

import (
	"net"
	"sort"
	"strings"
)

// virtualInterfacePrefixes 跨机通常不可达的虚拟网卡前缀
var virtualInterfacePrefixes = []string{
	"docker", "br-", "veth", "virbr", "vboxnet", "vmnet",
	"utun", "tun", "tap", "tailscale", "wg", "zt", "dummy",
}

func isVirtualInterface(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range virtualInterfacePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// scoreLANIP 局域网地址评分，0 表示不宜广播
func scoreLANIP(ip net.IP) int {
	if ip == nil || ip.IsLoopback() || ip.IsUnspecified() || ip.IsMulticast() {
		return 0
	}

	base := 100
	ip4 := ip.To4()
	if ip4 != nil {
		base = 1000
	}

	switch {
	case ip4 != nil && ip4[0] == 192 && ip4[1] == 168:
		return base + 300
	case ip4 != nil && ip4[0] == 10:
		return base + 200
	case ip.IsPrivate():
		return base + 100
	case ip.IsLinkLocalUnicast():
		return base + 10
	default:
		// 公网地址同样可以在局域网内直连，但优先级最低
		return base
	}
}

// localIPs 选择广播用的本机地址，按评分降序；没有可用网卡时退回回环地址
func localIPs(ifaceName string, disableIPv6 bool) []net.IP {
	type scored struct {
		ip    net.IP
		score int
	}
	var candidates []scored

	ifaces, err := net.Interfaces()
	if err != nil {
		log.Debug("枚举网卡失败", "err", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if ifaceName != "" && iface.Name != ifaceName {
			continue
		}
		if ifaceName == "" && isVirtualInterface(iface.Name) {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP
			if ip.To4() == nil && (disableIPv6 || ip.IsLinkLocalUnicast()) {
				continue
			}
			if s := scoreLANIP(ip); s > 0 {
				candidates = append(candidates, scored{ip: ip, score: s})
			}
		}
	}

	if len(candidates) == 0 {
		log.Debug("没有可用的局域网地址，使用回环地址")
		return []net.IP{net.IPv4(127, 0, 0, 1)}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	ips := make([]net.IP, len(candidates))
	for i, c := range candidates {
		ips[i] = c.ip
	}
	return ips
}
