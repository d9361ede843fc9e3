package mdns

import (
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/dep2p/go-lanpeer/pkg/types"
)

// buildTXT 生成广播 TXT 记录
func buildTXT(name string, published time.Time) []string {
	return []string{
		types.MetaID + "=" + name,
		types.MetaTimestamp + "=" + strconv.FormatInt(published.UnixMilli(), 10),
	}
}

// parseTXT 把 "k=v" 形式的 TXT 字段解析为键值表，无 '=' 的字段值为空
func parseTXT(fields []string) map[string]string {
	md := make(map[string]string, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		k, v, _ := strings.Cut(f, "=")
		md[k] = v
	}
	return md
}

// serviceSuffix 返回实例 FQDN 中实例名之后的部分
func serviceSuffix(serviceType, domain string) string {
	return "." + strings.Trim(serviceType, ".") + "." + strings.Trim(domain, ".") + "."
}

// instanceFromFQDN 从 FQDN 中取出实例名，并还原 DNS 转义
func instanceFromFQDN(fqdn, serviceType, domain string) string {
	name := strings.TrimSuffix(fqdn, serviceSuffix(serviceType, domain))
	return strings.ReplaceAll(name, `\`, "")
}

// entryToPeer 把查询响应转换为 Peer
//
// 拨号地址按 IPv4、IPv6、主机名的顺序选择；没有可用地址或端口的条目被丢弃。
func entryToPeer(e *mdns.ServiceEntry, serviceType, domain string) (types.Peer, bool) {
	if e == nil || e.Name == "" || e.Port <= 0 {
		return types.Peer{}, false
	}

	var host string
	switch {
	case e.AddrV4 != nil:
		host = e.AddrV4.String()
	case e.AddrV6 != nil:
		host = e.AddrV6.String()
	default:
		host = strings.TrimSuffix(e.Host, ".")
	}
	if host == "" {
		return types.Peer{}, false
	}

	md := parseTXT(e.InfoFields)
	name := md[types.MetaID]
	if name == "" {
		name = instanceFromFQDN(e.Name, serviceType, domain)
	}

	return types.Peer{
		InstanceName: name,
		PeerKey:      e.Name,
		Host:         host,
		Port:         e.Port,
		Metadata:     md,
	}, true
}
