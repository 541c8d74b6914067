// Package discovery 通过 LLDP 邻居表发现链路对端。
// 发现结果只在单次工作流运行内使用，不做持久化。
package discovery

import (
	"strings"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/utils/slice"
)

// 接口名前缀的长短两种写法。LLDP 报文里邻居上报的端口名
// 可能是缩写（Gi1/0/1）也可能是全称（GigabitEthernet1/0/1），匹配时两者等价。
var prefixAliases = [][2]string{
	{"HundredGigabitEthernet", "Hu"},
	{"FortyGigabitEthernet", "Fo"},
	{"TwentyFiveGigE", "Twe"},
	{"TenGigabitEthernet", "Te"},
	{"GigabitEthernet", "Gi"},
	{"FastEthernet", "Fa"},
	{"Ethernet", "Et"},
	{"Port-Channel", "Po"},
	{"Management", "Ma"},
	{"Loopback", "Lo"},
	{"Vlan", "Vl"},
}

// AliasesFor 返回接口名的所有等价写法（含自身），接口名先做规整。
// 例如 "GigabitEthernet1/0/1" -> ["GigabitEthernet1/0/1", "Gi1/0/1"]。
func AliasesFor(iface string) []string {
	iface = domain.CanonInterface(iface)
	aliases := []string{iface}

	for _, pair := range prefixAliases {
		full, short := pair[0], pair[1]
		if rest, ok := cutPrefix(iface, full); ok {
			aliases = slice.AppendUniqueString(aliases, short+rest)
			break
		}
		// 缩写必须严格到数字边界，避免 "Ethernet2" 误匹配 "Et" 之外的前缀
		if rest, ok := cutPrefix(iface, short); ok && startsWithDigit(rest) {
			aliases = slice.AppendUniqueString(aliases, full+rest)
			break
		}
	}
	return aliases
}

// SameInterface 判断两个接口名是否指同一接口（考虑长短写法）。
func SameInterface(a, b string) bool {
	for _, alias := range AliasesFor(a) {
		if slice.ContainsString(AliasesFor(b), alias) {
			return true
		}
	}
	return false
}

func cutPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

func startsWithDigit(s string) bool {
	return len(s) > 0 && s[0] >= '0' && s[0] <= '9'
}
