// Package linkstate 负责单个接口的隔离态读写：
// 下发 shutdown/no shutdown 与哨兵描述，并把设备输出归一化成判定用的结构。
package linkstate

import (
	"regexp"
	"strings"
)

// SentinelDescription 是隔离时写入接口 description 的哨兵标记。
// 状态与标记总是成对写入：判定"是否本系统隔离"以两者同时成立为准。
const SentinelDescription = "QUARANTINED_BY_ITOPS"

// 设备输出中表示管理性关闭的措辞，不同厂商大小写不一。
var adminDownPhrases = []string{
	"administratively down",
	"Administratively down",
	"Administratively Down",
	"admin down",
}

var descriptionRe = regexp.MustCompile(`(?m)^\s*Description:\s*(.*)$`)

// ShowInterfaceCmd 返回查询接口状态的命令。
func ShowInterfaceCmd(iface string) string {
	return "show interfaces " + iface
}

// QuarantineCmds 返回隔离接口的配置命令组：关闭接口并写入哨兵描述。
func QuarantineCmds(iface string) []string {
	return []string{
		"interface " + iface,
		"shutdown",
		"description " + SentinelDescription,
	}
}

// RestoreCmds 返回恢复接口的配置命令组：启用接口并清除描述。
func RestoreCmds(iface string) []string {
	return []string{
		"interface " + iface,
		"no shutdown",
		"no description",
	}
}

// SaveConfigCmd 返回持久化运行配置的命令。
const SaveConfigCmd = "write memory"

// parseAdminDown 判断接口输出是否包含管理性关闭措辞。
func parseAdminDown(output string) bool {
	for _, phrase := range adminDownPhrases {
		if strings.Contains(output, phrase) {
			return true
		}
	}
	return false
}

// parseDescription 从接口输出中提取 description 字段内容。
func parseDescription(output string) string {
	if m := descriptionRe.FindStringSubmatch(output); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}
