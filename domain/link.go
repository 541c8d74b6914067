package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// 接口名的首个连续 token，如 "Ethernet2"、"Gi1/0/1"、"Port-Channel1"。
var ifaceTokenRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9/-]+`)

// CanonInterface 规整接口名：取首个 token，去掉空格/括号/逗号之后的装饰内容。
// 该函数是幂等的：CanonInterface(CanonInterface(x)) == CanonInterface(x)。
func CanonInterface(s string) string {
	s = strings.TrimSpace(s)
	if m := ifaceTokenRe.FindString(s); m != "" {
		return m
	}
	return s
}

// LinkRef 表示一条链路的本端：(设备, 接口)。
// 链路的身份与相等性以 (device, 规整后的 interface) 为准。
type LinkRef struct {
	Device    string `json:"device"`    // 设备名
	Interface string `json:"interface"` // 规整后的接口名
}

// NewLinkRef 创建 LinkRef，接口名在此处统一规整。
func NewLinkRef(device, iface string) LinkRef {
	return LinkRef{
		Device:    strings.TrimSpace(device),
		Interface: CanonInterface(iface),
	}
}

// Key 返回链路的唯一键，用于互斥锁与缓存键。
// 与上游保持一致：小写并将 "/" 替换为 "-"。
func (l LinkRef) Key() string {
	return strings.ToLower(strings.ReplaceAll(fmt.Sprintf("%s:%s", l.Device, l.Interface), "/", "-"))
}

// String 返回 "device/interface" 形式，仅用于日志。
func (l LinkRef) String() string {
	return l.Device + "/" + l.Interface
}

// PeerLink 是邻居发现得到的对端，仅在一次工作流运行内有效，不做持久化。
type PeerLink struct {
	PeerDevice    string `json:"peer_device"`    // 对端设备名
	PeerInterface string `json:"peer_interface"` // 对端接口名
}

// InterfaceState 是设备抽象层归一化后的接口状态记录。
// 隔离判定逻辑只依赖该结构，不接触各厂商 CLI 的文本细节。
type InterfaceState struct {
	AdminDown   bool   `json:"admin_down"`  // 是否处于管理性关闭
	Description string `json:"description"` // 接口 description 字段内容
}
