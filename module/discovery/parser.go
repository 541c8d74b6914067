package discovery

import (
	"strings"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/domain"
)

// neighbor 是归一化后的一条 LLDP 邻居记录。
type neighbor struct {
	LocalPort  string // 本端端口
	PeerDevice string // 对端设备名
	PeerPort   string // 对端端口
}

// lldpNeighborsJSON 结构化邻居输出（EOS 风格 "| json"）。
type lldpNeighborsJSON struct {
	LLDPNeighbors []struct {
		Port           string `json:"port"`
		NeighborDevice string `json:"neighborDevice"`
		NeighborPort   string `json:"neighborPort"`
	} `json:"lldpNeighbors"`
}

// toNeighbors 把结构化输出转成归一化记录。
func (r lldpNeighborsJSON) toNeighbors() []neighbor {
	neighbors := make([]neighbor, 0, len(r.LLDPNeighbors))
	for _, n := range r.LLDPNeighbors {
		if n.Port == "" || n.NeighborDevice == "" || n.NeighborPort == "" {
			continue
		}
		neighbors = append(neighbors, neighbor{
			LocalPort:  n.Port,
			PeerDevice: trimFQDN(n.NeighborDevice),
			PeerPort:   n.NeighborPort,
		})
	}
	return neighbors
}

// parseNeighborsTable 解析表格形式的邻居输出。
// 支持两种常见列序：
//
//	Port  Neighbor Device ID  Neighbor Port ID  TTL        （本端口在前）
//	Device ID  Local Intf  Hold-time  Capability  Port ID  （设备名在前）
func parseNeighborsTable(output string) []neighbor {
	lines := strings.Split(output, "\n")

	layout := 0 // 0 未识别，1 本端口在前，2 设备名在前
	var neighbors []neighbor
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if layout == 0 {
			lower := strings.ToLower(trimmed)
			switch {
			case strings.HasPrefix(lower, "port") && strings.Contains(lower, "neighbor"):
				layout = 1
			case strings.HasPrefix(lower, "device id") && strings.Contains(lower, "port id"):
				layout = 2
			}
			continue
		}

		fields := strings.Fields(trimmed)
		if len(fields) < 3 {
			continue
		}

		switch layout {
		case 1:
			neighbors = append(neighbors, neighbor{
				LocalPort:  fields[0],
				PeerDevice: trimFQDN(fields[1]),
				PeerPort:   fields[2],
			})
		case 2:
			neighbors = append(neighbors, neighbor{
				LocalPort:  fields[1],
				PeerDevice: trimFQDN(fields[0]),
				PeerPort:   fields[len(fields)-1],
			})
		}
	}
	return neighbors
}

// trimFQDN LLDP 上报的设备名可能带域名后缀，取主机名部分。
func trimFQDN(name string) string {
	if i := strings.Index(name, "."); i > 0 {
		return name[:i]
	}
	return name
}

// findPeer 在邻居表中查找指定本端接口的对端。
func findPeer(neighbors []neighbor, iface string) *domain.PeerLink {
	for _, n := range neighbors {
		if SameInterface(n.LocalPort, iface) {
			return &domain.PeerLink{
				PeerDevice:    n.PeerDevice,
				PeerInterface: domain.CanonInterface(n.PeerPort),
			}
		}
	}
	return nil
}
