package domain

// AlertStatus 告警组状态。
type AlertStatus string

const (
	AlertStatusFiring   AlertStatus = "firing"
	AlertStatusResolved AlertStatus = "resolved"
)

const (
	// AlertNamePeerInterfaceFlapping 由 Loki 告警规则产生的链路抖动告警名。
	AlertNamePeerInterfaceFlapping = "PeerInterfaceFlapping"
)

// Alert 是 Alertmanager webhook 中的单条告警。
type Alert struct {
	Status       string            `json:"status"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     string            `json:"startsAt"`
	EndsAt       string            `json:"endsAt"`
	GeneratorURL string            `json:"generatorURL"`
	Fingerprint  string            `json:"fingerprint"`
}

// AlertGroup 是 Alertmanager webhook 推送的告警组。
type AlertGroup struct {
	Version           string            `json:"version"`
	GroupKey          string            `json:"groupKey"`
	TruncatedAlerts   int               `json:"truncatedAlerts"`
	Status            AlertStatus       `json:"status"`
	Receiver          string            `json:"receiver"`
	GroupLabels       map[string]string `json:"groupLabels"`
	CommonLabels      map[string]string `json:"commonLabels"`
	CommonAnnotations map[string]string `json:"commonAnnotations"`
	ExternalURL       string            `json:"externalURL"`
	Alerts            []Alert           `json:"alerts"`
}

// AlertName 返回告警组的 alertname 标签，缺失时为空串。
func (g AlertGroup) AlertName() string {
	return g.GroupLabels["alertname"]
}

// Links 从告警组中提取去重后的 (device, interface) 链路列表，接口名已规整。
// device 或 interface 标签缺失的告警直接跳过。
func (g AlertGroup) Links() []LinkRef {
	seen := make(map[string]struct{}, len(g.Alerts))
	var links []LinkRef
	for _, a := range g.Alerts {
		device := a.Labels["device"]
		iface := a.Labels["interface"]
		if device == "" || iface == "" {
			continue
		}
		link := NewLinkRef(device, iface)
		if _, ok := seen[link.Key()]; ok {
			continue
		}
		seen[link.Key()] = struct{}{}
		links = append(links, link)
	}
	return links
}

// Silence 是在告警后端创建的时间窗静默规则。
// 生命周期：创建 ->（可选）删除；没有更新操作。
type Silence struct {
	ID        string `json:"id"`         // 后端分配的静默 ID
	Device    string `json:"device"`     // 匹配的设备标签
	Interface string `json:"interface"`  // 匹配的接口标签
	AlertName string `json:"alertname"`  // 匹配的告警名标签
	StartsAt  string `json:"starts_at"`  // 静默开始时间（RFC3339）
	EndsAt    string `json:"ends_at"`    // 静默结束时间（RFC3339）
}
