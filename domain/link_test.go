package domain

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCanonInterface(t *testing.T) {
	Convey("测试 CanonInterface", t, func() {
		Convey("去掉括号等装饰内容只保留首个 token", func() {
			So(CanonInterface("Ethernet2 (connected)"), ShouldEqual, "Ethernet2")
			So(CanonInterface("Gi1/0/1, up"), ShouldEqual, "Gi1/0/1")
			So(CanonInterface("  Port-Channel1  "), ShouldEqual, "Port-Channel1")
		})

		Convey("规整是幂等的", func() {
			inputs := []string{
				"Ethernet2 (connected)",
				"GigabitEthernet1/0/1",
				"Et2",
				"  TenGigE0/0/0/1 admin-down  ",
				"",
				"2/0/1",
			}
			for _, in := range inputs {
				once := CanonInterface(in)
				So(CanonInterface(once), ShouldEqual, once)
			}
		})

		Convey("无法匹配 token 时原样返回去空格后的输入", func() {
			So(CanonInterface("2/0/1"), ShouldEqual, "2/0/1")
			So(CanonInterface("   "), ShouldEqual, "")
		})
	})
}

func TestLinkRef(t *testing.T) {
	Convey("测试 LinkRef", t, func() {
		Convey("NewLinkRef 创建时规整接口名", func() {
			link := NewLinkRef(" r1 ", "Ethernet2 (connected)")
			So(link.Device, ShouldEqual, "r1")
			So(link.Interface, ShouldEqual, "Ethernet2")
		})

		Convey("Key 小写且将斜杠替换为横杠", func() {
			link := NewLinkRef("R1", "GigabitEthernet1/0/1")
			So(link.Key(), ShouldEqual, "r1:gigabitethernet1-0-1")
		})

		Convey("同一链路的不同写法产生相同的 Key", func() {
			a := NewLinkRef("r1", "Ethernet2")
			b := NewLinkRef("r1", "Ethernet2 (connected)")
			So(a.Key(), ShouldEqual, b.Key())
		})

		Convey("String 返回 device/interface 形式", func() {
			So(NewLinkRef("r1", "Ethernet2").String(), ShouldEqual, "r1/Ethernet2")
		})
	})
}

func TestAlertGroupLinks(t *testing.T) {
	Convey("测试 AlertGroup 链路提取", t, func() {
		Convey("提取去重后的链路列表", func() {
			group := AlertGroup{
				Status:      AlertStatusFiring,
				GroupLabels: map[string]string{"alertname": AlertNamePeerInterfaceFlapping},
				Alerts: []Alert{
					{Labels: map[string]string{"device": "r1", "interface": "Ethernet2"}},
					{Labels: map[string]string{"device": "r1", "interface": "Ethernet2 (connected)"}},
					{Labels: map[string]string{"device": "r2", "interface": "Ethernet3"}},
				},
			}
			links := group.Links()
			So(links, ShouldResemble, []LinkRef{
				{Device: "r1", Interface: "Ethernet2"},
				{Device: "r2", Interface: "Ethernet3"},
			})
		})

		Convey("缺失 device 或 interface 标签的告警被跳过", func() {
			group := AlertGroup{
				Alerts: []Alert{
					{Labels: map[string]string{"device": "r1"}},
					{Labels: map[string]string{"interface": "Ethernet2"}},
					{Labels: map[string]string{}},
				},
			}
			So(group.Links(), ShouldBeEmpty)
		})

		Convey("AlertName 返回 groupLabels 中的 alertname", func() {
			group := AlertGroup{GroupLabels: map[string]string{"alertname": AlertNamePeerInterfaceFlapping}}
			So(group.AlertName(), ShouldEqual, "PeerInterfaceFlapping")
			So(AlertGroup{}.AlertName(), ShouldBeEmpty)
		})
	})
}
