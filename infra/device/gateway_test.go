package device

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewGateway(t *testing.T) {
	Convey("TestNewGateway", t, func() {
		Convey("缺省字段回落默认值", func() {
			g := NewGateway(Config{Username: "ops"}, nil)

			So(g.cfg.Port, ShouldEqual, 22)
			So(g.cfg.ConnectTimeout, ShouldEqual, 10*time.Second)
			So(g.cfg.CommandTimeout, ShouldEqual, 30*time.Second)
		})

		Convey("显式配置不被覆盖", func() {
			g := NewGateway(Config{
				Port:           2222,
				ConnectTimeout: time.Second,
				CommandTimeout: 5 * time.Second,
			}, nil)

			So(g.cfg.Port, ShouldEqual, 2222)
			So(g.cfg.ConnectTimeout, ShouldEqual, time.Second)
		})
	})
}

func TestGateway_Connect(t *testing.T) {
	Convey("TestGateway_Connect", t, func() {
		ctx := context.Background()

		Convey("device 为空返回错误", func() {
			g := NewGateway(Config{}, func(ctx context.Context, device string) (string, error) {
				return "10.0.0.1", nil
			})

			sess, err := g.Connect(ctx, "")
			So(err, ShouldNotBeNil)
			So(sess, ShouldBeNil)
		})

		Convey("解析器未注入返回错误", func() {
			g := NewGateway(Config{}, nil)

			sess, err := g.Connect(ctx, "r1")
			So(err, ShouldNotBeNil)
			So(sess, ShouldBeNil)
			So(err.Error(), ShouldContainSubstring, "解析器未注入")
		})

		Convey("地址解析失败返回错误", func() {
			g := NewGateway(Config{}, func(ctx context.Context, device string) (string, error) {
				return "", errors.New("not found")
			})

			sess, err := g.Connect(ctx, "r1")
			So(err, ShouldNotBeNil)
			So(sess, ShouldBeNil)
			So(err.Error(), ShouldContainSubstring, "解析设备 r1 地址失败")
		})

		Convey("无法连接的地址返回错误", func() {
			g := NewGateway(Config{ConnectTimeout: 100 * time.Millisecond}, func(ctx context.Context, device string) (string, error) {
				// RFC 5737 测试地址段，保证连接失败
				return "192.0.2.1", nil
			})

			timeoutCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
			defer cancel()

			sess, err := g.Connect(timeoutCtx, "r1")
			So(err, ShouldNotBeNil)
			So(sess, ShouldBeNil)
		})
	})
}

func TestConfigScript(t *testing.T) {
	Convey("TestConfigScript", t, func() {
		Convey("变更命令包裹在配置模式内", func() {
			script := configScript([]string{
				"interface Ethernet2",
				"shutdown",
				`description QUARANTINED_BY_ITOPS`,
			})

			So(script, ShouldEqual, "configure terminal\ninterface Ethernet2\nshutdown\ndescription QUARANTINED_BY_ITOPS\nend")
		})
	})
}
