package kafka

import (
	"context"
	"testing"

	"github.com/agiledragon/gomonkey/v2"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	. "github.com/smartystreets/goconvey/convey"
)

func alertEventsConfig() Config {
	return Config{
		Brokers: []string{"kafka-1:9092"},
		Topic:   "alert_events",
	}
}

func TestNewProducer(t *testing.T) {
	Convey("TestNewProducer", t, func() {
		Convey("无 SASL 认证", func() {
			producer, err := NewProducer(alertEventsConfig())

			So(err, ShouldBeNil)
			So(producer, ShouldNotBeNil)
			p := producer.(*Producer)
			So(p.writer, ShouldNotBeNil)

			_ = p.writer.Close()
		})

		Convey("多个 Broker", func() {
			cfg := alertEventsConfig()
			cfg.Brokers = []string{"kafka-1:9092", "kafka-2:9092", "kafka-3:9092"}

			producer, err := NewProducer(cfg)

			So(err, ShouldBeNil)
			So(producer, ShouldNotBeNil)
			_ = producer.Close()
		})

		Convey("各类 SASL 机制", func() {
			for _, mechanism := range []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"} {
				cfg := alertEventsConfig()
				cfg.SASL = &SASLConfig{
					Enabled:   true,
					Mechanism: mechanism,
					Username:  "itops",
					Password:  "secret",
				}

				producer, err := NewProducer(cfg)

				So(err, ShouldBeNil)
				So(producer, ShouldNotBeNil)
				_ = producer.Close()
			}
		})

		Convey("SASL 未启用时忽略机制配置", func() {
			cfg := alertEventsConfig()
			cfg.SASL = &SASLConfig{
				Enabled:   false,
				Mechanism: "PLAIN",
				Username:  "itops",
				Password:  "secret",
			}

			producer, err := NewProducer(cfg)

			So(err, ShouldBeNil)
			So(producer, ShouldNotBeNil)
			_ = producer.Close()
		})

		Convey("不支持的 SASL 机制返回错误", func() {
			cfg := alertEventsConfig()
			cfg.SASL = &SASLConfig{
				Enabled:   true,
				Mechanism: "GSSAPI",
				Username:  "itops",
				Password:  "secret",
			}

			producer, err := NewProducer(cfg)

			So(err, ShouldNotBeNil)
			So(producer, ShouldBeNil)
			So(err.Error(), ShouldContainSubstring, "构建 SASL 认证失败")
		})
	})
}

func TestProducer_Close(t *testing.T) {
	Convey("TestProducer_Close", t, func() {
		Convey("writer 为 nil 时关闭返回 nil", func() {
			producer := &Producer{writer: nil}

			So(producer.Close(), ShouldBeNil)
		})

		Convey("成功关闭 writer", func() {
			producer, _ := NewProducer(alertEventsConfig())

			So(producer.Close(), ShouldBeNil)
		})
	})
}

func TestProducer_PublishAlertEvent(t *testing.T) {
	Convey("TestProducer_PublishAlertEvent", t, func() {
		Convey("writer 为 nil 返回错误", func() {
			producer := &Producer{writer: nil}

			err := producer.PublishAlertEvent(context.Background(), "group-1", []byte(`{}`))

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "kafka writer 未初始化")
		})

		Convey("成功发布告警组", func() {
			producer, _ := NewProducer(alertEventsConfig())
			p := producer.(*Producer)
			defer p.Close()

			var written []kafka.Message
			patches := gomonkey.ApplyMethod(p.writer, "WriteMessages",
				func(_ *kafka.Writer, ctx context.Context, msgs ...kafka.Message) error {
					written = append(written, msgs...)
					return nil
				})
			defer patches.Reset()

			payload := `{"status":"firing","alerts":[{"labels":{"alertname":"PeerInterfaceFlapping","device":"r1","interface":"Ethernet2"}}]}`
			err := producer.PublishAlertEvent(context.Background(), "group-r1-eth2", []byte(payload))

			So(err, ShouldBeNil)
			So(len(written), ShouldEqual, 1)
			So(string(written[0].Key), ShouldEqual, "group-r1-eth2")
			So(string(written[0].Value), ShouldEqual, payload)
		})

		Convey("空 key 也可发布", func() {
			producer, _ := NewProducer(alertEventsConfig())
			p := producer.(*Producer)
			defer p.Close()

			var written []kafka.Message
			patches := gomonkey.ApplyMethod(p.writer, "WriteMessages",
				func(_ *kafka.Writer, ctx context.Context, msgs ...kafka.Message) error {
					written = append(written, msgs...)
					return nil
				})
			defer patches.Reset()

			err := producer.PublishAlertEvent(context.Background(), "", []byte(`{}`))

			So(err, ShouldBeNil)
			So(len(written), ShouldEqual, 1)
			So(string(written[0].Key), ShouldEqual, "")
		})

		Convey("WriteMessages 失败返回错误", func() {
			producer, _ := NewProducer(alertEventsConfig())
			p := producer.(*Producer)
			defer p.Close()

			writeErr := errors.New("write failed")
			patches := gomonkey.ApplyMethod(p.writer, "WriteMessages",
				func(_ *kafka.Writer, ctx context.Context, msgs ...kafka.Message) error {
					return writeErr
				})
			defer patches.Reset()

			err := producer.PublishAlertEvent(context.Background(), "group-1", []byte(`{}`))

			So(err, ShouldNotBeNil)
			So(err, ShouldEqual, writeErr)
		})

		Convey("context 取消时发布失败", func() {
			producer, _ := NewProducer(alertEventsConfig())
			p := producer.(*Producer)
			defer p.Close()

			patches := gomonkey.ApplyMethod(p.writer, "WriteMessages",
				func(_ *kafka.Writer, ctx context.Context, msgs ...kafka.Message) error {
					return context.Canceled
				})
			defer patches.Reset()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			err := producer.PublishAlertEvent(ctx, "group-1", []byte(`{}`))

			So(err, ShouldNotBeNil)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}
