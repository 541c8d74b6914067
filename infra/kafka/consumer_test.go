package kafka

import (
	"context"
	"testing"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/core"
	"github.com/agiledragon/gomonkey/v2"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewConsumer(t *testing.T) {
	Convey("TestNewConsumer", t, func() {
		Convey("GroupID 缺省时使用默认消费组", func() {
			cfg := alertEventsConfig()

			consumer, err := NewConsumer(cfg)

			So(err, ShouldBeNil)
			So(consumer, ShouldNotBeNil)
			c := consumer.(*Consumer)
			So(c.reader, ShouldNotBeNil)
			So(c.reader.Config().GroupID, ShouldEqual, defaultGroupID)

			_ = c.reader.Close()
		})

		Convey("自定义 GroupID", func() {
			cfg := alertEventsConfig()
			cfg.GroupID = "itops-link-remediation-canary"

			consumer, err := NewConsumer(cfg)

			So(err, ShouldBeNil)
			c := consumer.(*Consumer)
			So(c.reader.Config().GroupID, ShouldEqual, "itops-link-remediation-canary")

			_ = consumer.Close()
		})

		Convey("使用 SASL 认证", func() {
			cfg := alertEventsConfig()
			cfg.SASL = &SASLConfig{
				Enabled:   true,
				Mechanism: "PLAIN",
				Username:  "itops",
				Password:  "secret",
			}

			consumer, err := NewConsumer(cfg)

			So(err, ShouldBeNil)
			So(consumer, ShouldNotBeNil)
			_ = consumer.Close()
		})

		Convey("SASL 机制不支持返回错误", func() {
			cfg := alertEventsConfig()
			cfg.SASL = &SASLConfig{
				Enabled:   true,
				Mechanism: "GSSAPI",
				Username:  "itops",
				Password:  "secret",
			}

			consumer, err := NewConsumer(cfg)

			So(err, ShouldNotBeNil)
			So(consumer, ShouldBeNil)
			So(err.Error(), ShouldContainSubstring, "构建 SASL 认证失败")
		})
	})
}

func TestConsumer_Close(t *testing.T) {
	Convey("TestConsumer_Close", t, func() {
		Convey("reader 为 nil 时关闭返回 nil", func() {
			consumer := &Consumer{reader: nil}

			So(consumer.Close(), ShouldBeNil)
		})

		Convey("成功关闭 reader", func() {
			consumer, _ := NewConsumer(alertEventsConfig())

			So(consumer.Close(), ShouldBeNil)
		})
	})
}

func TestConsumer_ConsumeAlertEvents(t *testing.T) {
	Convey("TestConsumer_ConsumeAlertEvents", t, func() {
		noopHandler := func(ctx context.Context, msg core.KafkaMessage) error { return nil }

		Convey("reader 为 nil 返回错误", func() {
			consumer := &Consumer{reader: nil}

			err := consumer.ConsumeAlertEvents(context.Background(), noopHandler)

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "kafka reader 未初始化")
		})

		Convey("context 取消时返回 context 错误", func() {
			consumer, _ := NewConsumer(alertEventsConfig())
			c := consumer.(*Consumer)
			defer c.Close()

			patches := gomonkey.ApplyMethod(c.reader, "FetchMessage",
				func(_ *kafka.Reader, ctx context.Context) (kafka.Message, error) {
					return kafka.Message{}, context.Canceled
				})
			defer patches.Reset()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := consumer.ConsumeAlertEvents(ctx, noopHandler)

			So(err, ShouldNotBeNil)
		})

		Convey("FetchMessage 失败返回错误", func() {
			consumer, _ := NewConsumer(alertEventsConfig())
			c := consumer.(*Consumer)
			defer c.Close()

			fetchErr := errors.New("fetch failed")
			patches := gomonkey.ApplyMethod(c.reader, "FetchMessage",
				func(_ *kafka.Reader, ctx context.Context) (kafka.Message, error) {
					return kafka.Message{}, fetchErr
				})
			defer patches.Reset()

			err := consumer.ConsumeAlertEvents(context.Background(), noopHandler)

			So(err, ShouldNotBeNil)
			So(err, ShouldEqual, fetchErr)
		})

		Convey("消费告警组并提交位点", func() {
			consumer, _ := NewConsumer(alertEventsConfig())
			c := consumer.(*Consumer)
			defer c.Close()

			groupJSON := `{"status":"firing","groupKey":"group-r1-eth2"}`
			var handled []core.KafkaMessage
			fetches := 0

			ctx, cancel := context.WithCancel(context.Background())

			patches := gomonkey.ApplyMethod(c.reader, "FetchMessage",
				func(_ *kafka.Reader, ctx context.Context) (kafka.Message, error) {
					fetches++
					if fetches > 1 {
						cancel()
						return kafka.Message{}, context.Canceled
					}
					return kafka.Message{
						Key:       []byte("group-r1-eth2"),
						Value:     []byte(groupJSON),
						Partition: 2,
						Offset:    4096,
						Time:      time.Now(),
					}, nil
				})
			defer patches.Reset()

			patches.ApplyMethod(c.reader, "CommitMessages",
				func(_ *kafka.Reader, ctx context.Context, msgs ...kafka.Message) error {
					return nil
				})

			err := consumer.ConsumeAlertEvents(ctx, func(ctx context.Context, msg core.KafkaMessage) error {
				handled = append(handled, msg)
				return nil
			})

			So(err, ShouldNotBeNil)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(len(handled), ShouldEqual, 1)
			So(handled[0].Key, ShouldEqual, "group-r1-eth2")
			So(string(handled[0].Value), ShouldEqual, groupJSON)
			So(handled[0].Partition, ShouldEqual, int32(2))
			So(handled[0].Offset, ShouldEqual, int64(4096))
		})

		Convey("handler 失败不阻塞后续消费", func() {
			consumer, _ := NewConsumer(alertEventsConfig())
			c := consumer.(*Consumer)
			defer c.Close()

			fetches := 0
			handlerCalls := 0

			ctx, cancel := context.WithCancel(context.Background())

			patches := gomonkey.ApplyMethod(c.reader, "FetchMessage",
				func(_ *kafka.Reader, ctx context.Context) (kafka.Message, error) {
					fetches++
					if fetches > 2 {
						cancel()
						return kafka.Message{}, context.Canceled
					}
					return kafka.Message{
						Key:   []byte("group-r1-eth2"),
						Value: []byte(`not-json`),
					}, nil
				})
			defer patches.Reset()

			patches.ApplyMethod(c.reader, "CommitMessages",
				func(_ *kafka.Reader, ctx context.Context, msgs ...kafka.Message) error {
					return nil
				})

			err := consumer.ConsumeAlertEvents(ctx, func(ctx context.Context, msg core.KafkaMessage) error {
				handlerCalls++
				return errors.New("handler error")
			})

			So(err, ShouldNotBeNil)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(handlerCalls, ShouldEqual, 2)
		})

		Convey("CommitMessages 失败返回错误", func() {
			consumer, _ := NewConsumer(alertEventsConfig())
			c := consumer.(*Consumer)
			defer c.Close()

			patches := gomonkey.ApplyMethod(c.reader, "FetchMessage",
				func(_ *kafka.Reader, ctx context.Context) (kafka.Message, error) {
					return kafka.Message{
						Key:   []byte("group-r1-eth2"),
						Value: []byte(`{}`),
					}, nil
				})
			defer patches.Reset()

			patches.ApplyMethod(c.reader, "CommitMessages",
				func(_ *kafka.Reader, ctx context.Context, msgs ...kafka.Message) error {
					return errors.New("commit failed")
				})

			err := consumer.ConsumeAlertEvents(context.Background(), noopHandler)

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "commit kafka offset")
		})
	})
}
