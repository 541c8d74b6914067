package opensearch

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/domain"
	opensearchsdk "github.com/opensearch-project/opensearch-go/v2"
	. "github.com/smartystreets/goconvey/convey"
)

// mockTransport 实现 http.RoundTripper 接口，用于 mock HTTP 响应
type mockTransport struct {
	response *http.Response
	err      error
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

// newMockClient 创建带有 mock transport 的 OpenSearch 客户端
func newMockClient(statusCode int, body string) *opensearchsdk.Client {
	transport := &mockTransport{
		response: &http.Response{
			StatusCode: statusCode,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
		},
	}
	transport.response.Header.Set("Content-Type", "application/json")

	client, _ := opensearchsdk.NewClient(opensearchsdk.Config{
		Transport: transport,
		Addresses: []string{"http://localhost:9200"},
	})
	return client
}

// newMockClientWithError 创建返回错误的 mock 客户端
func newMockClientWithError(err error) *opensearchsdk.Client {
	transport := &mockTransport{
		err: err,
	}
	client, _ := opensearchsdk.NewClient(opensearchsdk.Config{
		Transport: transport,
		Addresses: []string{"http://localhost:9200"},
	})
	return client
}

func TestNewWorkflowRunStore(t *testing.T) {
	Convey("TestNewWorkflowRunStore", t, func() {
		Convey("成功创建 WorkflowRunStore", func() {
			client := newMockClient(200, `{}`)
			store := NewWorkflowRunStore(client)

			So(store, ShouldNotBeNil)
			So(store.client, ShouldEqual, client)
		})

		Convey("使用 nil client 创建", func() {
			store := NewWorkflowRunStore(nil)

			So(store, ShouldNotBeNil)
			So(store.client, ShouldBeNil)
		})
	})
}

func TestWorkflowRunStore_Upsert(t *testing.T) {
	Convey("TestWorkflowRunStore_Upsert", t, func() {
		ctx := context.Background()

		Convey("client 为 nil 返回错误", func() {
			store := &WorkflowRunStore{client: nil}
			record := domain.WorkflowRecord{RunID: 1}

			err := store.Upsert(ctx, record)

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "opensearch client 未初始化")
		})

		Convey("run_id 为空返回错误", func() {
			client := newMockClient(200, `{}`)
			store := NewWorkflowRunStore(client)
			record := domain.WorkflowRecord{RunID: 0}

			err := store.Upsert(ctx, record)

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "run_id 不能为空")
		})

		Convey("成功写入 WorkflowRecord", func() {
			client := newMockClient(201, `{"result": "created"}`)
			store := NewWorkflowRunStore(client)

			record := domain.WorkflowRecord{
				RunID:     1,
				Workflow:  domain.WorkflowQuarantine,
				Phase:     domain.PhaseEnd,
				Outcome:   domain.OutcomeComplete,
				Device:    "r1",
				Interface: "Ethernet2",
				AlertName: domain.AlertNamePeerInterfaceFlapping,
				Timestamp: time.Now(),
			}

			err := store.Upsert(ctx, record)

			So(err, ShouldBeNil)
		})

		Convey("写入失败返回错误", func() {
			client := newMockClientWithError(io.ErrUnexpectedEOF)
			store := NewWorkflowRunStore(client)

			record := domain.WorkflowRecord{RunID: 2, Timestamp: time.Now()}

			err := store.Upsert(ctx, record)

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "写入 WorkflowRecord 失败")
		})

		Convey("OpenSearch 返回错误响应", func() {
			client := newMockClient(400, `{"error": {"type": "mapper_parsing_exception", "reason": "failed to parse"}, "status": 400}`)
			store := NewWorkflowRunStore(client)

			record := domain.WorkflowRecord{RunID: 3, Timestamp: time.Now()}

			err := store.Upsert(ctx, record)

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "mapper_parsing_exception")
		})
	})
}

func TestWorkflowRunStore_QueryByIDs(t *testing.T) {
	Convey("TestWorkflowRunStore_QueryByIDs", t, func() {
		ctx := context.Background()

		Convey("client 为 nil 返回错误", func() {
			store := &WorkflowRunStore{client: nil}

			records, err := store.QueryByIDs(ctx, []uint64{1})

			So(err, ShouldNotBeNil)
			So(records, ShouldBeNil)
		})

		Convey("ids 为空返回 nil", func() {
			client := newMockClient(200, `{}`)
			store := NewWorkflowRunStore(client)

			records, err := store.QueryByIDs(ctx, nil)

			So(err, ShouldBeNil)
			So(records, ShouldBeNil)
		})

		Convey("成功查询多条记录", func() {
			body := `{
				"docs": [
					{"found": true, "_source": {"run_id": 1, "workflow": "quarantine", "outcome": "complete", "device": "r1", "interface": "Ethernet2"}},
					{"found": false},
					{"found": true, "_source": {"run_id": 2, "workflow": "restore", "outcome": "skipped_not_ours", "device": "r1", "interface": "Ethernet2"}}
				]
			}`
			client := newMockClient(200, body)
			store := NewWorkflowRunStore(client)

			records, err := store.QueryByIDs(ctx, []uint64{1, 99, 2})

			So(err, ShouldBeNil)
			So(len(records), ShouldEqual, 2)
			So(records[0].RunID, ShouldEqual, 1)
			So(records[0].Workflow, ShouldEqual, domain.WorkflowQuarantine)
			So(records[1].Outcome, ShouldEqual, domain.OutcomeSkippedNotOurs)
		})

		Convey("查询失败返回错误", func() {
			client := newMockClientWithError(io.ErrUnexpectedEOF)
			store := NewWorkflowRunStore(client)

			records, err := store.QueryByIDs(ctx, []uint64{1})

			So(err, ShouldNotBeNil)
			So(records, ShouldBeNil)
		})
	})
}

func TestWorkflowRunStore_QueryByLink(t *testing.T) {
	Convey("TestWorkflowRunStore_QueryByLink", t, func() {
		ctx := context.Background()

		Convey("client 为 nil 返回错误", func() {
			store := &WorkflowRunStore{client: nil}

			records, err := store.QueryByLink(ctx, domain.NewLinkRef("r1", "Ethernet2"), 10)

			So(err, ShouldNotBeNil)
			So(records, ShouldBeNil)
		})

		Convey("device 为空返回错误", func() {
			client := newMockClient(200, `{}`)
			store := NewWorkflowRunStore(client)

			records, err := store.QueryByLink(ctx, domain.LinkRef{}, 10)

			So(err, ShouldNotBeNil)
			So(records, ShouldBeNil)
		})

		Convey("成功按链路查询", func() {
			body := `{
				"hits": {
					"hits": [
						{"_source": {"run_id": 5, "workflow": "quarantine", "phase": "end", "outcome": "complete", "device": "r1", "interface": "Ethernet2", "peer_device": "r2", "peer_interface": "Ethernet3"}}
					]
				}
			}`
			client := newMockClient(200, body)
			store := NewWorkflowRunStore(client)

			records, err := store.QueryByLink(ctx, domain.NewLinkRef("r1", "Ethernet2"), 10)

			So(err, ShouldBeNil)
			So(len(records), ShouldEqual, 1)
			So(records[0].RunID, ShouldEqual, 5)
			So(records[0].PeerDevice, ShouldEqual, "r2")
		})

		Convey("OpenSearch 返回错误响应", func() {
			client := newMockClient(404, `{"error": {"type": "index_not_found_exception", "reason": "no such index"}, "status": 404}`)
			store := NewWorkflowRunStore(client)

			records, err := store.QueryByLink(ctx, domain.NewLinkRef("r1", "Ethernet2"), 10)

			So(err, ShouldNotBeNil)
			So(records, ShouldBeNil)
		})
	})
}
