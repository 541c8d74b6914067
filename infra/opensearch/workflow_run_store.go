package opensearch

import (
	"context"
	"time"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/log"
	opensearchsdk "github.com/opensearch-project/opensearch-go/v2"
	opensearchapi "github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// WorkflowRunStore 负责 itops_link_workflow_run 索引的全部操作。
// 每次隔离/恢复运行写入一条摘要文档，文档 ID 即运行 ID。
type WorkflowRunStore struct {
	client *opensearchsdk.Client
}

// workflowRunDocument 包装 WorkflowRecord 并补充索引所需的公共字段。
type workflowRunDocument struct {
	domain.WorkflowRecord
	Timestamp time.Time `json:"@timestamp"`
	WriteTime time.Time `json:"__write_time"`
	DataType  string    `json:"__data_type"`
	IndexBase string    `json:"__index_base"`
	Category  string    `json:"category"`
	Type      string    `json:"type"`
	ID        string    `json:"__id"`
}

func NewWorkflowRunStore(client *opensearchsdk.Client) *WorkflowRunStore {
	return &WorkflowRunStore{client: client}
}

func (s *WorkflowRunStore) Upsert(ctx context.Context, record domain.WorkflowRecord) error {
	defer func(start time.Time) {
		log.Debugw("OpenSearch",
			"operation", "WorkflowRunStore.Upsert",
			"index", WorkflowRunIndex,
			"document_id", record.RunID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}(time.Now())

	if s.client == nil {
		return errors.New("opensearch client 未初始化")
	}
	if record.RunID == 0 {
		return errors.New("run_id 不能为空")
	}

	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now().Local()
	}
	doc := workflowRunDocument{
		WorkflowRecord: record,
		Timestamp:      ts,
		WriteTime:      time.Now().Local(),
		DataType:       WorkflowRunIndexBase,
		IndexBase:      WorkflowRunIndexBase,
		Category:       "log",
		Type:           WorkflowRunIndexBase,
		ID:             cast.ToString(record.RunID),
	}

	body, err := encodeBody(doc)
	if err != nil {
		return err
	}

	req := opensearchapi.IndexRequest{
		Index:      WorkflowRunIndex,
		DocumentID: cast.ToString(record.RunID),
		Body:       body,
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return errors.Wrap(err, "写入 WorkflowRecord 失败")
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.IsError() {
		return readErrorResponse(res.Body)
	}
	return nil
}

func (s *WorkflowRunStore) QueryByIDs(ctx context.Context, ids []uint64) ([]domain.WorkflowRecord, error) {
	defer func(start time.Time) {
		log.Debugw("OpenSearch",
			"operation", "WorkflowRunStore.QueryByIDs",
			"index", WorkflowRunIndex,
			"ids_count", len(ids),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}(time.Now())

	if s.client == nil {
		return nil, errors.New("opensearch client 未初始化")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// 将 uint64 转换为 string 用于查询
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = cast.ToString(id)
	}

	body, err := encodeBody(map[string]any{"ids": strIDs})
	if err != nil {
		return nil, err
	}

	req := opensearchapi.MgetRequest{
		Index: WorkflowRunIndex,
		Body:  body,
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, errors.Wrap(err, "查询 WorkflowRecord 失败")
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.IsError() {
		return nil, readErrorResponse(res.Body)
	}
	data, err := readResponseBody(res.Body)
	if err != nil {
		return nil, err
	}
	return decodeMGet[domain.WorkflowRecord](data)
}

// QueryByLink 按链路维度检索历史运行记录，按时间倒序返回。
func (s *WorkflowRunStore) QueryByLink(ctx context.Context, link domain.LinkRef, size int) ([]domain.WorkflowRecord, error) {
	defer func(start time.Time) {
		log.Debugw("OpenSearch",
			"operation", "WorkflowRunStore.QueryByLink",
			"index", WorkflowRunIndex,
			"device", link.Device,
			"interface", link.Interface,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}(time.Now())

	if s.client == nil {
		return nil, errors.New("opensearch client 未初始化")
	}
	if link.Device == "" || link.Interface == "" {
		return nil, errors.New("device 与 interface 不能为空")
	}
	if size <= 0 || size > maxQuerySize {
		size = maxQuerySize
	}

	filters := []any{
		map[string]any{
			"term": map[string]any{"device": link.Device},
		},
		map[string]any{
			"term": map[string]any{"interface": link.Interface},
		},
	}

	body, err := encodeBody(map[string]any{
		"size": size,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": filters,
			},
		},
		"sort": []any{
			map[string]any{
				"timestamp": map[string]any{
					"order":         "desc",
					"unmapped_type": "date",
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	req := opensearchapi.SearchRequest{
		Index: []string{WorkflowRunIndex},
		Body:  body,
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, errors.Wrap(err, "搜索 WorkflowRecord 失败")
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.IsError() {
		return nil, readErrorResponse(res.Body)
	}
	data, err := readResponseBody(res.Body)
	if err != nil {
		return nil, err
	}
	return decodeSearch[domain.WorkflowRecord](data)
}

var _ core.WorkflowRecordRepository = (*WorkflowRunStore)(nil)
