package opensearch

// 基础索引名称
const (
	WorkflowRunIndexBase = "itops_link_workflow_run"

	maxQuerySize = 5000
	indexPrefix  = "mdl-"
)

// 实际索引名称
var (
	WorkflowRunIndex = indexPrefix + WorkflowRunIndexBase
)
