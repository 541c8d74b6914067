package opensearch

import (
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/core"
	"github.com/opensearch-project/opensearch-go/v2"
)

type RepositoryFactory struct {
	client *opensearch.Client

	workflowRunStore core.WorkflowRecordRepository
}

func NewRepositoryFactory(client *opensearch.Client) *RepositoryFactory {
	return &RepositoryFactory{client: client}
}

func (r *RepositoryFactory) WorkflowRuns() core.WorkflowRecordRepository {
	if r.workflowRunStore == nil {
		r.workflowRunStore = NewWorkflowRunStore(r.client)
	}
	return r.workflowRunStore
}
