package opensearch

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRepositoryFactory(t *testing.T) {
	Convey("TestRepositoryFactory", t, func() {
		client := newMockClient(200, `{}`)
		factory := NewRepositoryFactory(client)

		Convey("WorkflowRuns 懒加载且同实例复用", func() {
			store1 := factory.WorkflowRuns()
			store2 := factory.WorkflowRuns()

			So(store1, ShouldNotBeNil)
			So(store1, ShouldEqual, store2)
		})
	})
}
