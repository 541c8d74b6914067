package timex

import (
	"time"
)

// FormatRFC3339UTC 将时间统一转成 UTC 的 RFC3339 字符串，
// 告警后端（Alertmanager）的静默接口要求该格式。
func FormatRFC3339UTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
