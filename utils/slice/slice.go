package slice

import (
	"strings"

	"github.com/spf13/cast"
)

// AppendUniqueString 向 string 切片追加元素，如果元素已存在则不追加。
func AppendUniqueString(list []string, v string) []string {
	for _, item := range list {
		if item == v {
			return list
		}
	}
	return append(list, v)
}

// ContainsString 检查 string 切片是否包含指定元素。
func ContainsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// SplitToUint64s 将逗号分隔的字符串解析为 uint64 切片，跳过空串与非法值。
func SplitToUint64s(value string) []uint64 {
	var result []uint64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if len(part) > 0 {
			id := cast.ToUint64(part)
			if id != 0 {
				result = append(result, id)
			}
		}
	}
	return result
}
