package linkstate

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-link-remediation/infra/log"
)

// ReadState 读取接口当前状态并归一化。
// 上层判定逻辑只依赖返回的 InterfaceState，不接触设备输出文本。
func ReadState(ctx context.Context, sess core.DeviceSession, iface string) (domain.InterfaceState, error) {
	output, err := sess.Run(ctx, ShowInterfaceCmd(iface))
	if err != nil {
		return domain.InterfaceState{}, errors.Wrapf(err, "读取接口 %s 状态失败", iface)
	}
	return domain.InterfaceState{
		AdminDown:   parseAdminDown(output),
		Description: parseDescription(output),
	}, nil
}

// HasSentinel 判断接口描述是否带有本系统的哨兵标记。
// 不区分大小写的子串匹配：运维在描述后追加备注或厂商改写大小写都不影响识别。
func HasSentinel(description string) bool {
	return strings.Contains(strings.ToUpper(description), SentinelDescription)
}

// IsQuarantined 判定接口是否处于本系统的隔离态。
// 必须同时满足管理性关闭与哨兵描述；只关未标记（或只标记未关）都不算。
func IsQuarantined(state domain.InterfaceState) bool {
	return state.AdminDown && HasSentinel(state.Description)
}

// Quarantine 关闭接口并写入哨兵描述，两条变更在同一配置批次内下发。
func Quarantine(ctx context.Context, sess core.DeviceSession, iface string) error {
	if err := sess.Configure(ctx, QuarantineCmds(iface)); err != nil {
		return errors.Wrapf(err, "隔离接口 %s 失败", iface)
	}
	saveConfig(ctx, sess, iface)
	return nil
}

// Restore 启用接口并清除描述，两条变更在同一配置批次内下发。
func Restore(ctx context.Context, sess core.DeviceSession, iface string) error {
	if err := sess.Configure(ctx, RestoreCmds(iface)); err != nil {
		return errors.Wrapf(err, "恢复接口 %s 失败", iface)
	}
	saveConfig(ctx, sess, iface)
	return nil
}

// saveConfig 持久化运行配置，失败只记日志，不阻断工作流。
func saveConfig(ctx context.Context, sess core.DeviceSession, iface string) {
	if _, err := sess.Run(ctx, SaveConfigCmd); err != nil {
		log.Warnf("接口 %s 变更后保存配置失败: %v", iface, err)
	}
}
