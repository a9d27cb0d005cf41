package _const

import "fmt"

// ConnectionPolicy 同一用户重复注册连接时的处理策略
type ConnectionPolicy int

const (
	ReplaceConnectionPolicy   ConnectionPolicy = 0x00000001 // 替换映射，旧连接保持打开
	CloseOldConnectionPolicy  ConnectionPolicy = 0x00000002 // 替换映射并关闭旧连接
	RejectNewConnectionPolicy ConnectionPolicy = 0x00000003 // 旧连接存在时拒绝新连接
)

func (p ConnectionPolicy) String() string {
	switch p {
	case ReplaceConnectionPolicy:
		return "replace"
	case CloseOldConnectionPolicy:
		return "close-old"
	case RejectNewConnectionPolicy:
		return "reject-new"
	default:
		return "unknown"
	}
}

// ParseConnectionPolicy 解析配置中的策略名称，空值使用replace
func ParseConnectionPolicy(s string) (ConnectionPolicy, error) {
	switch s {
	case "", "replace":
		return ReplaceConnectionPolicy, nil
	case "close-old":
		return CloseOldConnectionPolicy, nil
	case "reject-new":
		return RejectNewConnectionPolicy, nil
	default:
		return 0, fmt.Errorf("unknown connection policy %q", s)
	}
}
