package notifier

// Notifier 接收回测运行完成后的文本通知。实现必须尽力而为：
// 通知失败只记日志，绝不影响回测结果。
type Notifier interface {
	SendText(text string) error
}
