package framework

import "time"

// Message 队列消息
type Message struct {
	ID         string
	Queue      string
	Data       []byte    // 原始 Job 数据
	ReceivedAt time.Time // 拉取时间，用于统计排队耗时
}
