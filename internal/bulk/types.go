package bulk

import (
	"context"
	"errors"
	"time"

	"github.com/move-sure/ss-transport-sub000/internal/resolver"
	"github.com/move-sure/ss-transport-sub000/internal/update"
)

// ErrAlreadyStarted 同一个 Orchestrator 只能运行一次
var ErrAlreadyStarted = errors.New("bulk orchestrator already started")

// State 运行状态
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText 序列化为字符串
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 从字符串解析，未知值视为 IDLE
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "RUNNING":
		*s = StateRunning
	case "COMPLETED":
		*s = StateCompleted
	case "CANCELLED":
		*s = StateCancelled
	default:
		*s = StateIdle
	}
	return nil
}

// WorkItem 待处理条目（由调用方根据 GR 记录构造）
type WorkItem struct {
	GroupKey    string               `json:"group_key"`   // GR 号
	GroupLabel  string               `json:"group_label"` // 展示用
	EwbID       string               `json:"ewb_number"`
	Destination resolver.Destination `json:"destination"`
}

// Progress 进度事件
type Progress struct {
	Current    int            `json:"current"`
	Total      int            `json:"total"`
	GroupLabel string         `json:"group_label"`
	EwbID      string         `json:"ewb_number"`
	Outcome    update.Outcome `json:"outcome"`
}

// Summary 运行汇总
type Summary struct {
	RunID      string           `json:"run_id"`
	State      State            `json:"state"`
	Total      int              `json:"total"`   // 待处理数量
	Skipped    int              `json:"skipped"` // 已更新而跳过的数量
	Processed  int              `json:"processed"`
	Success    int              `json:"success"`
	Failure    int              `json:"failure"`
	Outcomes   []update.Outcome `json:"outcomes"`
	Failures   []update.Outcome `json:"failures,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// Resolver 承运人解析
type Resolver interface {
	ResolveForDestination(ctx context.Context, dest resolver.Destination, groupKey string, cache resolver.CityCache) (*resolver.TransportCandidate, *resolver.LookupError)
}

// Updater 外部更新调用（两次调用的细节封装在实现中）
type Updater interface {
	PerformUpdate(ctx context.Context, ewbID string, transporterID int64, transporterName string) (*update.Outcome, *update.UpdateError)
}

// OutcomeRecorder 更新结果持久化
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, outcome *update.Outcome) error
}

// AlreadyUpdated 判断 EWB 是否已经更新过
type AlreadyUpdated func(ewbID string) bool
