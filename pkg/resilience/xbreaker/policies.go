package xbreaker

import "github.com/sony/gobreaker/v2"

type (
	// Counts 统计计数，用于熔断判定。
	Counts = gobreaker.Counts

	// State 熔断器状态。
	State = gobreaker.State
)

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// TripPolicy 熔断判定策略。ReadyToTrip 返回 true 时 CallGuard 从 Closed 转为 Open。
type TripPolicy interface {
	ReadyToTrip(counts Counts) bool
}

// ConsecutiveFailuresPolicy 连续失败达到阈值时触发熔断。
type ConsecutiveFailuresPolicy struct {
	threshold uint32
}

// NewConsecutiveFailures 创建连续失败熔断策略，threshold 为 0 时按 1 处理。
func NewConsecutiveFailures(threshold uint32) *ConsecutiveFailuresPolicy {
	if threshold == 0 {
		threshold = 1
	}
	return &ConsecutiveFailuresPolicy{threshold: threshold}
}

// ReadyToTrip 实现 TripPolicy。
func (p *ConsecutiveFailuresPolicy) ReadyToTrip(counts Counts) bool {
	return counts.ConsecutiveFailures >= p.threshold
}

// Threshold 返回阈值。
func (p *ConsecutiveFailuresPolicy) Threshold() uint32 {
	return p.threshold
}

// FailureRatioPolicy 请求数不少于 minRequests 且失败率达到 ratio 时触发熔断。
type FailureRatioPolicy struct {
	ratio       float64
	minRequests uint32
}

// NewFailureRatio 创建失败率熔断策略，ratio 被限制在 [0, 1]。
func NewFailureRatio(ratio float64, minRequests uint32) *FailureRatioPolicy {
	ratio = min(max(ratio, 0), 1)
	return &FailureRatioPolicy{ratio: ratio, minRequests: minRequests}
}

// ReadyToTrip 实现 TripPolicy。
func (p *FailureRatioPolicy) ReadyToTrip(counts Counts) bool {
	if counts.Requests == 0 || counts.Requests < p.minRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= p.ratio
}

// AnyPolicy 任一子策略满足即触发熔断，nil 子策略被忽略。
func AnyPolicy(policies ...TripPolicy) TripPolicy {
	filtered := make(anyPolicy, 0, len(policies))
	for _, p := range policies {
		if p != nil {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

type anyPolicy []TripPolicy

func (a anyPolicy) ReadyToTrip(counts Counts) bool {
	for _, p := range a {
		if p.ReadyToTrip(counts) {
			return true
		}
	}
	return false
}
