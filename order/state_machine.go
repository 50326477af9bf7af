package order

import "fmt"

// StatusExpired 交易所侧过期
const StatusExpired Status = "EXPIRED"

// StateTransition 状态转换
type StateTransition struct {
	From Status
	To   Status
}

// StateMachine 订单状态机，只读表，初始化后无需加锁。
type StateMachine struct {
	transitions map[StateTransition]bool
}

// NewStateMachine 创建新的状态机
func NewStateMachine() *StateMachine {
	sm := &StateMachine{transitions: make(map[StateTransition]bool)}
	legal := []StateTransition{
		{StatusNew, StatusAck},
		{StatusNew, StatusPartial},
		{StatusNew, StatusFilled},
		{StatusNew, StatusCanceled},
		{StatusNew, StatusRejected},
		{StatusAck, StatusPartial},
		{StatusAck, StatusFilled},
		{StatusAck, StatusCanceled},
		{StatusAck, StatusExpired},
		{StatusPartial, StatusFilled},
		{StatusPartial, StatusCanceled},
		{StatusPartial, StatusExpired},
	}
	for _, t := range legal {
		sm.transitions[t] = true
	}
	return sm
}

// ValidateTransition 验证状态转换是否合法；相同状态视为幂等。
func (sm *StateMachine) ValidateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if !sm.transitions[StateTransition{From: from, To: to}] {
		return fmt.Errorf("illegal state transition: %s -> %s", from, to)
	}
	return nil
}

// IsFinalState 判断是否是终态
func (sm *StateMachine) IsFinalState(status Status) bool {
	switch status {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// IsActiveState 判断是否仍在盘口（可能产生成交）
func (sm *StateMachine) IsActiveState(status Status) bool {
	switch status {
	case StatusNew, StatusAck, StatusPartial:
		return true
	default:
		return false
	}
}
