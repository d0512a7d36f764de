package store

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

// 会话状态常量
const (
	SessionAnonymous     = "anonymous"
	SessionAuthenticated = "authenticated"
)

// 事件常量
const (
	eventLogin  = "login"
	eventLogout = "logout"
)

// sessionMachine 会话状态机。authenticated 只能经由 login 事件进入
type sessionMachine struct {
	fsm *fsm.FSM
}

// newSessionMachine 创建会话状态机
func newSessionMachine(initial string) *sessionMachine {
	if initial == "" {
		initial = SessionAnonymous
	}

	return &sessionMachine{
		fsm: fsm.NewFSM(
			initial,
			fsm.Events{
				{Name: eventLogin, Src: []string{SessionAnonymous}, Dst: SessionAuthenticated},
				{Name: eventLogout, Src: []string{SessionAuthenticated}, Dst: SessionAnonymous},
			},
			fsm.Callbacks{},
		),
	}
}

// Current 当前会话状态
func (m *sessionMachine) Current() string {
	return m.fsm.Current()
}

// Authenticated 是否已认证
func (m *sessionMachine) Authenticated() bool {
	return m.fsm.Current() == SessionAuthenticated
}

// Login 进入认证态；已认证时重复登录视为空操作
func (m *sessionMachine) Login() error {
	if m.Authenticated() {
		return nil
	}
	if err := m.fsm.Event(context.Background(), eventLogin); err != nil {
		return fmt.Errorf("trigger login: %w", err)
	}
	return nil
}

// Logout 退出认证态；匿名态下登出是合法的空操作
func (m *sessionMachine) Logout() {
	if !m.fsm.Can(eventLogout) {
		return
	}
	_ = m.fsm.Event(context.Background(), eventLogout)
}
