// Package plugin implements the policy pipeline around order lifecycle
// events. Plugins observe or mutate in-flight orders at six hook points;
// dispatch order is registration order, which is observable whenever hooks
// have cumulative side effects (fee deduction composes left to right).
package plugin

import (
	"fmt"

	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/ledger"
)

// HookPoint names a lifecycle event a plugin can participate in.
type HookPoint uint8

const (
	BeforeCreate HookPoint = iota
	AfterCreate
	BeforeCancel
	AfterCancel
	BeforeFill
	AfterFill

	numHookPoints
)

func (p HookPoint) String() string {
	switch p {
	case BeforeCreate:
		return "before-create"
	case AfterCreate:
		return "after-create"
	case BeforeCancel:
		return "before-cancel"
	case AfterCancel:
		return "after-cancel"
	case BeforeFill:
		return "before-fill"
	case AfterFill:
		return "after-fill"
	default:
		return fmt.Sprintf("hook(%d)", uint8(p))
	}
}

// Plugin is a policy module injected around order lifecycle events.
//
// Hooks() declares the hook points the plugin participates in; it is probed
// once at registration and cached as a mask, so dispatch never asks again.
// OnHook receives the order as left by the previous plugin in line and
// returns a possibly-modified order, or an error to veto the whole
// enclosing operation.
type Plugin interface {
	Name() string
	Hooks() []HookPoint
	Enable(initData []byte) error
	Disable(data []byte) error
	OnHook(point HookPoint, o ledger.Order) (ledger.Order, error)
}

// VetoError wraps a plugin's rejection of an operation.
type VetoError struct {
	Plugin string
	Point  HookPoint
	Reason error
}

func (e VetoError) Error() string {
	return fmt.Sprintf("plugin %s vetoed %s: %v", e.Plugin, e.Point, e.Reason)
}

func (e VetoError) Unwrap() error { return e.Reason }
