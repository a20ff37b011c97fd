package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/plugin"
)

// requireAdmin gates the administrative surface. A zero admin means no
// administrator is configured, and nobody qualifies; without this an
// unconfigured node would hand admin rights to the zero address.
func (e *Engine) requireAdmin(caller common.Address) error {
	if e.admin == (common.Address{}) || caller != e.admin {
		return fmt.Errorf("%w: %s", ErrNotAdmin, caller.Hex())
	}
	return nil
}

// Withdraw moves treasury surplus out of the vault. The treasury tracker
// rejects any amount that would dip into funds backing a live order; an
// administrator with full privilege still cannot extract order backing.
func (e *Engine) Withdraw(caller common.Address, token, to common.Address, amount *big.Int) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidFillAmount, amount)
	}

	if err := e.treasury.AuthorizeWithdrawal(token, amount); err != nil {
		return err
	}

	if err := e.bank.Transfer(token, e.vault, to, amount); err != nil {
		return fmt.Errorf("withdrawal transfer failed: %w", err)
	}

	e.log.Infow("surplus withdrawn",
		"token", token.Hex(),
		"amount", amount.String(),
		"to", to.Hex(),
	)
	return nil
}

// EnablePlugin registers a policy plugin. Idempotent: enabling an
// already-enabled plugin neither re-runs its init nor re-emits the signal.
func (e *Engine) EnablePlugin(caller common.Address, p plugin.Plugin, initData []byte) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if err := e.requireAdmin(caller); err != nil {
		return err
	}

	changed, err := e.pipeline.Enable(p, initData)
	if err != nil {
		return err
	}
	if changed {
		e.emit(Event{Type: EventPluginEnabled, Plugin: p.Name(), Actor: caller})
	}
	return nil
}

// DisablePlugin removes a policy plugin, symmetric with EnablePlugin.
func (e *Engine) DisablePlugin(caller common.Address, p plugin.Plugin, data []byte) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if err := e.requireAdmin(caller); err != nil {
		return err
	}

	changed, err := e.pipeline.Disable(p, data)
	if err != nil {
		return err
	}
	if changed {
		e.emit(Event{Type: EventPluginDisabled, Plugin: p.Name(), Actor: caller})
	}
	return nil
}

// ListPlugins returns the enabled plugins in dispatch order.
func (e *Engine) ListPlugins() []plugin.Registration {
	return e.pipeline.List()
}

// TransferAdmin hands administrative control to a new address. This is the
// one-time governance hand-off; there is no further special-casing of the
// original deployer.
func (e *Engine) TransferAdmin(caller, newAdmin common.Address) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.admin = newAdmin
	e.log.Infow("admin transferred", "from", caller.Hex(), "to", newAdmin.Hex())
	return nil
}
