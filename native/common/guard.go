package common

import "errors"

// ErrModulePaused is returned when a mutating call hits a paused module.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the pause flags maintained by governance.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the named module is paused. A nil view or empty
// module disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
