//go:build tools

// Package tools pins the code generators behind go:generate lines: enumer
// for binder.Mode and lifecycle.Action, mockgen for exec.CommandRunner.
package tools

import (
	_ "github.com/dmarkham/enumer"
	_ "go.uber.org/mock/mockgen"
)
