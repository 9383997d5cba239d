package binder

//go:generate enumer -type=Mode -trimprefix=Mode -transform=lower -text
//go:generate go run github.com/voltwatch/victronctl/tools/enumerfix mode_enumer.go

// Mode selects how the entry script is exposed on PATH.
type Mode int

const (
	// ModeFresh moves the script to the target. The source tree no longer
	// holds a runnable copy.
	ModeFresh Mode = iota

	// ModeUpdate links the target to the script in the source tree, so later
	// syncs refresh the command without rebinding. The tree must stay in place.
	ModeUpdate
)
