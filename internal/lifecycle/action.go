package lifecycle

//go:generate enumer -type=Action -trimprefix=Action -transform=lower -text
//go:generate go run github.com/voltwatch/victronctl/tools/enumerfix action_enumer.go

// Action is what a run does to the installation.
type Action int

const (
	ActionInstall Action = iota
	ActionUpdate
	ActionUninstall
	ActionCancel
)

// menuActions are offered, in order, when an installation is present.
var menuActions = []Action{ActionUpdate, ActionUninstall, ActionCancel}

// Label is the menu text of a.
func (a Action) Label() string {
	switch a {
	case ActionInstall:
		return "Install"
	case ActionUpdate:
		return "Update"
	case ActionUninstall:
		return "Uninstall"
	case ActionCancel:
		return "Cancel"
	default:
		return a.String()
	}
}
