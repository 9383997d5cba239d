package lifecycle

import (
	"fmt"
	"time"

	"github.com/hako/durafmt"
)

// elapsedUnits is how many units the summary shows, e.g. "1 minute 4 seconds".
const elapsedUnits = 2

func (m *Machine) step(format string, args ...any) {
	fmt.Fprintf(m.out, "%s %s\n", m.theme.Step.Render("==>"), fmt.Sprintf(format, args...))
}

func (m *Machine) done(format string, args ...any) {
	fmt.Fprintf(m.out, "    %s %s\n", m.theme.Success.Render("✓"), fmt.Sprintf(format, args...))
}

func (m *Machine) advise(format string, args ...any) {
	fmt.Fprintf(m.out, "%s %s\n", m.theme.Advisory.Render("Advisory:"), fmt.Sprintf(format, args...))
}

func (m *Machine) info(format string, args ...any) {
	fmt.Fprintln(m.out, m.theme.Info.Render(fmt.Sprintf(format, args...)))
}

func (m *Machine) header(text string) {
	fmt.Fprintln(m.out, m.theme.Header.Render(text))
}

func (m *Machine) markerLines(markers Markers) {
	for _, row := range []struct {
		label  string
		marker Marker
	}{
		{"source tree", markers.InstallDir},
		{"unit file", markers.UnitFile},
		{"executable", markers.BoundExecutable},
	} {
		icon := m.theme.Muted.Render("-")
		if row.marker.Present {
			icon = m.theme.Success.Render("✓")
		}

		fmt.Fprintf(m.out, "  %s %-12s %s\n", icon, row.label, m.theme.Muted.Render(row.marker.Path))
	}
}

func (m *Machine) summary(out Outcome) {
	fmt.Fprintf(m.out, "%s %s finished in %s\n",
		m.theme.Success.Render("✓"), out.Action.Label(), FormatElapsed(out.Elapsed))
}

// FormatElapsed renders d for humans, keeping the two largest units.
func FormatElapsed(d time.Duration) string {
	return durafmt.Parse(d.Round(time.Millisecond)).LimitFirstN(elapsedUnits).String()
}
