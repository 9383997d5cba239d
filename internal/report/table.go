package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/voltwatch/victronctl/internal/color"
	"github.com/voltwatch/victronctl/internal/lifecycle"
)

// Row status icons. Single-width so columns stay aligned.
const (
	iconOK      = "✓"
	iconMissing = "✗"
	iconWarn    = "!"
	iconNone    = "-"
)

type row struct {
	icon  string
	item  string
	value string
}

// RenderTable builds the status table. Times are shown relative to now.
func RenderTable(ins lifecycle.Inspection, theme color.Theme, now time.Time) string {
	rows := statusRows(ins, now)

	itemWidth := 0
	for _, r := range rows {
		itemWidth = max(itemWidth, runewidth.StringWidth(r.item))
	}

	var buf bytes.Buffer

	t := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleRounded),
		})),
		tablewriter.WithPadding(tw.Padding{Left: " ", Right: " "}),
		tablewriter.WithConfig(tablewriter.NewConfigBuilder().
			WithTrimSpace(tw.Off).
			Row().Formatting().WithAutoWrap(tw.WrapNormal).Build().
			Build().Build()),
	)

	t.Header([]string{"", "Item", "Value"})

	for _, r := range rows {
		_ = t.Append([]string{
			styleIcon(r.icon, theme),
			padToWidth(theme.Key.Render(r.item), itemWidth),
			r.value,
		})
	}

	_ = t.Render()

	return dimBorders(strings.TrimRight(buf.String(), "\n"), theme)
}

func statusRows(ins lifecycle.Inspection, now time.Time) []row {
	rows := []row{{icon: stateIcon(ins.Markers), item: "State", value: stateText(ins.Markers)}}

	for _, m := range []struct {
		item   string
		marker lifecycle.Marker
	}{
		{"Source tree", ins.Markers.InstallDir},
		{"Unit file", ins.Markers.UnitFile},
		{"Executable", ins.Markers.BoundExecutable},
	} {
		rows = append(rows, row{icon: presenceIcon(m.marker.Present), item: m.item, value: m.marker.Path})
	}

	if ins.Source != nil {
		rows = append(rows, revisionRow(ins.Source, now))
	}

	svc := row{icon: iconNone, item: "Service", value: ins.Service.Active + ", " + ins.Service.Enabled}
	if ins.Service.Active == "active" {
		svc.icon = iconOK
	} else if ins.Markers.UnitFile.Present {
		svc.icon = iconWarn
	}

	rows = append(rows, svc, settingsRow(ins.Settings))

	if len(ins.Settings.Missing) > 0 {
		rows = append(rows, row{
			icon:  iconWarn,
			item:  "Missing keys",
			value: strings.Join(ins.Settings.Missing, ", "),
		})
	}

	if ins.User != "" {
		rows = append(rows, row{icon: iconNone, item: "Operator", value: ins.User})
	}

	return rows
}

func revisionRow(src *lifecycle.SourceStatus, now time.Time) row {
	if src.Error != "" {
		return row{icon: iconMissing, item: "Revision", value: src.Error}
	}

	rev := src.Revision

	return row{
		icon:  iconOK,
		item:  "Revision",
		value: fmt.Sprintf("%s %s (%s)", rev.Short(), rev.Subject, humanize.RelTime(rev.When, now, "ago", "from now")),
	}
}

func settingsRow(s lifecycle.SettingsStatus) row {
	switch {
	case s.Error != "":
		return row{icon: iconMissing, item: "Settings", value: s.Path + ": " + s.Error}
	case !s.Present:
		return row{icon: iconMissing, item: "Settings", value: s.Path + " (absent)"}
	}

	icon := iconOK
	if len(s.Missing) > 0 {
		icon = iconWarn
	}

	return row{
		icon:  icon,
		item:  "Settings",
		value: fmt.Sprintf("%s (%s, %d keys)", s.Path, humanize.Bytes(uint64(max(s.Size, 0))), s.Keys),
	}
}

func stateIcon(m lifecycle.Markers) string {
	switch {
	case m.Complete():
		return iconOK
	case m.Installed():
		return iconWarn
	default:
		return iconNone
	}
}

func stateText(m lifecycle.Markers) string {
	switch {
	case m.Complete():
		return "installed"
	case m.Installed():
		return "partially installed"
	default:
		return "not installed"
	}
}

func presenceIcon(present bool) string {
	if present {
		return iconOK
	}

	return iconMissing
}

func styleIcon(icon string, theme color.Theme) string {
	switch icon {
	case iconOK:
		return theme.Success.Render(icon)
	case iconMissing:
		return theme.Error.Render(icon)
	case iconWarn:
		return theme.Advisory.Render(icon)
	default:
		return theme.Muted.Render(icon)
	}
}

// padToWidth right-pads s so its display width reaches w. ANSI escape codes
// do not count.
func padToWidth(s string, w int) string {
	visible := runewidth.StringWidth(ansi.Strip(s))
	if visible >= w {
		return s
	}

	return s + strings.Repeat(" ", w-visible)
}

// dimBorders applies the muted style to every box-drawing character.
func dimBorders(s string, theme color.Theme) string {
	for _, ch := range []string{
		"╭", "╮", "╰", "╯", "│", "─", "┬", "┴", "├", "┤", "┼",
	} {
		s = strings.ReplaceAll(s, ch, theme.Muted.Render(ch))
	}

	return s
}
