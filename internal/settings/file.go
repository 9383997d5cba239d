package settings

import (
	"strings"
)

// DefaultSection is the only section the agent reads.
const DefaultSection = "DEFAULT"

const (
	lineBlank = iota
	lineComment
	lineSection
	lineKey
	lineContinuation
	lineOther
)

type line struct {
	raw     string
	kind    int
	section string
	key     string
	value   string

	// fresh lines were added by Append; unterminated is the original last
	// line when the input had no final newline.
	fresh        bool
	unterminated bool
}

// File is a parsed settings.ini that keeps every original byte. The only
// mutation it supports is appending keys to the DEFAULT section.
type File struct {
	lines []line
	// insertAt is the index new DEFAULT keys are inserted before.
	insertAt   int
	hasDefault bool
	dirty      bool
	// cr is "\r" when the input uses CRLF line endings.
	cr string
}

// Parse reads settings data. It never fails: unknown lines are kept verbatim.
// Key lines before any section header count as DEFAULT.
//
// Indentation follows configparser: a line indented deeper than the option
// above it continues that option's value, any other line starts a new key
// or section regardless of its indentation. Blank and comment lines do not
// end a value.
func Parse(data []byte) *File {
	f := &File{}

	text := string(data)
	if text == "" {
		return f
	}

	if i := strings.IndexByte(text, '\n'); i > 0 && text[i-1] == '\r' {
		f.cr = "\r"
	}

	raws := strings.Split(text, "\n")

	var (
		section     = DefaultSection
		lastDefault = -1
		// optionIndent is the indentation of the current option, -1 when
		// no option is open in the section.
		optionIndent = -1
	)

	for i, raw := range raws {
		l := classify(raw, section)

		if l.kind != lineBlank && l.kind != lineComment {
			indent := indentOf(raw)

			if optionIndent >= 0 && indent > optionIndent {
				l = line{raw: raw, kind: lineContinuation, section: section}
			} else if l.kind == lineKey {
				optionIndent = indent
			} else {
				optionIndent = -1
			}
		}

		if l.kind == lineSection {
			section = l.section
		}

		if l.section == DefaultSection && (l.kind == lineKey || l.kind == lineSection || l.kind == lineContinuation) {
			lastDefault = i
		}

		if l.kind == lineSection && l.section == DefaultSection {
			f.hasDefault = true
		}

		f.lines = append(f.lines, l)
	}

	if last := len(f.lines) - 1; f.lines[last].raw != "" {
		f.lines[last].unterminated = true
	}

	// A trailing newline splits into a final empty element.
	f.insertAt = lastDefault + 1
	if lastDefault == -1 {
		f.insertAt = len(f.lines)
		if f.lines[len(f.lines)-1].raw == "" {
			f.insertAt--
		}
	}

	return f
}

func classify(raw, section string) line {
	trimmed := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))

	switch {
	case trimmed == "":
		return line{raw: raw, kind: lineBlank, section: section}
	case strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";"):
		return line{raw: raw, kind: lineComment, section: section}
	case strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"):
		return line{raw: raw, kind: lineSection, section: strings.TrimSpace(trimmed[1 : len(trimmed)-1])}
	}

	// configparser accepts either delimiter, whichever comes first.
	idx := strings.IndexAny(trimmed, "=:")
	if idx <= 0 {
		return line{raw: raw, kind: lineOther, section: section}
	}

	return line{
		raw:     raw,
		kind:    lineKey,
		section: section,
		key:     strings.TrimSpace(trimmed[:idx]),
		value:   strings.TrimSpace(trimmed[idx+1:]),
	}
}

func indentOf(raw string) int {
	return len(raw) - len(strings.TrimLeft(raw, " \t"))
}

// Get returns the DEFAULT value of key. Lookup folds case the way the agent's
// parser does, so "telegram_token" satisfies TELEGRAM_TOKEN.
func (f *File) Get(key string) (string, bool) {
	for _, l := range f.lines {
		if l.kind == lineKey && l.section == DefaultSection && strings.EqualFold(l.key, key) {
			return l.value, true
		}
	}

	return "", false
}

// Has reports whether key is present in DEFAULT.
func (f *File) Has(key string) bool {
	_, ok := f.Get(key)

	return ok
}

// Keys returns the DEFAULT keys in file order, as written.
func (f *File) Keys() []string {
	var keys []string

	for _, l := range f.lines {
		if l.kind == lineKey && l.section == DefaultSection {
			keys = append(keys, l.key)
		}
	}

	return keys
}

// Append adds entries to the end of the DEFAULT section. Keys already present
// are skipped. It returns the keys actually added.
func (f *File) Append(entries ...Entry) []string {
	var (
		added    []string
		newLines []line
	)

	if !f.hasDefault {
		newLines = append(newLines, line{
			raw:     "[" + DefaultSection + "]",
			kind:    lineSection,
			section: DefaultSection,
			fresh:   true,
		})
	}

	for _, e := range entries {
		if f.Has(e.Key) || containsKey(newLines, e.Key) {
			continue
		}

		newLines = append(newLines, line{
			raw:     formatEntry(e),
			kind:    lineKey,
			section: DefaultSection,
			key:     e.Key,
			value:   e.Value,
			fresh:   true,
		})
		added = append(added, e.Key)
	}

	if len(added) == 0 {
		return nil
	}

	if !f.hasDefault {
		// A new DEFAULT header must precede every other section.
		f.insertAt = 0
		f.hasDefault = true

		if len(f.lines) > 0 {
			newLines = append(newLines, line{kind: lineBlank, section: DefaultSection, fresh: true})
		}
	}

	rest := append([]line(nil), f.lines[f.insertAt:]...)
	f.lines = append(append(f.lines[:f.insertAt], newLines...), rest...)
	f.insertAt += len(newLines)
	f.dirty = true

	return added
}

func containsKey(lines []line, key string) bool {
	for _, l := range lines {
		if l.kind == lineKey && strings.EqualFold(l.key, key) {
			return true
		}
	}

	return false
}

// Modified reports whether Append changed the file.
func (f *File) Modified() bool {
	return f.dirty
}

// Bytes renders the file. Without appends it equals the parsed input.
// Lines added by Append use the input's line ending.
func (f *File) Bytes() []byte {
	raws := make([]string, len(f.lines))
	for i, l := range f.lines {
		raws[i] = l.raw
		if i < len(f.lines)-1 && (l.fresh || l.unterminated) {
			raws[i] += f.cr
		}
	}

	out := strings.Join(raws, "\n")

	if f.dirty && !strings.HasSuffix(out, "\n") {
		out += f.cr + "\n"
	}

	return []byte(out)
}

// Render produces a fresh settings file holding every template entry.
func Render(tmpl Template) []byte {
	var b strings.Builder

	b.WriteString("[" + DefaultSection + "]\n")

	for _, e := range tmpl.Entries {
		b.WriteString(formatEntry(e))
		b.WriteByte('\n')
	}

	return []byte(b.String())
}

func formatEntry(e Entry) string {
	if e.Value == "" {
		return e.Key + " ="
	}

	return e.Key + " = " + e.Value
}
