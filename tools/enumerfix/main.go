// Command enumerfix rewrites enumer output so parse errors are built with
// cockroachdb/errors, and regroups the imports the way gofmt and goimports
// would leave them.
package main

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
)

const errorsImport = `"github.com/cockroachdb/errors"`

// ErrUsage indicates incorrect usage of the tool.
var ErrUsage = errors.New("usage: enumerfix <file>...")

var (
	importBlock  = regexp.MustCompile(`(?s)import \((.*?)\n\)`)
	importSingle = regexp.MustCompile(`(?m)^import ("[^"]+")$`)
)

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run fixes every file named in args[1:].
func run(args []string) error {
	if len(args) < 2 {
		return ErrUsage
	}

	for _, path := range args[1:] {
		if err := fixFile(path); err != nil {
			return errors.Wrapf(err, "fixing %s", path)
		}
	}

	return nil
}

func fixFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "reading file")
	}

	//nolint:gosec // G304: path comes from go:generate
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading file")
	}

	fixed, err := fix(content)
	if err != nil {
		return err
	}

	if bytes.Equal(fixed, content) {
		return nil
	}

	return errors.Wrap(os.WriteFile(path, fixed, info.Mode().Perm()), "writing file")
}

// fix swaps fmt.Errorf for errors.Newf and rebuilds the import block. Files
// that already use errors.Newf come back unchanged.
func fix(content []byte) ([]byte, error) {
	src := strings.ReplaceAll(string(content), "fmt.Errorf(", "errors.Newf(")
	if !strings.Contains(src, "errors.Newf(") {
		return content, nil
	}

	src = rewriteImports(src, strings.Contains(src, "fmt."))

	out, err := format.Source([]byte(src))
	if err != nil {
		return nil, errors.Wrap(err, "formatting result")
	}

	return out, nil
}

// rewriteImports emits the standard library group, a blank line and the
// errors package. fmt is dropped when nothing uses it anymore.
func rewriteImports(src string, keepFmt bool) string {
	var (
		imports []string
		span    []int
	)

	if loc := importBlock.FindStringSubmatchIndex(src); loc != nil {
		span = loc[:2]

		for line := range strings.SplitSeq(src[loc[2]:loc[3]], "\n") {
			if line = strings.TrimSpace(line); line != "" {
				imports = append(imports, line)
			}
		}
	} else if loc := importSingle.FindStringSubmatchIndex(src); loc != nil {
		span = loc[:2]
		imports = []string{src[loc[2]:loc[3]]}
	} else {
		return src
	}

	var std, other []string

	for _, imp := range imports {
		switch {
		case imp == errorsImport:
		case imp == `"fmt"` && !keepFmt:
		case strings.Contains(imp, "."):
			other = append(other, imp)
		default:
			std = append(std, imp)
		}
	}

	other = append(other, errorsImport)
	slices.Sort(std)
	slices.Sort(other)

	var b strings.Builder

	b.WriteString("import (\n")

	for _, imp := range std {
		b.WriteString("\t" + imp + "\n")
	}

	if len(std) > 0 {
		b.WriteString("\n")
	}

	for _, imp := range other {
		b.WriteString("\t" + imp + "\n")
	}

	b.WriteString(")")

	return src[:span[0]] + b.String() + src[span[1]:]
}
