// Package prompt reads operator answers from a terminal or any reader.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrEmptyInput is returned when the operator answers with an empty line
	// and the question has no default.
	ErrEmptyInput = errors.New("empty input")

	// ErrInvalidInput is returned when the answer is not one of the accepted values.
	ErrInvalidInput = errors.New("invalid input")
)

// Prompter asks the operator questions.
type Prompter interface {
	// Confirm asks a yes/no question. An empty answer picks defaultValue.
	Confirm(question string, defaultValue bool) (bool, error)

	// Choose shows a numbered menu and returns the zero-based index of the
	// selection. Anything but a listed number is ErrInvalidInput.
	Choose(title string, options []string) (int, error)
}

// StdPrompter implements Prompter over a line reader and a writer.
type StdPrompter struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewStdPrompter creates a StdPrompter on stdin and stdout.
func NewStdPrompter() *StdPrompter {
	return NewPrompter(os.Stdin, os.Stdout)
}

// NewPrompter creates a StdPrompter with custom reader and writer.
func NewPrompter(reader io.Reader, writer io.Writer) *StdPrompter {
	return &StdPrompter{
		reader: bufio.NewReader(reader),
		writer: writer,
	}
}

// Confirm asks a yes/no question.
func (p *StdPrompter) Confirm(question string, defaultValue bool) (bool, error) {
	hint := "y/N"
	if defaultValue {
		hint = "Y/n"
	}

	answer, err := p.ask(fmt.Sprintf("%s [%s]: ", question, hint))
	if err != nil {
		return false, err
	}

	switch strings.ToLower(answer) {
	case "":
		return defaultValue, nil
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return false, errors.Wrapf(ErrInvalidInput, "expected y/n, got %q", answer)
	}
}

// Choose shows a numbered menu and reads one selection. There is no retry:
// an invalid answer is returned as ErrInvalidInput.
func (p *StdPrompter) Choose(title string, options []string) (int, error) {
	var menu strings.Builder

	menu.WriteString(title)
	menu.WriteByte('\n')

	for i, option := range options {
		fmt.Fprintf(&menu, "  %d) %s\n", i+1, option)
	}

	fmt.Fprintf(&menu, "Select [1-%d]: ", len(options))

	answer, err := p.ask(menu.String())
	if err != nil {
		return 0, err
	}

	if answer == "" {
		return 0, ErrEmptyInput
	}

	choice, convErr := strconv.Atoi(answer)
	if convErr != nil || choice < 1 || choice > len(options) {
		return 0, errors.Wrapf(ErrInvalidInput, "expected 1-%d, got %q", len(options), answer)
	}

	return choice - 1, nil
}

// ask writes the question and returns the trimmed answer. A final line
// without a newline still counts; a closed reader with nothing buffered
// is an error.
func (p *StdPrompter) ask(question string) (string, error) {
	if _, err := io.WriteString(p.writer, question); err != nil {
		return "", errors.Wrap(err, "writing prompt")
	}

	line, err := p.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", errors.Wrap(err, "reading answer")
	}

	return strings.TrimSpace(line), nil
}
