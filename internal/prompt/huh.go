package prompt

import (
	"io"

	"charm.land/huh/v2"
	"github.com/cockroachdb/errors"
)

// TerminalPrompter asks confirmations with a huh form. Choices keep the
// numeric menu of StdPrompter so the same digits work on a terminal and a pipe.
type TerminalPrompter struct {
	*StdPrompter

	in  io.Reader
	out io.Writer
}

// NewTerminalPrompter creates a TerminalPrompter. in and out must be a terminal.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{
		StdPrompter: NewPrompter(in, out),
		in:          in,
		out:         out,
	}
}

// Confirm shows a yes/no form. Aborting the form (ctrl+c, esc) answers no.
func (p *TerminalPrompter) Confirm(question string, defaultValue bool) (bool, error) {
	answer := defaultValue

	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Affirmative("Yes").
			Negative("No").
			Value(&answer),
	)).
		WithInput(p.in).
		WithOutput(p.out).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}

		return false, errors.Wrap(err, "confirmation form")
	}

	return answer, nil
}

// New picks the prompter for the session: huh forms on a terminal, plain
// line prompts otherwise.
//
//nolint:ireturn // callers only need the interface
func New(in io.Reader, out io.Writer, interactive bool) Prompter {
	if interactive {
		return NewTerminalPrompter(in, out)
	}

	return NewPrompter(in, out)
}
