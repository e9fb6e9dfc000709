package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Prompter reads user input line by line. The command loop and confirmation
// prompts share one reader so buffered input is never lost between them.
type Prompter struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a prompter over in, echoing prompts to out
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// ReadLine returns the next line without its trailing newline.
// io.EOF is returned only when no input remains.
func (p *Prompter) ReadLine(prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prompt != "" {
		fmt.Fprint(p.out, prompt)
	}
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Confirm asks a yes/no question. Anything other than y/yes declines,
// including a read failure.
func (p *Prompter) Confirm(prompt string) bool {
	answer, err := p.ReadLine(prompt + " [y/N]: ")
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
