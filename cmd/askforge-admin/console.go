package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	brandPrimary = lipgloss.Color("#2563EB")
	brandAccent  = lipgloss.Color("#10B981")
	brandWarning = lipgloss.Color("#F59E0B")
	brandError   = lipgloss.Color("#EF4444")
	textMuted    = lipgloss.Color("#6B7280")

	headerStyle = lipgloss.NewStyle().
			Foreground(brandPrimary).
			Bold(true).
			Border(lipgloss.DoubleBorder(), true, false).
			BorderForeground(brandPrimary).
			Width(60).
			Align(lipgloss.Center)

	titleStyle = lipgloss.NewStyle().
			Foreground(brandPrimary).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(brandAccent).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(brandError).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(brandWarning)

	dimStyle = lipgloss.NewStyle().
			Foreground(textMuted)
)

// console is the operator's terminal. Passwords are read without echo when
// stdin is a terminal and as plain lines otherwise (scripts, tests).
type console struct {
	in       *bufio.Reader
	out      io.Writer
	fd       int
	terminal bool
}

func newConsole(in io.Reader, out io.Writer) *console {
	c := &console{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok {
		c.fd = int(f.Fd())
		c.terminal = term.IsTerminal(c.fd)
	}
	return c
}

func (c *console) println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

func (c *console) printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}

func (c *console) success(format string, a ...any) {
	c.println(successStyle.Render("✓ " + fmt.Sprintf(format, a...)))
}

func (c *console) fail(format string, a ...any) {
	c.println(errorStyle.Render("✗ " + fmt.Sprintf(format, a...)))
}

func (c *console) warn(format string, a ...any) {
	c.println(warningStyle.Render("⚠ " + fmt.Sprintf(format, a...)))
}

func (c *console) header() {
	if c.terminal {
		fmt.Fprint(c.out, "\033[H\033[2J")
	}
	c.println(headerStyle.Render("GERENCIADOR DE USUÁRIOS - BASE DE CONHECIMENTO"))
	c.println()
}

// ask prints prompt and returns the trimmed line. At end of input it
// returns io.EOF so menus can stop.
func (c *console) ask(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *console) askPassword(prompt string) (string, error) {
	if !c.terminal {
		fmt.Fprint(c.out, prompt)
		line, err := c.in.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(c.out, prompt)
	pw, err := term.ReadPassword(c.fd)
	fmt.Fprintln(c.out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

// yes reads an [s/N] answer.
func (c *console) yes(prompt string) (bool, error) {
	answer, err := c.ask(prompt)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(answer, "s"), nil
}

func (c *console) pause() error {
	_, err := c.ask("\nPressione Enter para continuar...")
	return err
}

func check(ok bool) string {
	if ok {
		return successStyle.Render("✓")
	}
	return errorStyle.Render("✗")
}
