package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorInfo    = lipgloss.Color("#3B82F6")
	colorMuted   = lipgloss.Color("#6B7280")
	colorPrimary = lipgloss.Color("#F97316")

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(colorInfo)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	primaryStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
)

// printer 命令输出，写到 cobra 的 stdout/stderr 方便测试
type printer struct {
	out io.Writer
	err io.Writer
}

func (p printer) success(format string, args ...any) {
	fmt.Fprintln(p.out, successStyle.Render("✓ ")+fmt.Sprintf(format, args...))
}

func (p printer) warning(format string, args ...any) {
	fmt.Fprintln(p.out, warningStyle.Render("⚠ ")+fmt.Sprintf(format, args...))
}

func (p printer) error(format string, args ...any) {
	fmt.Fprintln(p.err, errorStyle.Render("✗ ")+fmt.Sprintf(format, args...))
}

func (p printer) info(format string, args ...any) {
	fmt.Fprintln(p.out, infoStyle.Render("ℹ ")+fmt.Sprintf(format, args...))
}

func (p printer) muted(format string, args ...any) {
	fmt.Fprintln(p.out, mutedStyle.Render(fmt.Sprintf(format, args...)))
}

func (p printer) section(title string) {
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, primaryStyle.Render(title))
	fmt.Fprintln(p.out)
}
