// Package output provides styled terminal output helpers (success, error,
// warning, record tables) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/imtti/internal/models"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	sourceStyles = map[string]lipgloss.Style{
		"remote": lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		"local":  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
)

// Stdout and Stderr are where messages go; tests replace them.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// OutputMode determines output format
type OutputMode int

const (
	ModeTable OutputMode = iota
	ModeMarkdown
	ModeJSON
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Fprintln(Stdout, successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Fprintln(Stderr, errorStyle.Render("ERROR: "+fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Fprintln(Stderr, warningStyle.Render("Warning: "+fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Fprintln(Stdout, fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(Stdout, string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound           = "not_found"
	ErrCodeInvalidInput       = "invalid_input"
	ErrCodeConfigError        = "config_error"
	ErrCodeStoreError         = "store_error"
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeOffline            = "offline"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	JSONErrorWithDetails(code, message, nil)
}

// JSONErrorWithDetails outputs an error as JSON with additional context
func JSONErrorWithDetails(code, message string, details map[string]interface{}) {
	errObj := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if len(details) > 0 {
		errObj["details"] = details
	}
	data, _ := json.MarshalIndent(map[string]interface{}{"error": errObj}, "", "  ")
	fmt.Fprintln(Stdout, string(data))
}

// SourceBadge labels where a result came from, e.g. "● remote" or "○ local".
func SourceBadge(source string) string {
	symbol := "○"
	if source == "remote" {
		symbol = "●"
	}
	text := fmt.Sprintf("%s %s", symbol, source)
	if style, ok := sourceStyles[source]; ok {
		return style.Render(text)
	}
	return text
}

// RecordColumns returns the union of keys across records: "id" first, then
// the rest alphabetically.
func RecordColumns(records []models.Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range records {
		for k := range r {
			if !seen[k] && k != "id" {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	for _, r := range records {
		if _, ok := r["id"]; ok {
			return append([]string{"id"}, cols...)
		}
	}
	return cols
}

// FormatValue renders a JSON value as a single display cell.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}

// FormatRecordsTable renders records as an aligned plain-text table.
func FormatRecordsTable(records []models.Record) string {
	if len(records) == 0 {
		return subtleStyle.Render("(no records)")
	}
	cols := RecordColumns(records)

	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	rows := make([][]string, len(records))
	for r, rec := range records {
		rows[r] = make([]string, len(cols))
		for i, c := range cols {
			cell := Truncate(FormatValue(rec[c]), 40)
			rows[r][i] = cell
			widths[i] = max(widths[i], len([]rune(cell)))
		}
	}

	var sb strings.Builder
	for i, c := range cols {
		sb.WriteString(titleStyle.Render(pad(strings.ToUpper(c), widths[i])))
		if i < len(cols)-1 {
			sb.WriteString("  ")
		}
	}
	for _, row := range rows {
		sb.WriteString("\n")
		for i, cell := range row {
			if i < len(row)-1 {
				sb.WriteString(pad(cell, widths[i]) + "  ")
			} else {
				sb.WriteString(cell)
			}
		}
	}
	return sb.String()
}

// FormatRecord renders one record as "key: value" lines, id first.
func FormatRecord(rec models.Record) string {
	cols := RecordColumns([]models.Record{rec})
	width := 0
	for _, c := range cols {
		width = max(width, len(c))
	}
	lines := make([]string, 0, len(cols))
	for _, c := range cols {
		lines = append(lines, fmt.Sprintf("%s %s", subtleStyle.Render(pad(c+":", width+1)), FormatValue(rec[c])))
	}
	return strings.Join(lines, "\n")
}

// Truncate shortens s to n runes, marking the cut with "…".
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

func pad(s string, width int) string {
	n := lipgloss.Width(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nLOCAL STORE:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}
