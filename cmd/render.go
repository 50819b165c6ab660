package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/nextlevelbuilder/botlink/internal/pairing"
	"github.com/nextlevelbuilder/botlink/internal/roster"
	"github.com/nextlevelbuilder/botlink/internal/session"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("8"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func printBots(w io.Writer, st session.State) {
	if len(st.Linked) == 0 {
		fmt.Fprintln(w, "No linked bots. Run `botlink link` to add one.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "\tID\tBOT\tCONSTRUCTOR\n")
	for _, b := range st.Linked {
		mark := ""
		if st.Selected != nil && st.Selected.BotID == b.BotID {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%d\t@%s\t%s\n", mark, b.BotID, b.BotName, b.WebURL)
	}
	tw.Flush()
}

// printRoster renders the user table. Columns are padded by display width so
// names in wide scripts stay aligned, which tabwriter cannot do.
func printRoster(w io.Writer, snap roster.Snapshot) {
	if len(snap.Rows) == 0 {
		fmt.Fprintln(w, "No users.")
		printRosterFooter(w, snap)
		return
	}

	header := []string{"ID", "NAME", "PHONE", "STATUS", "ACTION"}
	cells := make([][]string, 0, len(snap.Rows))
	for _, r := range snap.Rows {
		cells = append(cells, []string{r.ID, r.DisplayName, r.FormattedPhone(), r.StatusLabel(), r.ActionLabel()})
	}
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range cells {
		for i, c := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(c))
		}
	}

	line := func(row []string) string {
		parts := make([]string, len(row))
		for i, c := range row {
			parts[i] = runewidth.FillRight(c, widths[i])
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}
	fmt.Fprintln(w, headerStyle.Render(line(header)))
	for i, row := range cells {
		text := line(row)
		switch {
		case snap.Rows[i].IsOwner:
			text = mutedStyle.Render(text)
		case snap.Rows[i].Active:
			text = okStyle.Render(text)
		}
		fmt.Fprintln(w, text)
	}
	printRosterFooter(w, snap)
}

func printRosterFooter(w io.Writer, snap roster.Snapshot) {
	q := snap.Query
	filters := []string{}
	if q.Search != "" {
		filters = append(filters, fmt.Sprintf("search %q", q.Search))
	}
	if q.Status != roster.StatusAny {
		filters = append(filters, "status "+q.Status.String())
	}
	footer := fmt.Sprintf("page %d/%d, %d user(s)", q.Page, q.Pages(snap.Total), snap.Total)
	if len(filters) > 0 {
		footer += ", " + strings.Join(filters, ", ")
	}
	fmt.Fprintln(w, mutedStyle.Render(footer))
}

// printLink shows a deep link with its QR code.
func printLink(title, link string) {
	fmt.Println(titleStyle.Render(title))
	fmt.Println(link)
	qr, err := pairing.RenderQR(link)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not render QR code: %s\n", err)
		return
	}
	fmt.Println(qr)
}
