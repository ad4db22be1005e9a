package mailbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/net/html"

	"github.com/teemow/mailfront/internal/gateway"
)

// palette is the set of styles of one theme.
type palette struct {
	header  lipgloss.Style
	sender  lipgloss.Style
	subject lipgloss.Style
	muted   lipgloss.Style
	avatar  lipgloss.Style
	notice  lipgloss.Style
	folder  lipgloss.Style
	active  lipgloss.Style
}

func paletteFor(t Theme) palette {
	switch t {
	case ThemeDark:
		return palette{
			header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).PaddingBottom(1),
			sender:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
			subject: lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
			muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
			avatar:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("16")).Background(lipgloss.Color("212")).Padding(0, 1),
			notice:  lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
			folder:  lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
			active:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		}
	case ThemeMinimal:
		plain := lipgloss.NewStyle()
		return palette{
			header:  plain.Bold(true).PaddingBottom(1),
			sender:  plain,
			subject: plain,
			muted:   plain,
			avatar:  plain,
			notice:  plain,
			folder:  plain,
			active:  plain.Underline(true),
		}
	default:
		return palette{
			header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).PaddingBottom(1),
			sender:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("236")),
			subject: lipgloss.NewStyle().Foreground(lipgloss.Color("25")),
			muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
			avatar:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("231")).Background(lipgloss.Color("39")).Padding(0, 1),
			notice:  lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
			folder:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
			active:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		}
	}
}

// Empty listing placeholders.
const (
	NoMessages    = "No messages"
	NoSearchMatch = "No emails found"
)

// RenderList renders a message listing, one entry per message. search is the
// active filter; an empty result under a filter says so.
func RenderList(t Theme, messages []gateway.MessageSummary, search string, now time.Time) string {
	p := paletteFor(t)
	if len(messages) == 0 {
		if strings.TrimSpace(search) != "" {
			return p.muted.Render(NoSearchMatch)
		}
		return p.muted.Render(NoMessages)
	}

	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s %s  %s\n",
			p.avatar.Render(SenderInitial(msg.FromAddress)),
			p.sender.Render(msg.FromAddress),
			p.muted.Render(RelativeTime(msg.ReceivedTime.Time, now)))
		fmt.Fprintf(&b, "    %s  %s\n", p.subject.Render(SubjectOrPlaceholder(msg.Subject)), p.muted.Render("#"+msg.MessageID.String()))
		if msg.Summary != "" {
			fmt.Fprintf(&b, "    %s\n", p.muted.Render(msg.Summary))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderDetail renders an opened message with its content as plain text.
func RenderDetail(t Theme, d gateway.MessageDetail) string {
	p := paletteFor(t)
	header := p.header.Render(fmt.Sprintf("From: %s\nSubject: %s\nDate: %s",
		d.FromAddress, SubjectOrPlaceholder(d.Subject), FullTime(d.ReceivedTime.Time)))

	content := d.Content
	if strings.TrimSpace(content) == "" {
		content = d.Summary
	}
	return header + "\n" + HTMLToText(content)
}

// RenderFolders renders the folder list, marking the current folder.
func RenderFolders(t Theme, folders []gateway.Folder, current string) string {
	p := paletteFor(t)
	lines := make([]string, 0, len(folders))
	for _, f := range folders {
		line := fmt.Sprintf("%-24s %-8s %s", f.FolderName, f.FolderType, f.FolderID)
		if f.FolderID.String() == current {
			lines = append(lines, p.active.Render("> "+line))
			continue
		}
		lines = append(lines, p.folder.Render("  "+line))
	}
	return strings.Join(lines, "\n")
}

// RenderNotification renders a pending notification, or "" when there is none.
func RenderNotification(t Theme, notice string) string {
	if notice == "" {
		return ""
	}
	return paletteFor(t).notice.Render("! " + notice)
}

// blockElements end the current line of text.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "table": true, "ul": true, "ol": true,
}

// HTMLToText extracts readable text from message HTML. Script and style
// content is dropped and block elements become line breaks.
func HTMLToText(content string) string {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return strings.TrimSpace(content)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "head":
				return
			}
			if n.Data == "li" {
				b.WriteString("\n- ")
			} else if blockElements[n.Data] {
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] && n.Data != "br" && n.Data != "li" {
			b.WriteString("\n")
		}
	}
	walk(doc)

	return collapseLines(b.String())
}

// collapseLines trims every line, squeezes inner whitespace and keeps at
// most one blank line between paragraphs.
func collapseLines(s string) string {
	var out []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
