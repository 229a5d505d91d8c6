package planner

import (
	"bytes"
	"strings"

	"github.com/google/uuid"
	"github.com/harrison/taskpilot/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// TaskConverter turns generated Markdown into a task tree. It returns nil
// when the text holds no list.
type TaskConverter interface {
	Convert(markdown string) []models.Task
}

// MarkdownConverter converts Markdown lists into tasks using goldmark.
//
// Every top-level list item becomes a task and nested lists become its
// children. The item's lead text is split into title and description:
//
//	- **Title**: description
//	- Title: description
//	- Title - description
//	- [x] Title: description   (GFM task item, checked means done)
//
// Paragraphs after the lead line are appended to the description. Prose
// outside lists is ignored, as is a leading YAML front matter block.
type MarkdownConverter struct {
	markdown goldmark.Markdown
	newID    func() string
}

// NewMarkdownConverter creates a converter with the GFM task-list extension
func NewMarkdownConverter() *MarkdownConverter {
	return &MarkdownConverter{
		markdown: goldmark.New(goldmark.WithExtensions(extension.TaskList)),
		newID:    uuid.NewString,
	}
}

// Convert implements TaskConverter
func (c *MarkdownConverter) Convert(markdown string) []models.Task {
	source := stripFrontmatter([]byte(markdown))
	doc := c.markdown.Parser().Parse(text.NewReader(source))

	var tasks []models.Task
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if list, ok := n.(*ast.List); ok {
			tasks = append(tasks, c.listTasks(list, source)...)
		}
	}
	return tasks
}

func (c *MarkdownConverter) listTasks(list *ast.List, source []byte) []models.Task {
	var tasks []models.Task
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		li, ok := item.(*ast.ListItem)
		if !ok {
			continue
		}
		if task, ok := c.itemTask(li, source); ok {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

func (c *MarkdownConverter) itemTask(li *ast.ListItem, source []byte) (models.Task, bool) {
	var (
		title, description string
		extra              []string
		children           []models.Task
		checked            bool
		leadSeen           bool
	)

	for block := li.FirstChild(); block != nil; block = block.NextSibling() {
		switch b := block.(type) {
		case *ast.List:
			children = append(children, c.listTasks(b, source)...)
		case *ast.TextBlock, *ast.Paragraph:
			if !leadSeen {
				leadSeen = true
				title, description, checked = splitLead(b, source)
				continue
			}
			if s := strings.TrimSpace(inlineText(b, source)); s != "" {
				extra = append(extra, s)
			}
		default:
			if s := strings.TrimSpace(string(blockLines(b, source))); s != "" {
				extra = append(extra, s)
			}
		}
	}

	if title == "" {
		return models.Task{}, false
	}

	if len(extra) > 0 {
		parts := append([]string{description}, extra...)
		description = strings.TrimSpace(strings.Join(parts, "\n"))
	}

	task := models.NewTask(title, description)
	task.ID = c.newID()
	if checked {
		task.Status = models.TaskDone
	}
	task.Children = children
	return task, true
}

// splitLead extracts title, description and checkbox state from the first
// block of a list item
func splitLead(block ast.Node, source []byte) (title, description string, checked bool) {
	first := block.FirstChild()
	if cb, ok := first.(*extast.TaskCheckBox); ok {
		checked = cb.IsChecked
		first = first.NextSibling()
	}
	for first != nil {
		t, ok := first.(*ast.Text)
		if !ok || len(bytes.TrimSpace(t.Segment.Value(source))) > 0 {
			break
		}
		first = first.NextSibling()
	}

	// **Title**: description
	if em, ok := first.(*ast.Emphasis); ok && em.Level == 2 {
		title = strings.TrimSpace(inlineText(em, source))
		var rest strings.Builder
		for n := em.NextSibling(); n != nil; n = n.NextSibling() {
			rest.WriteString(nodeText(n, source))
		}
		description = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(rest.String()), ":-–—"))
		return title, description, checked
	}

	var all strings.Builder
	for n := first; n != nil; n = n.NextSibling() {
		all.WriteString(nodeText(n, source))
	}
	line := strings.TrimSpace(all.String())

	for _, sep := range []string{": ", " - ", " – ", " — "} {
		if i := strings.Index(line, sep); i > 0 {
			return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+len(sep):]), checked
		}
	}
	return strings.TrimSuffix(line, ":"), "", checked
}

// inlineText concatenates the text of all inline children of n
func inlineText(n ast.Node, source []byte) string {
	var buf strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		buf.WriteString(nodeText(c, source))
	}
	return buf.String()
}

// nodeText renders one inline node as plain text
func nodeText(n ast.Node, source []byte) string {
	switch t := n.(type) {
	case *ast.Text:
		s := string(t.Segment.Value(source))
		if t.SoftLineBreak() || t.HardLineBreak() {
			s += " "
		}
		return s
	case *ast.String:
		return string(t.Value)
	case *ast.CodeSpan:
		return "`" + inlineText(t, source) + "`"
	case *ast.AutoLink:
		return string(t.URL(source))
	case *extast.TaskCheckBox:
		return ""
	default:
		return inlineText(n, source)
	}
}

// blockLines returns the raw source lines of a block node
func blockLines(n ast.Node, source []byte) []byte {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.Bytes()
}

// stripFrontmatter removes a leading YAML front matter block. A block that
// is not valid YAML is left in place.
func stripFrontmatter(content []byte) []byte {
	trimmed := bytes.TrimLeft(content, " \t\r\n")
	lines := bytes.Split(trimmed, []byte("\n"))
	if len(lines) < 3 || !bytes.Equal(bytes.TrimSpace(lines[0]), []byte("---")) {
		return content
	}

	for i := 1; i < len(lines); i++ {
		if !bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			continue
		}
		front := bytes.Join(lines[1:i], []byte("\n"))
		var meta map[string]interface{}
		if err := yaml.Unmarshal(front, &meta); err != nil {
			return content
		}
		return bytes.Join(lines[i+1:], []byte("\n"))
	}
	return content
}
