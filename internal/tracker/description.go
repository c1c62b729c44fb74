// Package tracker files support tickets in a Jira compatible issue tracker.
package tracker

import (
	"strings"
)

// Node is an Atlassian Document Format node
type Node struct {
	Type    string                 `json:"type"`
	Version int                    `json:"version,omitempty"`
	Attrs   map[string]interface{} `json:"attrs,omitempty"`
	Content []Node                 `json:"content,omitempty"`
	Text    string                 `json:"text,omitempty"`
	Marks   []Mark                 `json:"marks,omitempty"`
}

// Mark is inline formatting on a text node
type Mark struct {
	Type string `json:"type"`
}

// Document builds a rich text issue description
type Document struct {
	blocks []Node
}

// NewDocument creates an empty description
func NewDocument() *Document {
	return &Document{}
}

// Heading adds a heading of level 1 to 6
func (d *Document) Heading(level int, text string) *Document {
	if text == "" {
		return d
	}
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	d.blocks = append(d.blocks, Node{
		Type:    "heading",
		Attrs:   map[string]interface{}{"level": level},
		Content: []Node{textNode(text)},
	})
	return d
}

// Paragraph adds a paragraph. Blank text is skipped.
func (d *Document) Paragraph(text string) *Document {
	if strings.TrimSpace(text) == "" {
		return d
	}
	d.blocks = append(d.blocks, Node{Type: "paragraph", Content: []Node{textNode(text)}})
	return d
}

// Field adds a "label: value" paragraph with a bold label. Blank values are skipped.
func (d *Document) Field(label, value string) *Document {
	if strings.TrimSpace(value) == "" {
		return d
	}
	d.blocks = append(d.blocks, Node{Type: "paragraph", Content: []Node{
		{Type: "text", Text: label + ": ", Marks: []Mark{{Type: "strong"}}},
		textNode(value),
	}})
	return d
}

// BulletList adds a bullet list. Blank items are dropped and an empty list is skipped.
func (d *Document) BulletList(items []string) *Document {
	var list []Node
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			continue
		}
		list = append(list, Node{Type: "listItem", Content: []Node{
			{Type: "paragraph", Content: []Node{textNode(item)}},
		}})
	}
	if len(list) == 0 {
		return d
	}
	d.blocks = append(d.blocks, Node{Type: "bulletList", Content: list})
	return d
}

// CodeBlock adds preformatted text
func (d *Document) CodeBlock(language, text string) *Document {
	if strings.TrimSpace(text) == "" {
		return d
	}
	n := Node{Type: "codeBlock", Content: []Node{textNode(text)}}
	if language != "" {
		n.Attrs = map[string]interface{}{"language": language}
	}
	d.blocks = append(d.blocks, n)
	return d
}

// ADF returns the root document node
func (d *Document) ADF() Node {
	content := d.blocks
	if len(content) == 0 {
		content = []Node{{Type: "paragraph"}}
	}
	return Node{Type: "doc", Version: 1, Content: content}
}

// PlainText renders the description without markup
func (d *Document) PlainText() string {
	var sb strings.Builder
	for i, block := range d.blocks {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch block.Type {
		case "bulletList":
			for _, item := range block.Content {
				sb.WriteString("- " + collectText(item) + "\n")
			}
		default:
			sb.WriteString(collectText(block) + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func collectText(n Node) string {
	if n.Type == "text" {
		return n.Text
	}
	var sb strings.Builder
	for _, c := range n.Content {
		sb.WriteString(collectText(c))
	}
	return sb.String()
}

func textNode(text string) Node {
	return Node{Type: "text", Text: text}
}
