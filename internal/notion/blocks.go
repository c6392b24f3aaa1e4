package notion

import "encoding/json"

// Block is a text block appended to a page.
type Block struct {
	Type string
	Text string
}

func Heading3(text string) Block  { return Block{Type: "heading_3", Text: text} }
func Paragraph(text string) Block { return Block{Type: "paragraph", Text: text} }

func (b Block) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"object": "block",
		"type":   b.Type,
		b.Type: map[string]any{
			"rich_text": textRun(b.Text),
		},
	})
}
