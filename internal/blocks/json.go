package blocks

// Node is the JSON view of a Block.
type Node struct {
	Type     string    `json:"type"`
	Level    int       `json:"level,omitempty"`
	Ordered  bool      `json:"ordered,omitempty"`
	Index    int       `json:"index,omitempty"`
	Depth    int       `json:"depth,omitempty"`
	Marker   string    `json:"marker,omitempty"`
	Scale    float64   `json:"scale,omitempty"`
	Src      string    `json:"src,omitempty"`
	Alt      string    `json:"alt,omitempty"`
	Runs     []RunNode `json:"runs,omitempty"`
	Children []Node    `json:"children,omitempty"`
}

// RunNode is the JSON view of a Run.
type RunNode struct {
	Text      string `json:"text,omitempty"`
	Emphasis  bool   `json:"emphasis,omitempty"`
	Strong    bool   `json:"strong,omitempty"`
	Underline bool   `json:"underline,omitempty"`
	Break     bool   `json:"break,omitempty"`
}

// Nodes converts a block sequence to its JSON view.
func Nodes(bs []Block) []Node {
	out := make([]Node, 0, len(bs))
	for _, b := range bs {
		out = append(out, toNode(b))
	}
	return out
}

func toNode(b Block) Node {
	switch v := b.(type) {
	case Paragraph:
		return Node{Type: "paragraph", Runs: runNodes(v.Runs)}
	case Heading:
		return Node{Type: "heading", Level: v.Level, Scale: HeadingScale(v.Level), Runs: runNodes(v.Runs)}
	case ListItem:
		return Node{
			Type:    "list_item",
			Ordered: v.Ordered,
			Index:   v.Index,
			Depth:   v.Depth,
			Marker:  v.Marker(),
			Runs:    runNodes(v.Runs),
		}
	case Section:
		return Node{Type: "section", Children: Nodes(v.Children)}
	case Image:
		return Node{Type: "image", Src: v.Src, Alt: v.Alt}
	default:
		panic("blocks: unknown block type")
	}
}

func runNodes(runs []Run) []RunNode {
	out := make([]RunNode, len(runs))
	for i, r := range runs {
		out[i] = RunNode{
			Text:      r.Text,
			Emphasis:  r.Style.Has(Emphasis),
			Strong:    r.Style.Has(Strong),
			Underline: r.Style.Has(Underline),
			Break:     r.Break,
		}
	}
	return out
}
