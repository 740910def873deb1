package interpcore

import (
	"io"
)

// NodeKind discriminates debug-tree nodes. Internal nodes carry children;
// leaf kinds carry a text payload and drive the formatting cursor.
type NodeKind uint8

const (
	// NodeInternal nodes render nothing themselves; their children render
	// in order.
	NodeInternal NodeKind = iota
	// LeafText renders its payload followed by a space, indenting first if
	// at the start of a line.
	LeafText
	// LeafIndent increases the indentation level by one. Renders nothing.
	LeafIndent
	// LeafDedent decreases the indentation level by one. Renders nothing.
	LeafDedent
	// LeafNewline renders its payload (if any) and a newline, marking the
	// cursor at line start.
	LeafNewline
)

// TreeNode is one node of a debug tree.
type TreeNode struct {
	Kind     NodeKind
	Text     string
	Children []*TreeNode
}

// PrintCursor is the mutable formatting state threaded through one Render
// call. It is owned per invocation rather than shared process-wide, so
// concurrent renders of separate trees cannot interfere.
type PrintCursor struct {
	// Indent is the current indentation level, one tab per level.
	Indent int
	// AtLineStart reports whether the next text payload begins a line.
	AtLineStart bool
}

// Render walks the tree depth-first in pre-order, writing sequential text
// to w. The cursor is reset to {0, true} at the start of every invocation.
// Side effects are confined to w.
func Render(root *TreeNode, w io.Writer) error {
	cursor := PrintCursor{Indent: 0, AtLineStart: true}
	return renderNode(root, w, &cursor)
}

func renderNode(n *TreeNode, w io.Writer, cursor *PrintCursor) error {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case NodeInternal:
		for _, child := range n.Children {
			if err := renderNode(child, w, cursor); err != nil {
				return err
			}
		}
	case LeafIndent:
		cursor.Indent++
	case LeafDedent:
		cursor.Indent--
	case LeafText, LeafNewline:
		if cursor.AtLineStart {
			for i := 0; i < cursor.Indent; i++ {
				if _, err := io.WriteString(w, "\t"); err != nil {
					return err
				}
			}
			cursor.AtLineStart = false
		}
		if n.Kind == LeafNewline {
			if n.Text != "" {
				if _, err := io.WriteString(w, n.Text); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
			cursor.AtLineStart = true
		} else {
			if _, err := io.WriteString(w, n.Text+" "); err != nil {
				return err
			}
		}
	default:
		if _, err := io.WriteString(w, "? "); err != nil {
			return err
		}
	}
	return nil
}
