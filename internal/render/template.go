package render

import "strings"

// The template language has four token kinds besides literal text:
// {{#field}} / {{/field}} conditional sections, {{field}} references,
// {{cloze:field}} references, and the {{FrontSide}} back-reference.
// Markup is parsed into a node tree once; field values are emitted as
// literal output and never re-scanned, so a value that happens to contain
// {{word}}-shaped text cannot be re-substituted.

type nodeKind int

const (
	nodeText nodeKind = iota
	nodeField
	nodeSection
	nodeFrontSide
)

type node struct {
	kind     nodeKind
	text     string // nodeText
	name     string // nodeField, nodeSection
	children []node // nodeSection
}

const frontSideName = "FrontSide"

// parseTemplate builds the node tree for one side's markup. Unresolvable
// markup degrades instead of failing: a close tag with no matching open
// is dropped, an open tag with no close runs to the end of the markup,
// and a "{{" with no "}}" is literal text.
func parseTemplate(markup string) []node {
	root := &node{kind: nodeSection}
	stack := []*node{root}

	emit := func(n node) {
		top := stack[len(stack)-1]
		top.children = append(top.children, n)
	}

	rest := markup
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			break
		}
		end := strings.Index(rest[open+2:], "}}")
		if end < 0 {
			break
		}
		if open > 0 {
			emit(node{kind: nodeText, text: rest[:open]})
		}
		tag := strings.TrimSpace(rest[open+2 : open+2+end])
		rest = rest[open+2+end+2:]

		switch {
		case strings.HasPrefix(tag, "#"):
			section := node{kind: nodeSection, name: strings.TrimSpace(tag[1:])}
			top := stack[len(stack)-1]
			top.children = append(top.children, section)
			stack = append(stack, &top.children[len(top.children)-1])
		case strings.HasPrefix(tag, "/"):
			name := strings.TrimSpace(tag[1:])
			for i := len(stack) - 1; i > 0; i-- {
				if stack[i].name == name {
					stack = stack[:i]
					break
				}
			}
		case tag == frontSideName:
			emit(node{kind: nodeFrontSide})
		case strings.HasPrefix(tag, "cloze:"):
			emit(node{kind: nodeField, name: strings.TrimSpace(tag[len("cloze:"):])})
		default:
			emit(node{kind: nodeField, name: tag})
		}
	}
	if rest != "" {
		emit(node{kind: nodeText, text: rest})
	}
	return root.children
}
