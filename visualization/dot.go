// Package visualization renders machine models as Graphviz graphs
package visualization

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/anggasct/hsm"
)

// DOTGenerator generates Graphviz DOT format representations of state machines
type DOTGenerator[S hsm.State] struct {
	desc    hsm.Description[S]
	options DOTOptions
}

// DOTOptions configures the DOT generation
type DOTOptions struct {
	ShowGuardConditions bool
	ShowActions         bool
	ShowExceptions      bool
	RankDirection       string // "TB", "LR", "BT", "RL"
	NodeShape           string
}

// DefaultDOTOptions returns sensible default options for DOT generation
func DefaultDOTOptions() DOTOptions {
	return DOTOptions{
		ShowGuardConditions: true,
		ShowActions:         true,
		ShowExceptions:      true,
		RankDirection:       "TB",
		NodeShape:           "box",
	}
}

// NewDOTGenerator creates a new DOT generator for the given model description
func NewDOTGenerator[S hsm.State](desc hsm.Description[S], options ...DOTOptions) *DOTGenerator[S] {
	opts := DefaultDOTOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &DOTGenerator[S]{
		desc:    desc,
		options: opts,
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func (g *DOTGenerator[S]) id(state S) string {
	return quote(fmt.Sprint(state))
}

func (g *DOTGenerator[S]) cluster(state S) string {
	return quote(fmt.Sprintf("cluster_%v", state))
}

// Generate creates a DOT representation of the state machine
func (g *DOTGenerator[S]) Generate() (string, error) {
	if len(g.desc.States) == 0 {
		return "", fmt.Errorf("machine %q declares no states", g.desc.Name)
	}

	var dot strings.Builder

	name := g.desc.Name
	if name == "" {
		name = "StateMachine"
	}
	fmt.Fprintf(&dot, "digraph %s {\n", quote(name))
	fmt.Fprintf(&dot, "  rankdir=%s;\n", g.options.RankDirection)
	dot.WriteString("  compound=true;\n")
	fmt.Fprintf(&dot, "  node [shape=%s style=\"rounded,filled\" fillcolor=lightblue];\n", g.options.NodeShape)
	dot.WriteString("  edge [fontsize=10];\n\n")

	var zero S
	dot.WriteString("  // States\n")
	for _, s := range g.desc.States {
		if g.desc.Parent(s) == zero {
			g.generateState(&dot, s, "  ")
		}
	}

	if g.desc.Initial != zero {
		dot.WriteString("\n  \"__start\" [shape=point width=0.2];\n")
		fmt.Fprintf(&dot, "  \"__start\" -> %s%s;\n", g.id(g.desc.Initial), g.head(g.desc.Initial))
	}

	dot.WriteString("\n  // Transitions\n")
	for _, t := range g.desc.Transitions {
		g.generateTransition(&dot, t)
	}

	if g.options.ShowExceptions {
		dot.WriteString("\n  // Exception routes\n")
		g.generateExceptionRoutes(&dot)
	}

	dot.WriteString("}\n")
	return dot.String(), nil
}

// generateState writes a plain node, or a cluster holding an anchor node for a superstate
func (g *DOTGenerator[S]) generateState(dot *strings.Builder, state S, indent string) {
	super, ok := g.desc.SuperState(state)
	if !ok {
		fill := "lightblue"
		label := fmt.Sprint(state)
		if state == g.desc.Initial {
			fill = "lightgreen"
			label += `\n(initial)`
		}
		fmt.Fprintf(dot, "%s%s [fillcolor=%s label=%s];\n", indent, g.id(state), fill, quote(label))
		return
	}

	fmt.Fprintf(dot, "%ssubgraph %s {\n", indent, g.cluster(state))
	inner := indent + "  "
	label := fmt.Sprint(state)
	if state == g.desc.Initial {
		label += " (initial)"
	}
	fmt.Fprintf(dot, "%slabel=%s;\n", inner, quote(label))
	fmt.Fprintf(dot, "%sstyle=\"rounded,filled\";\n", inner)
	fmt.Fprintf(dot, "%sfillcolor=lightcyan;\n", inner)

	// the anchor marks the initial substate and carries the history marker
	if super.Memory == hsm.MemoryDeep {
		fmt.Fprintf(dot, "%s%s [shape=circle label=\"H*\" fillcolor=white width=0.3];\n", inner, g.id(state))
	} else {
		fmt.Fprintf(dot, "%s%s [shape=point width=0.15];\n", inner, g.id(state))
	}

	for _, sub := range super.SubStates {
		g.generateState(dot, sub, inner)
	}
	fmt.Fprintf(dot, "%s%s -> %s [arrowhead=vee%s];\n", inner, g.id(state), g.id(super.Initial), g.attrHead(super.Initial))
	fmt.Fprintf(dot, "%s}\n", indent)
}

// head returns the lhead attribute list for edges ending at a superstate
func (g *DOTGenerator[S]) head(state S) string {
	if _, ok := g.desc.SuperState(state); ok {
		return fmt.Sprintf(" [lhead=%s]", g.cluster(state))
	}
	return ""
}

func (g *DOTGenerator[S]) attrHead(state S) string {
	if _, ok := g.desc.SuperState(state); ok {
		return " lhead=" + g.cluster(state)
	}
	return ""
}

func (g *DOTGenerator[S]) attrTail(state S) string {
	if _, ok := g.desc.SuperState(state); ok {
		return " ltail=" + g.cluster(state)
	}
	return ""
}

func (g *DOTGenerator[S]) transitionLabel(t hsm.TransitionDescription[S]) string {
	label := t.Event
	if t.IsNull() {
		label = "(null)"
	}
	if t.Guarded && g.options.ShowGuardConditions {
		label += " [guard]"
	}
	if t.HasAction && g.options.ShowActions {
		label += " / action"
	}
	if t.IsInternal() {
		label += " [internal]"
	}
	return label
}

func (g *DOTGenerator[S]) generateTransition(dot *strings.Builder, t hsm.TransitionDescription[S]) {
	attrs := []string{"label=" + quote(g.transitionLabel(t))}
	if t.Guarded {
		attrs = append(attrs, "style=dashed")
	}

	// internal transitions loop back on their source
	to := t.To
	if t.IsInternal() {
		to = t.From
	} else {
		if tail := g.attrTail(t.From); tail != "" {
			attrs = append(attrs, strings.TrimSpace(tail))
		}
		if head := g.attrHead(to); head != "" {
			attrs = append(attrs, strings.TrimSpace(head))
		}
	}

	fmt.Fprintf(dot, "  %s -> %s [%s];\n", g.id(t.From), g.id(to), strings.Join(attrs, " "))
}

// generateExceptionRoutes draws the default routes, and superstate and
// transition routes that differ from the ones they inherited
func (g *DOTGenerator[S]) generateExceptionRoutes(dot *strings.Builder) {
	var zero S
	seen := make(map[string]bool)
	draw := func(from S, rule hsm.RuleDescription[S]) {
		if rule.Target == zero {
			return
		}
		line := fmt.Sprintf("  %s -> %s [label=%s color=red fontcolor=red style=dotted%s%s];\n",
			g.id(from), g.id(rule.Target), quote(rule.Category), g.attrTail(from), g.attrHead(rule.Target))
		if !seen[line] {
			seen[line] = true
			dot.WriteString(line)
		}
	}

	// default routes apply to every state
	if len(g.desc.Defaults) > 0 {
		dot.WriteString("  \"__any\" [shape=plaintext label=\"any state\" fontcolor=red];\n")
		for _, rule := range g.desc.Defaults {
			if rule.Target != zero {
				fmt.Fprintf(dot, "  \"__any\" -> %s [label=%s color=red fontcolor=red style=dotted%s];\n",
					g.id(rule.Target), quote(rule.Category), g.attrHead(rule.Target))
			}
		}
	}

	for _, s := range g.desc.SuperStates {
		inherited := g.desc.Defaults
		if s.Parent != zero {
			parent, _ := g.desc.SuperState(s.Parent)
			inherited = parent.Exceptions
		}
		if slices.Equal(s.Exceptions, inherited) {
			continue
		}
		for _, rule := range s.Exceptions {
			draw(s.State, rule)
		}
	}

	for _, t := range g.desc.Transitions {
		inherited := g.desc.Defaults
		if parent := g.desc.Parent(t.From); parent != zero {
			super, _ := g.desc.SuperState(parent)
			inherited = super.Exceptions
		}
		if slices.Equal(t.Exceptions, inherited) {
			continue
		}
		for _, rule := range t.Exceptions {
			draw(t.From, rule)
		}
	}
}

// GenerateToFile writes the DOT representation to a file
func (g *DOTGenerator[S]) GenerateToFile(filename string) error {
	content, err := g.Generate()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, []byte(content), 0644)
}

// GenerateSVG converts the DOT representation to SVG by calling Graphviz
func (g *DOTGenerator[S]) GenerateSVG() (string, error) {
	dotContent, err := g.Generate()
	if err != nil {
		return "", err
	}

	cmd := exec.Command("dot", "-Tsvg")
	cmd.Stdin = strings.NewReader(dotContent)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to execute dot command: %w (make sure Graphviz is installed)", err)
	}

	return out.String(), nil
}
