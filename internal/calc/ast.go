package calc

import (
	"strconv"
	"strings"
)

// Node operators.
const (
	OpNumber = "num"
	OpVar    = "var"
	OpNeg    = "neg"
	OpCall   = "call"
	OpNot    = "!"
	OpAnd    = "&&"
	OpOr     = "||"
)

// Node is one vertex of a parsed formula or condition.
type Node struct {
	Op    string
	Name  string // variable or function name
	Value float64
	Left  *Node
	Right *Node
	Args  []*Node
}

var comparisonOps = map[string]bool{"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true}

var arithmeticOps = map[string]bool{"+": true, "-": true, "*": true, "/": true}

// IsBool reports whether the node yields a boolean.
func (n *Node) IsBool() bool {
	if n == nil {
		return false
	}
	return comparisonOps[n.Op] || n.Op == OpAnd || n.Op == OpOr || n.Op == OpNot
}

// IsComparison reports whether the node is a numeric comparison.
func (n *Node) IsComparison() bool {
	return n != nil && comparisonOps[n.Op]
}

func (n *Node) String() string {
	if n == nil {
		return ""
	}
	switch n.Op {
	case OpNumber:
		return strconv.FormatFloat(n.Value, 'f', -1, 64)
	case OpVar:
		return n.Name
	case OpNeg:
		return "-" + n.Left.wrapped()
	case OpNot:
		return "!" + n.Left.wrapped()
	case OpCall:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = a.String()
		}
		return n.Name + "(" + strings.Join(args, ", ") + ")"
	default:
		return n.Left.wrapped() + " " + n.Op + " " + n.Right.wrapped()
	}
}

func (n *Node) wrapped() string {
	switch n.Op {
	case OpNumber, OpVar, OpCall, OpNeg, OpNot:
		return n.String()
	}
	return "(" + n.String() + ")"
}

// Variables returns the identifiers referenced by the node in first-seen order.
func Variables(n *Node) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(*Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.Op == OpVar {
			if !seen[n.Name] {
				seen[n.Name] = true
				out = append(out, n.Name)
			}
			return
		}
		walk(n.Left)
		walk(n.Right)
		for _, a := range n.Args {
			walk(a)
		}
	}
	walk(n)
	return out
}

// ExpandRanges rewrites aggregate calls whose single argument names a range
// (sum(r), avg(r), min(r), max(r)) into calls over the range members.
// The input tree is left untouched.
func ExpandRanges(n *Node, ranges map[string][]string) *Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Op == OpCall && len(n.Args) == 1 && n.Args[0].Op == OpVar && rangeFuncs[n.Name] {
		if members, ok := ranges[n.Args[0].Name]; ok && len(members) > 0 {
			out.Args = make([]*Node, len(members))
			for i, m := range members {
				out.Args[i] = &Node{Op: OpVar, Name: m}
			}
			return &out
		}
	}
	out.Left = ExpandRanges(n.Left, ranges)
	out.Right = ExpandRanges(n.Right, ranges)
	if n.Args != nil {
		out.Args = make([]*Node, len(n.Args))
		for i, a := range n.Args {
			out.Args[i] = ExpandRanges(a, ranges)
		}
	}
	return &out
}

var rangeFuncs = map[string]bool{"sum": true, "avg": true, "min": true, "max": true}
