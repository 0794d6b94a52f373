package interp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fluxionlabs/fluxion/model"
)

// PathRoot selects which tree a path addresses.
type PathRoot int

const (
	RootState PathRoot = iota
	RootInput
)

type SegmentKind int

const (
	SegmentKey SegmentKind = iota
	SegmentIndex
	SegmentDynamic
)

// PathSegment is one step into the state or input tree. Dynamic segments
// carry an AST node whose value is computed at run time and used as the
// offset.
type PathSegment struct {
	Kind   SegmentKind
	Key    string
	Index  int
	Offset *model.AstNode
}

type Path struct {
	Root     PathRoot
	Segments []PathSegment
}

// ParsePath parses dotted/bracketed path syntax: "a.b[0]", "input.answers",
// "items[$.i]". Bracket groups are extracted before dot handling, so offset
// expressions may themselves contain dots. A bracket holding a non-numeric
// expression becomes a dynamic offset evaluated against the running
// interpreter; a bare identifier offset reads the state variable of that
// name.
func ParsePath(raw string) (Path, error) {
	if raw == "" {
		return Path{}, fmt.Errorf("empty path")
	}
	p := Path{Root: RootState}
	rest := raw
	if strings.HasPrefix(rest, "input.") {
		p.Root = RootInput
		rest = strings.TrimPrefix(rest, "input.")
	} else if strings.HasPrefix(rest, "state.") {
		rest = strings.TrimPrefix(rest, "state.")
	}
	i := 0
	expectSegment := true
	for i < len(rest) {
		switch rest[i] {
		case '.':
			if expectSegment {
				return Path{}, fmt.Errorf("path %q has an empty segment", raw)
			}
			expectSegment = true
			i++
		case '[':
			end := strings.IndexByte(rest[i:], ']')
			if end < 0 {
				return Path{}, fmt.Errorf("path %q has an unterminated index", raw)
			}
			expr := rest[i+1 : i+end]
			if expr == "" {
				return Path{}, fmt.Errorf("path %q has an empty index", raw)
			}
			p.Segments = append(p.Segments, offsetSegment(expr))
			i += end + 1
			expectSegment = false
		default:
			start := i
			for i < len(rest) && rest[i] != '.' && rest[i] != '[' {
				i++
			}
			p.Segments = append(p.Segments, PathSegment{Kind: SegmentKey, Key: rest[start:i]})
			expectSegment = false
		}
	}
	if expectSegment || len(p.Segments) == 0 {
		return Path{}, fmt.Errorf("path %q has an empty segment", raw)
	}
	return p, nil
}

// offsetSegment classifies a bracket expression: a literal integer indexes
// directly, anything else is deferred to run time.
func offsetSegment(expr string) PathSegment {
	if idx, err := strconv.Atoi(expr); err == nil {
		return PathSegment{Kind: SegmentIndex, Index: idx}
	}
	bytecode := expr
	if isIdentifier(expr) {
		bytecode = "$." + expr
	}
	return PathSegment{
		Kind: SegmentDynamic,
		Offset: &model.AstNode{
			Op:       model.OpEvaluate,
			Metadata: map[string]any{"bytecode": bytecode},
		},
	}
}

func isIdentifier(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return s != ""
}

// resolveSegment turns a dynamic segment into a concrete one using the
// interpreter to evaluate the offset expression.
func (in *Interpreter) resolveSegment(seg PathSegment) (PathSegment, error) {
	if seg.Kind != SegmentDynamic {
		return seg, nil
	}
	res, err := in.eval(seg.Offset)
	if err != nil {
		return seg, err
	}
	switch v := res.value.(type) {
	case float64:
		return PathSegment{Kind: SegmentIndex, Index: int(v)}, nil
	case int64:
		return PathSegment{Kind: SegmentIndex, Index: int(v)}, nil
	case string:
		return PathSegment{Kind: SegmentKey, Key: v}, nil
	default:
		return seg, fmt.Errorf("dynamic offset evaluated to %T, want number or string", res.value)
	}
}

// readPath walks the addressed tree and returns the value, failing when any
// step is absent.
func (in *Interpreter) readPath(p Path) (any, error) {
	var cur any
	if p.Root == RootInput {
		cur = in.input
	} else {
		cur = in.state
	}
	for _, seg := range p.Segments {
		seg, err := in.resolveSegment(seg)
		if err != nil {
			return nil, err
		}
		switch seg.Kind {
		case SegmentKey:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("path step %q: not an object", seg.Key)
			}
			cur, ok = m[seg.Key]
			if !ok {
				return nil, fmt.Errorf("path step %q: no such key", seg.Key)
			}
		case SegmentIndex:
			s, ok := cur.([]any)
			if !ok {
				return nil, fmt.Errorf("path step [%d]: not an array", seg.Index)
			}
			if seg.Index < 0 || seg.Index >= len(s) {
				return nil, fmt.Errorf("path step [%d]: index out of range (len %d)", seg.Index, len(s))
			}
			cur = s[seg.Index]
		}
	}
	return cur, nil
}

// writePath writes value at the addressed location in the state tree,
// creating intermediate objects as needed. Only state is writable.
func (in *Interpreter) writePath(p Path, value any) error {
	if p.Root == RootInput {
		return fmt.Errorf("input tree is read-only")
	}
	var cur any = in.state
	for i, seg := range p.Segments {
		seg, err := in.resolveSegment(seg)
		if err != nil {
			return err
		}
		last := i == len(p.Segments)-1
		switch seg.Kind {
		case SegmentKey:
			m, ok := cur.(map[string]any)
			if !ok {
				return fmt.Errorf("path step %q: not an object", seg.Key)
			}
			if last {
				m[seg.Key] = value
				return nil
			}
			next, ok := m[seg.Key]
			if !ok {
				child := map[string]any{}
				m[seg.Key] = child
				cur = child
				continue
			}
			cur = next
		case SegmentIndex:
			s, ok := cur.([]any)
			if !ok {
				return fmt.Errorf("path step [%d]: not an array", seg.Index)
			}
			if seg.Index < 0 || seg.Index >= len(s) {
				return fmt.Errorf("path step [%d]: index out of range (len %d)", seg.Index, len(s))
			}
			if last {
				s[seg.Index] = value
				return nil
			}
			cur = s[seg.Index]
		}
	}
	return nil
}
