package company

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Position tags a plan node's place in the chain.
type Position string

const (
	PositionStart      Position = "start"
	PositionInProgress Position = "in-progress"
	PositionEnd        Position = "end"
)

// PlanStep is one record of the manager's working-plan payload.
type PlanStep struct {
	Name    string `json:"name"`
	SubTask string `json:"sub_task"`
}

// PlanNode is a step placed into the linear execution chain. Next holds the
// single successor's name for every non-terminal node.
type PlanNode struct {
	Name     string   `json:"name"`
	SubTask  string   `json:"sub_task"`
	Position Position `json:"position"`
	Next     []string `json:"next,omitempty"`
}

// Plan is a linear chain of nodes keyed by name. It is immutable once
// built; a run never mutates it.
type Plan struct {
	nodes map[string]*PlanNode
	order []string
}

// Node looks up a node by name.
func (p *Plan) Node(name string) (*PlanNode, bool) {
	n, ok := p.nodes[name]
	return n, ok
}

// Start returns the plan's start node.
func (p *Plan) Start() *PlanNode {
	return p.nodes[p.order[0]]
}

// Len returns the number of nodes.
func (p *Plan) Len() int { return len(p.order) }

// Names returns node names in execution order.
func (p *Plan) Names() []string {
	return append([]string{}, p.order...)
}

// Nodes returns the nodes in execution order.
func (p *Plan) Nodes() []*PlanNode {
	out := make([]*PlanNode, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.nodes[name])
	}
	return out
}

// MarshalJSON renders the plan as its ordered node list.
func (p *Plan) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Nodes())
}

// BuildPlan links an ordered step list into a Plan: first node is start,
// last is end (the same node when there is only one), everything between is
// in-progress, and each non-terminal node's Next points at its successor.
func BuildPlan(steps []PlanStep) (*Plan, error) {
	if len(steps) == 0 {
		return nil, ErrEmptyPlan
	}
	p := &Plan{nodes: make(map[string]*PlanNode, len(steps))}
	for i, step := range steps {
		if step.Name == "" {
			return nil, fmt.Errorf("%w: step %d has no name", ErrPlanParse, i)
		}
		if step.SubTask == "" {
			return nil, fmt.Errorf("%w: step %q has no sub_task", ErrPlanParse, step.Name)
		}
		if _, exists := p.nodes[step.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate step name %q", ErrPlanParse, step.Name)
		}
		node := &PlanNode{
			Name:     step.Name,
			SubTask:  step.SubTask,
			Position: PositionInProgress,
		}
		if i == 0 {
			node.Position = PositionStart
		}
		if i == len(steps)-1 {
			node.Position = PositionEnd
		}
		p.nodes[step.Name] = node
		p.order = append(p.order, step.Name)
	}
	for i := 0; i < len(p.order)-1; i++ {
		p.nodes[p.order[i]].Next = []string{p.order[i+1]}
	}
	return p, nil
}

// ParsePlan extracts the working-plan marker from raw manager output,
// repairs unescaped backslashes so math notation survives JSON decoding,
// strictly decodes the step list and builds the Plan. Malformed payloads
// are rejected, never coerced.
func ParsePlan(raw string) (*Plan, error) {
	payload := ExtractMarker(MarkerWorkingPlan, raw)
	if payload == "" {
		return nil, fmt.Errorf("%w: no %s marker pair found", ErrPlanParse, MarkerWorkingPlan)
	}
	return decodeSteps(payload)
}

func decodeSteps(payload string) (*Plan, error) {
	var steps []PlanStep
	if err := json.Unmarshal([]byte(RepairBackslashes(payload)), &steps); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlanParse, err)
	}
	return BuildPlan(steps)
}

// RepairBackslashes doubles backslashes so raw TeX (\alpha, \times, \theta)
// inside a JSON string survives json.Unmarshal. Only \", \\, \/ and \uXXXX
// (with all four hex digits present) are kept as escapes; short escapes like
// \t and \n are doubled too, since in this payload a backslash far more
// often starts a TeX command than a control character. \u without the hex
// digits is a TeX command as well (\underline, \upsilon) and gets doubled.
func RepairBackslashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(s) {
			switch s[i+1] {
			case '"', '\\', '/':
				b.WriteByte(c)
				b.WriteByte(s[i+1])
				i++
				continue
			case 'u':
				if isHexDigits(s[i+2:], 4) {
					b.WriteByte(c)
					b.WriteByte(s[i+1])
					i++
					continue
				}
			}
		}
		b.WriteString(`\\`)
	}
	return b.String()
}

func isHexDigits(s string, n int) bool {
	if len(s) < n {
		return false
	}
	for i := 0; i < n; i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
