// Package yamldoc implements stage S2: strict YAML 1.2 parsing into the
// generic Document tree described by the data model. It is built the way
// dslyaml decodes polymorphic YAML shapes — by walking gopkg.in/yaml.v3's
// yaml.Node tree directly instead of unmarshalling into Go structs — because
// duplicate-key rejection and per-key spans both require seeing the raw
// mapping pairs before anything collapses them into a map.
package yamldoc

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/leynos/netsuke/internal/diag"
)

// Kind identifies which of the three Document node shapes a Node holds.
type Kind int

const (
	Scalar Kind = iota
	Sequence
	Mapping
)

// Entry is one key/value pair of a Mapping node. Mappings preserve
// insertion order, so Document consumers must iterate Entries rather than
// reading a Go map.
type Entry struct {
	Key   *Node
	Value *Node
}

// Node is one element of the untyped Document tree. Every node carries a
// source span for diagnostic attribution, preserved unchanged through every
// later stage.
type Node struct {
	Kind     Kind
	Tag      string // yaml tag, e.g. "!!str", "!!bool", "!!int", "!!null"
	Scalar   string // raw scalar text; typed conversion happens in S4
	Items    []*Node
	Entries  []Entry
	Span     diag.Span
}

// Budgets bounds parser resource consumption. Exceeding any of them fails
// with a Yaml/ResourceLimit diagnostic naming the configured and observed
// values, per spec §4.2 and §6.
type Budgets struct {
	MaxBytes           int
	MaxDepth           int
	MaxAliasExpansions int
}

// DefaultBudgets returns conservative defaults suitable for hand-written
// manifests; hosts may override them (spec §6: "host-configurable").
func DefaultBudgets() Budgets {
	return Budgets{
		MaxBytes:           8 << 20, // 8 MiB
		MaxDepth:           128,
		MaxAliasExpansions: 1000,
	}
}

type parser struct {
	origin          string
	budgets         Budgets
	aliasExpansions int
}

// Parse converts raw manifest bytes into a Document, rejecting duplicate
// mapping keys and resolving anchors/merge keys so that no alias node
// reaches a later stage.
func Parse(origin string, data []byte) (*Node, error) {
	return ParseWithBudgets(origin, data, DefaultBudgets())
}

// ParseWithBudgets is Parse with explicit resource budgets.
func ParseWithBudgets(origin string, data []byte, budgets Budgets) (*Node, error) {
	if budgets.MaxBytes > 0 && len(data) > budgets.MaxBytes {
		return nil, diag.New(diag.Yaml, "ResourceLimit",
			fmt.Sprintf("manifest exceeds maximum size: configured=%d observed=%d", budgets.MaxBytes, len(data)),
			diag.Span{Origin: origin}).
			WithHint("split the manifest or raise the configured byte budget")
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, diag.Wrap(diag.Yaml, "Parse", err, diag.Span{Origin: origin})
	}
	if len(root.Content) == 0 {
		return nil, diag.New(diag.Yaml, "Empty", "manifest contains no document", diag.Span{Origin: origin})
	}

	p := &parser{origin: origin, budgets: budgets}
	return p.convert(root.Content[0], 0)
}

func (p *parser) span(n *yaml.Node) diag.Span {
	return diag.Span{Origin: p.origin, Line: n.Line, Column: n.Column}
}

// octalRE matches a YAML 1.1 leading-zero octal literal (e.g. "017"), a
// form YAML 1.2 no longer honours implicitly.
var octalRE = regexp.MustCompile(`^[+-]?0[0-7]+$`)

// strictTag downgrades yaml.v3's default (1.1-leaning) scalar resolution to
// strict YAML 1.2: bare `yes`/`no`/`on`/`off`/`y`/`n` and leading-zero octal
// integers become plain strings unless the author explicitly quoted them as
// the target type (spec §4.2). Quoted/explicitly-tagged scalars are
// untouched: yaml.v3 only assigns an implicit "!!bool"/"!!int" tag to
// unquoted plain scalars in the first place.
func strictTag(n *yaml.Node) string {
	if n.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		return n.Tag
	}
	switch n.Tag {
	case "!!bool":
		switch n.Value {
		case "true", "false":
			return n.Tag
		default:
			return "!!str"
		}
	case "!!int":
		if octalRE.MatchString(n.Value) {
			return "!!str"
		}
		return n.Tag
	default:
		return n.Tag
	}
}

func (p *parser) convert(n *yaml.Node, depth int) (*Node, error) {
	if p.budgets.MaxDepth > 0 && depth > p.budgets.MaxDepth {
		return nil, diag.New(diag.Yaml, "ResourceLimit",
			fmt.Sprintf("manifest exceeds maximum nesting depth: configured=%d observed=%d", p.budgets.MaxDepth, depth),
			p.span(n))
	}

	switch n.Kind {
	case yaml.AliasNode:
		p.aliasExpansions++
		if p.budgets.MaxAliasExpansions > 0 && p.aliasExpansions > p.budgets.MaxAliasExpansions {
			return nil, diag.New(diag.Yaml, "ResourceLimit",
				fmt.Sprintf("manifest exceeds maximum alias expansion count: configured=%d observed=%d",
					p.budgets.MaxAliasExpansions, p.aliasExpansions),
				p.span(n))
		}
		// Aliases become independent copies: recurse into the anchor's
		// target but attribute the span to the alias occurrence, not the
		// anchor definition.
		target, err := p.convert(n.Alias, depth+1)
		if err != nil {
			return nil, err
		}
		clone := *target
		clone.Span = p.span(n)
		return &clone, nil

	case yaml.ScalarNode:
		return &Node{Kind: Scalar, Tag: strictTag(n), Scalar: n.Value, Span: p.span(n)}, nil

	case yaml.SequenceNode:
		items := make([]*Node, 0, len(n.Content))
		for _, c := range n.Content {
			item, err := p.convert(c, depth+1)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return &Node{Kind: Sequence, Tag: n.Tag, Items: items, Span: p.span(n)}, nil

	case yaml.MappingNode:
		return p.convertMapping(n, depth)

	default:
		return nil, diag.New(diag.Internal, "UnhandledNodeKind",
			fmt.Sprintf("unhandled yaml node kind %d", n.Kind), p.span(n))
	}
}

// convertMapping walks a mapping's flat [key,value,key,value,...] content,
// rejecting duplicate explicit keys and splicing "<<" merge keys with local
// keys overriding merged ones (merge key spec, resolved here so downstream
// stages never see one).
func (p *parser) convertMapping(n *yaml.Node, depth int) (*Node, error) {
	type pending struct {
		keyNode *yaml.Node
		key     *Node
		value   *Node
	}

	seen := map[string]diag.Span{}
	var locals []pending
	var mergeSources []*Node

	for i := 0; i+1 < len(n.Content); i += 2 {
		keyRaw, valRaw := n.Content[i], n.Content[i+1]

		if keyRaw.Kind == yaml.ScalarNode && keyRaw.Value == "<<" && keyRaw.Tag != "!!str" {
			val, err := p.convert(valRaw, depth+1)
			if err != nil {
				return nil, err
			}
			switch val.Kind {
			case Mapping:
				mergeSources = append(mergeSources, val)
			case Sequence:
				mergeSources = append(mergeSources, val.Items...)
			default:
				return nil, diag.New(diag.Yaml, "InvalidMergeKey",
					"merge key '<<' value must be a mapping or sequence of mappings", p.span(valRaw))
			}
			continue
		}

		key, err := p.convert(keyRaw, depth+1)
		if err != nil {
			return nil, err
		}
		if key.Kind == Scalar {
			if first, dup := seen[key.Scalar]; dup {
				return nil, diag.New(diag.Yaml, "DuplicateKey",
					fmt.Sprintf("duplicate mapping key %q", key.Scalar),
					p.span(keyRaw), first)
			}
			seen[key.Scalar] = p.span(keyRaw)
		}
		value, err := p.convert(valRaw, depth+1)
		if err != nil {
			return nil, err
		}
		locals = append(locals, pending{keyNode: keyRaw, key: key, value: value})
	}

	entries := make([]Entry, 0, len(locals))
	localKeys := map[string]struct{}{}
	for _, l := range locals {
		entries = append(entries, Entry{Key: l.key, Value: l.value})
		if l.key.Kind == Scalar {
			localKeys[l.key.Scalar] = struct{}{}
		}
	}

	// Merge sources contribute keys not already defined locally. Earlier
	// sources in the merge list win over later ones, matching the
	// traditional YAML 1.1 merge-key precedence rule.
	contributed := map[string]struct{}{}
	for _, src := range mergeSources {
		for _, e := range src.Entries {
			if e.Key.Kind != Scalar {
				continue
			}
			if _, taken := localKeys[e.Key.Scalar]; taken {
				continue
			}
			if _, taken := contributed[e.Key.Scalar]; taken {
				continue
			}
			contributed[e.Key.Scalar] = struct{}{}
			entries = append(entries, Entry{Key: e.Key, Value: e.Value})
		}
	}

	return &Node{Kind: Mapping, Tag: n.Tag, Entries: entries, Span: p.span(n)}, nil
}

// Get returns the value mapped to key, or nil if absent. Only meaningful on
// Mapping nodes.
func (n *Node) Get(key string) *Node {
	if n == nil || n.Kind != Mapping {
		return nil
	}
	for _, e := range n.Entries {
		if e.Key.Kind == Scalar && e.Key.Scalar == key {
			return e.Value
		}
	}
	return nil
}

// Keys returns the mapping's keys in document order.
func (n *Node) Keys() []string {
	if n == nil || n.Kind != Mapping {
		return nil
	}
	keys := make([]string, 0, len(n.Entries))
	for _, e := range n.Entries {
		if e.Key.Kind == Scalar {
			keys = append(keys, e.Key.Scalar)
		}
	}
	return keys
}
