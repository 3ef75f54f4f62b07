package harness

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tether/internal/generator"
	"github.com/roach88/tether/internal/ir"
)

// replyValue converts a scripted reply. A plain string is raw generator text
// and goes through the same lenient parsing a real reply would; anything else
// is the parsed reply itself.
func replyValue(n *yaml.Node) (ir.IRValue, error) {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!str" {
		return generator.ParseReply(n.Value), nil
	}
	return nodeValue(n)
}

// nodeValue converts a YAML node to an IRValue. Unlike ir.FromGo it keeps
// mapping key order, so expected replies compare and print in the order
// they were written.
func nodeValue(n *yaml.Node) (ir.IRValue, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return ir.IRNull{}, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.MappingNode:
		obj := ir.NewIRObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			obj.Set(key, v)
		}
		return obj, nil
	case yaml.SequenceNode:
		arr := make(ir.IRArray, len(n.Content))
		for i, elem := range n.Content {
			v, err := nodeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = v
		}
		return arr, nil
	case yaml.ScalarNode:
		return scalarValue(n)
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", n.Line, n.Kind)
	}
}

func scalarValue(n *yaml.Node) (ir.IRValue, error) {
	switch n.ShortTag() {
	case "!!null":
		return ir.IRNull{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return ir.IRBool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, err
		}
		return ir.IRInt(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return ir.IRFloat(f), nil
	default:
		return ir.IRString(n.Value), nil
	}
}
