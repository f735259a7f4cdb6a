package graphql

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
)

// collectedField is a field selection after fragments are expanded.
type collectedField struct {
	*ast.Field
	// selections holds the sub-selections of every occurrence of the response
	// key, merged in document order.
	selections ast.SelectionSet
}

// collector expands fragments and applies @skip and @include.
type collector struct {
	fragments ast.FragmentDefinitionList
	variables map[string]any
}

// collect flattens set into one entry per response key. typeName filters
// type conditions; an empty typeName accepts every condition.
func (c *collector) collect(set ast.SelectionSet, typeName string) ([]*collectedField, error) {
	var fields []*collectedField
	index := make(map[string]*collectedField)
	if err := c.walk(set, typeName, map[string]bool{}, index, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (c *collector) walk(set ast.SelectionSet, typeName string, visited map[string]bool,
	index map[string]*collectedField, fields *[]*collectedField) error {
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			ok, err := c.included(s.Directives)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			key := s.Alias
			if key == "" {
				key = s.Name
			}
			if f, seen := index[key]; seen {
				if f.Name != s.Name {
					return fmt.Errorf("fields %q and %q conflict on response key %q", f.Name, s.Name, key)
				}
				f.selections = append(f.selections, s.SelectionSet...)
				continue
			}
			f := &collectedField{Field: s, selections: append(ast.SelectionSet{}, s.SelectionSet...)}
			index[key] = f
			*fields = append(*fields, f)

		case *ast.InlineFragment:
			ok, err := c.included(s.Directives)
			if err != nil {
				return err
			}
			if !ok || !matches(s.TypeCondition, typeName) {
				continue
			}
			if err := c.walk(s.SelectionSet, typeName, visited, index, fields); err != nil {
				return err
			}

		case *ast.FragmentSpread:
			ok, err := c.included(s.Directives)
			if err != nil {
				return err
			}
			if !ok || visited[s.Name] {
				continue
			}
			def := c.fragments.ForName(s.Name)
			if def == nil {
				return fmt.Errorf("unknown fragment %q", s.Name)
			}
			if !matches(def.TypeCondition, typeName) {
				continue
			}
			visited[s.Name] = true
			err = c.walk(def.SelectionSet, typeName, visited, index, fields)
			delete(visited, s.Name)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *collector) included(directives ast.DirectiveList) (bool, error) {
	for _, d := range directives {
		var want bool
		switch d.Name {
		case "skip":
			want = false
		case "include":
			want = true
		default:
			continue
		}
		arg := d.Arguments.ForName("if")
		if arg == nil {
			return false, fmt.Errorf("directive @%s requires argument \"if\"", d.Name)
		}
		v, err := arg.Value.Value(c.variables)
		if err != nil {
			return false, err
		}
		b, ok := v.(bool)
		if !ok {
			return false, fmt.Errorf("directive @%s argument \"if\" must be a boolean", d.Name)
		}
		if b != want {
			return false, nil
		}
	}
	return true, nil
}

func matches(condition, typeName string) bool {
	return condition == "" || typeName == "" || condition == typeName
}

// arguments evaluates a field's arguments against the request variables.
func (c *collector) arguments(f *ast.Field) (map[string]any, error) {
	args := make(map[string]any, len(f.Arguments))
	for _, a := range f.Arguments {
		v, err := a.Value.Value(c.variables)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", a.Name, err)
		}
		args[a.Name] = v
	}
	return args, nil
}
