package stage

import "gopkg.in/yaml.v3"

func (g Stage) MarshalYAML() (interface{}, error) {
	return g.String(), nil
}

func (g *Stage) UnmarshalYAML(node *yaml.Node) error {
	var name string
	if err := node.Decode(&name); err != nil {
		return err
	}
	parsed, err := Parse(name)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
