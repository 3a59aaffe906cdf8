package data

import (
	"bytes"
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// Vec3 is written as a flow sequence [x, y, z].
type Vec3 [3]float64

func (v Vec3) R3() r3.Vec   { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }
func (v Vec3) IsZero() bool { return v == Vec3{} }
func FromR3(p r3.Vec) Vec3  { return Vec3{p.X, p.Y, p.Z} }

func (v Vec3) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, c := range v {
		var e yaml.Node
		if err := e.Encode(c); err != nil {
			return nil, err
		}
		n.Content = append(n.Content, &e)
	}
	return n, nil
}

// GraphEntry declares one spatial graph. Origin places the graph in the
// world.
type GraphEntry struct {
	Name   string `yaml:"name"`
	Center Vec3   `yaml:"center"`
	Half   Vec3   `yaml:"half_extent"`
	Origin Vec3   `yaml:"origin,omitempty"`
}

// ObjectEntry declares an object. Position is relative to Parent when one
// is named, otherwise to the graph.
type ObjectEntry struct {
	Name     string `yaml:"name,omitempty"`
	Graph    string `yaml:"graph"`
	Position Vec3   `yaml:"position"`
	Extent   Vec3   `yaml:"extent,omitempty"`
	Parent   string `yaml:"parent,omitempty"`
	Velocity Vec3   `yaml:"velocity,omitempty"`
}

type PortalEntry struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Offset Vec3   `yaml:"offset,omitempty"`
}

type CameraEntry struct {
	Graph  string `yaml:"graph"`
	Center Vec3   `yaml:"center"`
	Half   Vec3   `yaml:"half"`
}

// SceneFile is the YAML scene description.
type SceneFile struct {
	Name    string        `yaml:"name"`
	Graphs  []GraphEntry  `yaml:"graphs"`
	Portals []PortalEntry `yaml:"portals,omitempty"`
	Objects []ObjectEntry `yaml:"objects,omitempty"`
	Camera  *CameraEntry  `yaml:"camera,omitempty"`
}

// LoadSceneFile reads and checks a scene description.
func LoadSceneFile(path string) (*SceneFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene file: %w", err)
	}
	f, err := ParseSceneFile(raw)
	if err != nil {
		return nil, fmt.Errorf("scene file %s: %w", path, err)
	}
	return f, nil
}

func ParseSceneFile(raw []byte) (*SceneFile, error) {
	var f SceneFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks references between entries. Geometry is checked when the
// scene is built, where the dimensionality is known.
func (f *SceneFile) Validate() error {
	graphs := make(map[string]bool, len(f.Graphs))
	for _, g := range f.Graphs {
		if g.Name == "" {
			return fmt.Errorf("graph without a name")
		}
		if graphs[g.Name] {
			return fmt.Errorf("graph %q declared twice", g.Name)
		}
		graphs[g.Name] = true
	}
	for _, p := range f.Portals {
		if !graphs[p.From] || !graphs[p.To] {
			return fmt.Errorf("portal %s -> %s: unknown graph", p.From, p.To)
		}
	}
	objects := make(map[string]string, len(f.Objects))
	for _, o := range f.Objects {
		if !graphs[o.Graph] {
			return fmt.Errorf("object %q: unknown graph %q", o.Name, o.Graph)
		}
		if o.Name == "" {
			continue
		}
		if _, dup := objects[o.Name]; dup {
			return fmt.Errorf("object %q declared twice", o.Name)
		}
		objects[o.Name] = o.Graph
	}
	for _, o := range f.Objects {
		if o.Parent == "" {
			continue
		}
		g, ok := objects[o.Parent]
		if !ok {
			return fmt.Errorf("object %q: unknown parent %q", o.Name, o.Parent)
		}
		if g != o.Graph {
			return fmt.Errorf("object %q: parent %q is in graph %q", o.Name, o.Parent, g)
		}
	}
	if f.Camera != nil && !graphs[f.Camera.Graph] {
		return fmt.Errorf("camera: unknown graph %q", f.Camera.Graph)
	}
	return nil
}

// Marshal renders f as YAML.
func (f *SceneFile) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
