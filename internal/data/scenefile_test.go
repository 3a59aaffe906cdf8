package data

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/l1jgo/scenegraph/internal/core/ecs"
	"github.com/l1jgo/scenegraph/internal/geom"
	"github.com/l1jgo/scenegraph/internal/scene"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

const harbour = `
name: harbour
graphs:
  - name: docks
    center: [0, 0, 0]
    half_extent: [100, 100, 100]
  - name: hold
    center: [0, 0, 0]
    half_extent: [50, 50, 50]
    origin: [0, -200, 0]
portals:
  - from: docks
    to: hold
    offset: [-40, 0, 0]
objects:
  - name: ship
    graph: docks
    position: [40, 0, 0]
    velocity: [1, 0, 0]
  - name: mast
    graph: docks
    position: [0, 10, 0]
    extent: [1, 10, 1]
    parent: ship
  - graph: hold
    position: [1, 1, 1]
camera:
  graph: docks
  center: [0, 0, 0]
  half: [60, 60, 60]
`

func TestLoadAndBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harbour.yaml")
	require.NoError(t, os.WriteFile(path, []byte(harbour), 0o644))

	f, err := LoadSceneFile(path)
	require.NoError(t, err)
	require.Equal(t, "harbour", f.Name)
	require.Len(t, f.Objects, 3)

	s := scene.NewScene(scene.Config{Threshold: 4}, geom.BoxFactory)
	require.NoError(t, Build(s, f))
	_, err = s.Flush()
	require.NoError(t, err)

	mast, ok := s.Lookup("mast")
	require.True(t, ok)
	require.Equal(t, r3.Vec{X: 40, Y: 10}, mast.Position())

	ship, _ := s.Lookup("ship")
	v, moving := s.Velocity(ship.EntityID())
	require.True(t, moving)
	require.Equal(t, r3.Vec{X: 1}, v)

	hold, _ := s.Graph("hold")
	require.Equal(t, geom.Translate(0, -200, 0), hold.Transform())

	region, err := CameraRegion(s.Factory(), *f.Camera)
	require.NoError(t, err)
	var found []string
	for o := range s.QueryLinked("docks", region, 1) {
		found = append(found, o.Graph()+"/"+o.Name())
	}
	slices.Sort(found)
	require.Equal(t, []string{"docks/mast", "docks/ship", "hold/"}, found)
}

func TestValidateRejectsBrokenReferences(t *testing.T) {
	for name, body := range map[string]string{
		"unknown graph":  "graphs: [{name: a, center: [0,0,0], half_extent: [1,1,1]}]\nobjects: [{graph: b, position: [0,0,0]}]\n",
		"unknown parent": "graphs: [{name: a, center: [0,0,0], half_extent: [1,1,1]}]\nobjects: [{name: x, graph: a, position: [0,0,0], parent: y}]\n",
		"duplicate":      "graphs: [{name: a, center: [0,0,0], half_extent: [1,1,1]}, {name: a, center: [0,0,0], half_extent: [1,1,1]}]\n",
		"portal":         "graphs: [{name: a, center: [0,0,0], half_extent: [1,1,1]}]\nportals: [{from: a, to: z}]\n",
		"unknown field":  "graphs: [{name: a, centre: [0,0,0], half_extent: [1,1,1]}]\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSceneFile([]byte(body))
			require.Error(t, err)
		})
	}
}

func TestBuildRejectsBadGeometry(t *testing.T) {
	f, err := ParseSceneFile([]byte("graphs: [{name: flat, center: [0,0,0], half_extent: [10,10,0]}]\n"))
	require.NoError(t, err)

	// fine for a planar scene, degenerate for a volumetric one
	require.NoError(t, Build(scene.NewScene(scene.Config{Threshold: 1}, geom.RectFactory), f))
	require.Error(t, Build(scene.NewScene(scene.Config{Threshold: 1}, geom.BoxFactory), f))
}

func TestDescribeRoundTrip(t *testing.T) {
	f, err := ParseSceneFile([]byte(harbour))
	require.NoError(t, err)
	s := scene.NewScene(scene.Config{Threshold: 4}, geom.BoxFactory)
	require.NoError(t, Build(s, f))
	_, err = s.Flush()
	require.NoError(t, err)

	out := Describe(s, "harbour", s.States())
	raw, err := out.Marshal()
	require.NoError(t, err)

	back, err := ParseSceneFile(raw)
	require.NoError(t, err)
	require.Equal(t, f.Graphs, back.Graphs)
	require.Equal(t, f.Portals, back.Portals)
	require.Len(t, back.Objects, 3)
	require.Equal(t, "ship", back.Objects[1].Parent)
	require.Equal(t, Vec3{0, 10, 0}, back.Objects[1].Position)
	require.Equal(t, Vec3{1, 10, 1}, back.Objects[1].Extent)
}

func TestObjectsFromStatesNamesAnonymousParents(t *testing.T) {
	parent := ecs.NewEntityID(7, 0)
	got := ObjectsFromStates([]scene.ObjectState{
		{ID: parent, Graph: "g", Local: geom.Translate(1, 2, 3)},
		{ID: ecs.NewEntityID(8, 0), Graph: "g", Parent: parent, Local: geom.Identity()},
		{ID: ecs.NewEntityID(9, 0), Graph: "g", Parent: ecs.NewEntityID(99, 0), Local: geom.Identity()},
	})
	require.Equal(t, "object-7", got[0].Name)
	require.Equal(t, Vec3{1, 2, 3}, got[0].Position)
	require.Equal(t, "object-7", got[1].Parent)
	require.Empty(t, got[2].Parent)
}
