package spatial

import (
	"slices"
	"testing"

	"github.com/l1jgo/scenegraph/internal/core/ecs"
	"github.com/l1jgo/scenegraph/internal/geom"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestAbsoluteTransformComposesRootFirst(t *testing.T) {
	tr := newQuadtree(1)
	require.NoError(t, tr.Insert(pt(1, 1, 1, 0)))
	require.NoError(t, tr.Insert(pt(2, 2, 2, 0)))

	root := tr.Root()
	a := root.Children()[geom.NE]
	b := a.Children()[geom.SW]
	root.SetLocalTransform(geom.Translate(0, 1, 0))
	a.SetLocalTransform(geom.Translate(0, 2, 0))
	b.SetLocalTransform(geom.Translate(0, 3, 0))

	require.True(t, b.AbsoluteTransform().ApproxEqual(geom.Translate(0, 6, 0), 1e-12))
	require.Equal(t, geom.Translate(0, 1, 0), root.AbsoluteTransform())
	require.Same(t, root, b.Root())
}

func TestConnections(t *testing.T) {
	hall := newOctree(4)
	cellar := newOctree(4)
	attic := newOctree(4)

	hall.Root().ConnectTo(cellar.Root())
	hall.Root().ConnectTo(cellar.Root())
	hall.Root().ConnectTo(hall.Root())
	hall.Root().ConnectTo(attic.Root())
	require.Equal(t, []*Node[*point, geom.Box]{cellar.Root(), attic.Root()}, hall.Root().Connections())

	got := slices.Collect(hall.Connected(geom.NewCube(r3.Vec{}, 1)))
	require.Equal(t, []*Node[*point, geom.Box]{cellar.Root(), attic.Root()}, got)

	require.True(t, hall.Root().DisconnectFrom(attic.Root()))
	require.False(t, hall.Root().DisconnectFrom(attic.Root()))
	require.Len(t, hall.Root().Connections(), 1)
	require.False(t, attic.Root().Disposed(), "unlinking never destroys the target")
}

func TestMergeMovesConnectionsUpAndPrunesDisposedTargets(t *testing.T) {
	src := newQuadtree(1)
	dst := newQuadtree(1)
	require.NoError(t, src.Insert(pt(1, -5, -5, 0)))
	require.NoError(t, src.Insert(pt(2, 5, 5, 0)))
	require.NoError(t, dst.Insert(pt(3, -5, -5, 0)))
	require.NoError(t, dst.Insert(pt(4, 5, 5, 0)))

	srcNE := src.Root().Children()[geom.NE]
	dstSW := dst.Root().Children()[geom.SW]
	srcNE.ConnectTo(dstSW)
	srcNE.ConnectTo(dst.Root())

	// only the NE quadrant of src leads anywhere
	require.Empty(t, slices.Collect(src.Connected(geom.NewSquare(-5, -5, 1))))
	require.Len(t, slices.Collect(src.Connected(geom.NewSquare(5, 5, 1))), 2)

	// collapsing src hands NE's links to the root
	require.True(t, src.Remove(ecs.NewEntityID(2, 0)))
	require.True(t, srcNE.Disposed())
	require.Len(t, src.Root().Connections(), 2)

	// collapsing dst disposes the SW target, which then drops out
	require.True(t, dst.Remove(ecs.NewEntityID(4, 0)))
	require.True(t, dstSW.Disposed())
	require.Equal(t, []*Node[*point, geom.Rect]{dst.Root()}, src.Root().Connections())
}
