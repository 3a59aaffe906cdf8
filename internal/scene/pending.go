package scene

import (
	"slices"

	"github.com/l1jgo/scenegraph/internal/core/ecs"
)

// Pending defers structural changes until the next flush so that nothing
// mutates a tree while a frame is traversing it.
type Pending struct {
	adds    []*Object
	removes []ecs.EntityID
}

// Add queues o for insertion.
func (p *Pending) Add(o *Object) {
	p.adds = append(p.adds, o)
}

// Remove queues id for removal. If id is still waiting to be added the
// addition is cancelled instead and Remove reports true.
func (p *Pending) Remove(id ecs.EntityID) (cancelled bool) {
	if i := slices.IndexFunc(p.adds, func(o *Object) bool { return o.id == id }); i >= 0 {
		p.adds = slices.Delete(p.adds, i, i+1)
		return true
	}
	if !slices.Contains(p.removes, id) {
		p.removes = append(p.removes, id)
	}
	return false
}

// Adding reports whether id is queued for insertion.
func (p *Pending) Adding(id ecs.EntityID) bool {
	return slices.ContainsFunc(p.adds, func(o *Object) bool { return o.id == id })
}

func (p *Pending) Len() int { return len(p.adds) + len(p.removes) }

// take hands over both queues in request order and leaves p empty.
func (p *Pending) take() (removes []ecs.EntityID, adds []*Object) {
	removes, adds = p.removes, p.adds
	p.removes, p.adds = nil, nil
	return removes, adds
}
