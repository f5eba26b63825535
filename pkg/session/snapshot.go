package session

import (
	"github.com/chazu/lagoon/pkg/kernel"
	"github.com/chazu/lagoon/pkg/polygon"
	"github.com/chazu/lagoon/pkg/pool"
	"github.com/chazu/lagoon/pkg/tessellate"
	"github.com/google/uuid"
)

// Snapshot is the built pool as it stood at one generation, with every
// surface baked into world space. It shares no buffers with the session's
// assembly and stays valid after later rebuilds dispose that assembly.
type Snapshot struct {
	ID         uuid.UUID
	Shape      pool.Shape
	Generation uint64
	Params     pool.Params
	Report     polygon.ShapeReport
	Meshes     []*kernel.Mesh
}

// Snapshot copies the current pool. When roles is non-empty only surfaces
// with those roles are baked. ok is false before the first build.
func (s *Session) Snapshot(roles ...kernel.Role) (snap Snapshot, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.asm == nil {
		return Snapshot{}, false
	}
	return s.snapshotLocked(roles...), true
}

func (s *Session) snapshotLocked(roles ...kernel.Role) Snapshot {
	return Snapshot{
		ID:         s.asm.ID,
		Shape:      s.asm.Shape,
		Generation: s.gen,
		Params:     s.asm.LastParams,
		Report:     s.asm.Report,
		Meshes:     tessellate.Tessellate(s.asm, roles...),
	}
}
