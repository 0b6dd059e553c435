package service

import (
	"fmt"

	"labelscan/internal/platform/store"
	"labelscan/internal/services/shellcache/domain"
)

var phaseTable = map[domain.Phase][]domain.Phase{
	domain.PhasePending:    {domain.PhaseInstalling},
	domain.PhaseInstalling: {domain.PhaseInstalled, domain.PhaseRedundant},
	domain.PhaseInstalled:  {domain.PhaseActivating, domain.PhaseRedundant},
	domain.PhaseActivating: {domain.PhaseActive},
	domain.PhaseActive:     {domain.PhaseRedundant},
}

// CanMove reports whether a generation may go from one phase to another
func CanMove(from, to domain.Phase) bool {
	for _, p := range phaseTable[from] {
		if p == to {
			return true
		}
	}
	return false
}

// generation is the controller's view of one cache namespace
type generation struct {
	name  string
	phase domain.Phase
	store store.Generation
}

func (g *generation) move(to domain.Phase) {
	if !CanMove(g.phase, to) {
		panic(fmt.Sprintf("shellcache: generation %s cannot move %s -> %s", g.name, g.phase, to))
	}
	g.phase = to
}
