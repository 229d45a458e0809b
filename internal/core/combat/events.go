package combat

import "github.com/zeusync/arena/internal/core/ecs"

const (
	EventDamageNumber = "combat.damage_number"
	EventDeath        = "combat.death"
)

// DamageNumber is what the render side displays: the amount actually taken
// off shield and health, never the raw request.
type DamageNumber struct {
	Attacker       ecs.EntityID
	Target         ecs.EntityID
	Amount         float64
	ShieldAbsorbed float64
	Critical       bool
	DamageType     string
	Predicted      bool
}

type Death struct {
	Entity ecs.EntityID
	Killer ecs.EntityID
}
