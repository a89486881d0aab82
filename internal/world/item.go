package world

import (
	"arena-server/internal/ident"
	"arena-server/internal/physics"
	"arena-server/internal/schema"

	"github.com/jakecoffman/cp"
)

// ItemRadius is the pickup radius of an item.
const ItemRadius = 8

// Item grants a weapon variant and ammo to the first person touching it.
type Item struct {
	id      ident.ID
	variant Variant
	ammo    int
	pos     cp.Vector
	body    *physics.Body
}

func (i *Item) ID() ident.ID        { return i.id }
func (i *Item) Variant() Variant    { return i.variant }
func (i *Item) Ammo() int           { return i.ammo }
func (i *Item) Position() cp.Vector { return i.pos }

func (i *Item) State() schema.Item {
	return schema.Item{
		ID:      i.id,
		X:       schema.Coord(i.pos.X),
		Y:       schema.Coord(i.pos.Y),
		Variant: uint8(i.variant),
	}
}

// pickupAmmo is the reserve an item of each variant grants.
var pickupAmmo = [variantCount]int{
	Pistol:     15,
	Shotgun:    5,
	Machinegun: 10,
}
