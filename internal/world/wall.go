package world

import (
	"arena-server/internal/ident"
	"arena-server/internal/physics"
	"arena-server/internal/schema"
)

// Wall is a static box. Walls are created with the world and never removed.
type Wall struct {
	id   ident.ID
	rect Rect
	body *physics.Body
}

func (w *Wall) ID() ident.ID { return w.id }
func (w *Wall) Rect() Rect   { return w.rect }

func (w *Wall) State() schema.Wall {
	return schema.Wall{
		ID:     w.id,
		X:      schema.Coord(w.rect.X),
		Y:      schema.Coord(w.rect.Y),
		Width:  schema.Coord(w.rect.Width),
		Height: schema.Coord(w.rect.Height),
	}
}
