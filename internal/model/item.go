package model

import "time"

type Item struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	RoomID    string    `json:"room_id"`
}

// ItemPatch is a partial update; nil fields are left untouched.
type ItemPatch struct {
	Name      *string `json:"name"`
	Completed *bool   `json:"completed"`
}

func (p ItemPatch) Empty() bool {
	return p.Name == nil && p.Completed == nil
}
