package entity

import "time"

// Note is a row in the `notes` table. Title and Content are stored as sent;
// clients may encrypt them before upload.
type Note struct {
	ID        int64     `db:"id"`
	Title     string    `db:"title"`
	Content   string    `db:"content"`
	OwnerID   int64     `db:"owner_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type View struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (n *Note) View() View {
	return View{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		OwnerID:   n.OwnerID,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

// Views serializes a slice, never returning nil so the JSON is `[]`.
func Views(notes []Note) []View {
	out := make([]View, 0, len(notes))
	for i := range notes {
		out = append(out, notes[i].View())
	}
	return out
}
