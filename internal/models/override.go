package models

import "time"

// Override is an append-only manual adjustment layered over the computed classification.
type Override struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Reason    string    `db:"reason" json:"reason"`
	Note      string    `db:"note" json:"note"`
	Award     *string   `db:"award" json:"award,omitempty"`
	FinalMark *int      `db:"final_mark" json:"final_mark,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
