package models

import "time"

// Student is an enrolled learner materialized from an admitted applicant.
type Student struct {
	ID            string     `db:"id" json:"id"`
	StudentNumber string     `db:"student_number" json:"student_number"`
	UserID        *string    `db:"user_id" json:"user_id,omitempty"`
	FullName      string     `db:"full_name" json:"full_name"`
	Email         string     `db:"email" json:"email"`
	Phone         string     `db:"phone" json:"phone"`
	BirthDate     *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Active        bool       `db:"active" json:"active"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
