package model

import "time"

type Enrollment struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Program   string    `json:"program"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}
