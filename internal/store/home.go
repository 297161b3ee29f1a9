package store

import (
	"database/sql"
	"fmt"

	"github.com/ciipa/plataforma/internal/model"
)

type HomeStore struct {
	db *sql.DB
}

func NewHomeStore(db *sql.DB) *HomeStore {
	return &HomeStore{db: db}
}

// Get returns the banner content, or nil when none has been saved yet.
func (s *HomeStore) Get() (*model.HomeContent, error) {
	var hc model.HomeContent
	err := s.db.QueryRow(`SELECT id, title, subtitle, image FROM home_content LIMIT 1`).
		Scan(&hc.ID, &hc.Title, &hc.Subtitle, &hc.Image)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get home content: %w", err)
	}
	return &hc, nil
}

// Save upserts the singleton banner row. An empty image keeps the current one.
func (s *HomeStore) Save(title, subtitle, image string) (*model.HomeContent, error) {
	existing, err := s.Get()
	if err != nil {
		return nil, err
	}

	if existing == nil {
		_, err := s.db.Exec(
			`INSERT INTO home_content (title, subtitle, image) VALUES (?, ?, ?)`,
			title, subtitle, image,
		)
		if err != nil {
			return nil, fmt.Errorf("insert home content: %w", err)
		}
		return s.Get()
	}

	if image == "" {
		image = existing.Image
	}
	_, err = s.db.Exec(
		`UPDATE home_content SET title = ?, subtitle = ?, image = ? WHERE id = ?`,
		title, subtitle, image, existing.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update home content: %w", err)
	}
	return s.Get()
}
