package store

import (
	"database/sql"
	"fmt"

	"github.com/ciipa/plataforma/internal/model"
)

type GalleryStore struct {
	db *sql.DB
}

func NewGalleryStore(db *sql.DB) *GalleryStore {
	return &GalleryStore{db: db}
}

const galleryCols = `id, filename, visible, created_at`

func scanGalleryImage(scanner interface{ Scan(...any) error }) (*model.GalleryImage, error) {
	var g model.GalleryImage
	err := scanner.Scan(&g.ID, &g.Filename, &g.Visible, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *GalleryStore) Create(filename string, visible bool) (*model.GalleryImage, error) {
	result, err := s.db.Exec(
		`INSERT INTO gallery_images (filename, visible) VALUES (?, ?)`,
		filename, visible,
	)
	if err != nil {
		return nil, fmt.Errorf("insert gallery image: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *GalleryStore) GetByID(id int64) (*model.GalleryImage, error) {
	row := s.db.QueryRow(`SELECT `+galleryCols+` FROM gallery_images WHERE id = ?`, id)
	g, err := scanGalleryImage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get gallery image: %w", err)
	}
	return g, nil
}

func (s *GalleryStore) List(visibleOnly bool) ([]model.GalleryImage, error) {
	query := `SELECT ` + galleryCols + ` FROM gallery_images ORDER BY created_at DESC`
	if visibleOnly {
		query = `SELECT ` + galleryCols + ` FROM gallery_images WHERE visible = 1 ORDER BY created_at DESC`
	}
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list gallery images: %w", err)
	}
	defer rows.Close()

	var images []model.GalleryImage
	for rows.Next() {
		g, err := scanGalleryImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gallery image: %w", err)
		}
		images = append(images, *g)
	}
	return images, rows.Err()
}

func (s *GalleryStore) SetVisible(id int64, visible bool) error {
	_, err := s.db.Exec(`UPDATE gallery_images SET visible = ? WHERE id = ?`, visible, id)
	if err != nil {
		return fmt.Errorf("set gallery image visible: %w", err)
	}
	return nil
}

func (s *GalleryStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM gallery_images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete gallery image: %w", err)
	}
	return nil
}
