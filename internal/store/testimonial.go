package store

import (
	"database/sql"
	"fmt"

	"github.com/ciipa/plataforma/internal/model"
)

type TestimonialStore struct {
	db *sql.DB
}

func NewTestimonialStore(db *sql.DB) *TestimonialStore {
	return &TestimonialStore{db: db}
}

const testimonialCols = `id, phrase, name, year, visible`

func scanTestimonial(scanner interface{ Scan(...any) error }) (*model.Testimonial, error) {
	var t model.Testimonial
	err := scanner.Scan(&t.ID, &t.Phrase, &t.Name, &t.Year, &t.Visible)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TestimonialStore) Create(phrase, name string, year int) (*model.Testimonial, error) {
	result, err := s.db.Exec(
		`INSERT INTO testimonials (phrase, name, year) VALUES (?, ?, ?)`,
		phrase, name, year,
	)
	if err != nil {
		return nil, fmt.Errorf("insert testimonial: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TestimonialStore) GetByID(id int64) (*model.Testimonial, error) {
	row := s.db.QueryRow(`SELECT `+testimonialCols+` FROM testimonials WHERE id = ?`, id)
	t, err := scanTestimonial(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get testimonial: %w", err)
	}
	return t, nil
}

// List returns testimonials newest first, matching the public page order.
func (s *TestimonialStore) List(visibleOnly bool) ([]model.Testimonial, error) {
	query := `SELECT ` + testimonialCols + ` FROM testimonials ORDER BY id DESC`
	if visibleOnly {
		query = `SELECT ` + testimonialCols + ` FROM testimonials WHERE visible = 1 ORDER BY id DESC`
	}
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list testimonials: %w", err)
	}
	defer rows.Close()

	var testimonials []model.Testimonial
	for rows.Next() {
		t, err := scanTestimonial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan testimonial: %w", err)
		}
		testimonials = append(testimonials, *t)
	}
	return testimonials, rows.Err()
}

func (s *TestimonialStore) Update(t model.Testimonial) (*model.Testimonial, error) {
	_, err := s.db.Exec(
		`UPDATE testimonials SET phrase = ?, name = ?, year = ?, visible = ? WHERE id = ?`,
		t.Phrase, t.Name, t.Year, t.Visible, t.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update testimonial: %w", err)
	}
	return s.GetByID(t.ID)
}

func (s *TestimonialStore) SetVisible(id int64, visible bool) error {
	_, err := s.db.Exec(`UPDATE testimonials SET visible = ? WHERE id = ?`, visible, id)
	if err != nil {
		return fmt.Errorf("set testimonial visible: %w", err)
	}
	return nil
}

func (s *TestimonialStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM testimonials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete testimonial: %w", err)
	}
	return nil
}
