package store

import (
	"database/sql"
	"fmt"

	"github.com/ciipa/plataforma/internal/model"
)

type ProgramStore struct {
	db *sql.DB
}

func NewProgramStore(db *sql.DB) *ProgramStore {
	return &ProgramStore{db: db}
}

const programCols = `id, name, kind, duration, price, image, visible`

func scanProgram(scanner interface{ Scan(...any) error }) (*model.Program, error) {
	var p model.Program
	err := scanner.Scan(&p.ID, &p.Name, &p.Kind, &p.Duration, &p.Price, &p.Image, &p.Visible)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProgramStore) Create(p model.Program) (*model.Program, error) {
	result, err := s.db.Exec(
		`INSERT INTO programs (name, kind, duration, price, image, visible) VALUES (?, ?, ?, ?, ?, ?)`,
		p.Name, p.Kind, p.Duration, p.Price, p.Image, p.Visible,
	)
	if err != nil {
		return nil, fmt.Errorf("insert program: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProgramStore) GetByID(id int64) (*model.Program, error) {
	row := s.db.QueryRow(`SELECT `+programCols+` FROM programs WHERE id = ?`, id)
	p, err := scanProgram(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get program: %w", err)
	}
	return p, nil
}

// List returns all programs; when visibleOnly is set, hidden ones are skipped.
func (s *ProgramStore) List(visibleOnly bool) ([]model.Program, error) {
	query := `SELECT ` + programCols + ` FROM programs ORDER BY name`
	if visibleOnly {
		query = `SELECT ` + programCols + ` FROM programs WHERE visible = 1 ORDER BY name`
	}
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer rows.Close()

	var programs []model.Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		programs = append(programs, *p)
	}
	return programs, rows.Err()
}

// Update writes all mutable fields. An empty image keeps the stored one.
func (s *ProgramStore) Update(p model.Program) (*model.Program, error) {
	existing, err := s.GetByID(p.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	if p.Image == "" {
		p.Image = existing.Image
	}
	_, err = s.db.Exec(
		`UPDATE programs SET name = ?, kind = ?, duration = ?, price = ?, image = ?, visible = ? WHERE id = ?`,
		p.Name, p.Kind, p.Duration, p.Price, p.Image, p.Visible, p.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update program: %w", err)
	}
	return s.GetByID(p.ID)
}

func (s *ProgramStore) SetVisible(id int64, visible bool) error {
	_, err := s.db.Exec(`UPDATE programs SET visible = ? WHERE id = ?`, visible, id)
	if err != nil {
		return fmt.Errorf("set program visible: %w", err)
	}
	return nil
}

func (s *ProgramStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM programs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete program: %w", err)
	}
	return nil
}
