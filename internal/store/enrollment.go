package store

import (
	"database/sql"
	"fmt"

	"github.com/ciipa/plataforma/internal/model"
)

type EnrollmentStore struct {
	db *sql.DB
}

func NewEnrollmentStore(db *sql.DB) *EnrollmentStore {
	return &EnrollmentStore{db: db}
}

const enrollmentCols = `id, name, program, email, phone, created_at`

func scanEnrollment(scanner interface{ Scan(...any) error }) (*model.Enrollment, error) {
	var e model.Enrollment
	err := scanner.Scan(&e.ID, &e.Name, &e.Program, &e.Email, &e.Phone, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *EnrollmentStore) Create(name, program, email, phone string) (*model.Enrollment, error) {
	result, err := s.db.Exec(
		`INSERT INTO enrollments (name, program, email, phone) VALUES (?, ?, ?, ?)`,
		name, program, email, phone,
	)
	if err != nil {
		return nil, fmt.Errorf("insert enrollment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+enrollmentCols+` FROM enrollments WHERE id = ?`, id)
	return scanEnrollment(row)
}

func (s *EnrollmentStore) List() ([]model.Enrollment, error) {
	rows, err := s.db.Query(`SELECT ` + enrollmentCols + ` FROM enrollments ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		enrollments = append(enrollments, *e)
	}
	return enrollments, rows.Err()
}

func (s *EnrollmentStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM enrollments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return nil
}
