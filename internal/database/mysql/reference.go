package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aditpras/campus-attendance/internal/database"
)

// ReferenceRepository is the database.ReferenceDirectory backed by the
// campus academic schema (mahasiswa, kelas, mata_kuliah).
type ReferenceRepository struct {
	pool *Pool
}

// NewReferenceRepository creates a new campus directory repository.
func NewReferenceRepository(pool *Pool) *ReferenceRepository {
	return &ReferenceRepository{pool: pool}
}

// StudentExists reports whether a NIM is known to the academic system.
func (r *ReferenceRepository) StudentExists(ctx context.Context, nim string) (bool, error) {
	var exists bool
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM mahasiswa WHERE nim = ?)", nim).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check student exists: %w", err)
	}
	return exists, nil
}

// Student returns the directory entry for a NIM.
func (r *ReferenceRepository) Student(ctx context.Context, nim string) (*database.StudentRef, error) {
	var student database.StudentRef
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT id, nim, nama, kelas_id FROM mahasiswa WHERE nim = ?", nim).
		Scan(&student.ID, &student.NIM, &student.Name, &student.ClassID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query student: %w", err)
	}
	return &student, nil
}

// ClassStudents returns all students of a class ordered by NIM.
func (r *ReferenceRepository) ClassStudents(ctx context.Context, classID int64) ([]database.StudentRef, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT id, nim, nama, kelas_id FROM mahasiswa WHERE kelas_id = ? ORDER BY nim", classID)
	if err != nil {
		return nil, fmt.Errorf("query class students: %w", err)
	}
	defer rows.Close()

	var students []database.StudentRef
	for rows.Next() {
		var s database.StudentRef
		if err := rows.Scan(&s.ID, &s.NIM, &s.Name, &s.ClassID); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

// Class returns the class entry.
func (r *ReferenceRepository) Class(ctx context.Context, classID int64) (*database.ClassRef, error) {
	var class database.ClassRef
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT id, nama_kelas FROM kelas WHERE id = ?", classID).
		Scan(&class.ID, &class.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query class: %w", err)
	}
	return &class, nil
}

// Course returns the course entry.
func (r *ReferenceRepository) Course(ctx context.Context, code string) (*database.CourseRef, error) {
	var course database.CourseRef
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT kode_mk, nama_mk FROM mata_kuliah WHERE kode_mk = ?", code).
		Scan(&course.Code, &course.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query course: %w", err)
	}
	return &course, nil
}
