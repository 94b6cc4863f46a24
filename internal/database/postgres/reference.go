package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aditpras/campus-attendance/internal/database"
)

// ReferenceRepository resolves students, classes and courses from local
// tables. Deployments that read the campus academic system directly use the
// mysql implementation instead.
type ReferenceRepository struct {
	pool *Pool
}

// NewReferenceRepository creates a new reference directory repository.
func NewReferenceRepository(pool *Pool) *ReferenceRepository {
	return &ReferenceRepository{pool: pool}
}

// StudentExists reports whether a NIM is known.
func (r *ReferenceRepository) StudentExists(ctx context.Context, nim string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM students WHERE nim = $1)", nim).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check student exists: %w", err)
	}
	return exists, nil
}

// Student returns the directory entry for a NIM.
func (r *ReferenceRepository) Student(ctx context.Context, nim string) (*database.StudentRef, error) {
	var student database.StudentRef
	err := r.pool.QueryRow(ctx,
		"SELECT id, nim, name, class_id FROM students WHERE nim = $1", nim).
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
	rows, err := r.pool.Query(ctx,
		"SELECT id, nim, name, class_id FROM students WHERE class_id = $1 ORDER BY nim", classID)
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
	err := r.pool.QueryRow(ctx, "SELECT id, name FROM classes WHERE id = $1", classID).
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
	err := r.pool.QueryRow(ctx, "SELECT code, name FROM courses WHERE code = $1", code).
		Scan(&course.Code, &course.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query course: %w", err)
	}
	return &course, nil
}
