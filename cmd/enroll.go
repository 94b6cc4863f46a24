package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/aditpras/campus-attendance/internal/config"
	"github.com/aditpras/campus-attendance/internal/database/postgres"
	"github.com/aditpras/campus-attendance/internal/face"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Batch-enroll students from a directory of face photos",
	Long: `Batch-enroll students from a directory of face photos.
Each file must be named after the student's NIM (e.g. 2110001.jpg).
Photos are run through the face pipeline and the resulting embeddings
are written to the configured gallery backend.`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("dir", "", "Directory containing <nim>.jpg photos (required)")
	enrollCmd.MarkFlagRequired("dir")
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	dir := mustGetString(cmd, "dir")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read photo directory: %w", err)
	}

	var photos []string
	for _, e := range entries {
		if !e.IsDir() && isImageFile(e.Name()) {
			photos = append(photos, e.Name())
		}
	}
	if len(photos) == 0 {
		return fmt.Errorf("no photos found in %s", dir)
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()

	vectors, err := buildVectorStore(ctx, cfg, pool, false)
	if err != nil {
		return err
	}
	directory, closeDirectory, err := buildDirectory(cfg, pool)
	if err != nil {
		return err
	}
	defer closeDirectory()

	pipeline := face.NewPipelineClient(cfg.Pipeline.URL)
	enrollments := postgres.NewEnrollmentRepository(pool)
	service := face.NewEnrollmentService(enrollments, vectors, directory, pipeline, pipeline)

	bar := progressbar.NewOptions(len(photos),
		progressbar.OptionSetDescription("Enrolling students"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var enrolled, failed int
	var failures []string
	for _, name := range photos {
		nim := strings.TrimSuffix(name, filepath.Ext(name))

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			_, err = service.Enroll(ctx, nim, data)
		}
		if err != nil {
			failed++
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
		} else {
			enrolled++
		}
		bar.Add(1)
	}
	fmt.Println()

	fmt.Printf("Enrolled %d students, %d failed\n", enrolled, failed)
	for _, f := range failures {
		fmt.Printf("  %s\n", f)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d enrollments failed", failed, len(photos))
	}
	return nil
}
