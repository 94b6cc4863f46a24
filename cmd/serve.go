package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aditpras/campus-attendance/internal/attendance"
	"github.com/aditpras/campus-attendance/internal/config"
	"github.com/aditpras/campus-attendance/internal/database"
	"github.com/aditpras/campus-attendance/internal/database/mysql"
	"github.com/aditpras/campus-attendance/internal/database/postgres"
	"github.com/aditpras/campus-attendance/internal/face"
	"github.com/aditpras/campus-attendance/internal/vectorstore"
	"github.com/aditpras/campus-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance API server",
	Long: `Start the Campus Attendance API server.
The server exposes face enrollment, identification and verification
endpoints together with the attendance session engine used by the
lecturer dashboard and the student mobile app.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Bool("hnsw", false, "Wrap the file-backed gallery in an in-memory HNSW index")
}

// buildVectorStore picks the embedding gallery backend. The pgvector-backed
// repository does its own index-assisted search, so the HNSW wrap only
// applies to the file store.
func buildVectorStore(ctx context.Context, cfg *config.Config, pool *postgres.Pool, useHNSW bool) (vectorstore.Store, error) {
	if cfg.Embedding.Backend == "postgres" {
		fmt.Println("Embedding gallery: PostgreSQL (pgvector)")
		return postgres.NewEmbeddingRepository(pool), nil
	}

	fileStore, err := vectorstore.NewFileStore(cfg.Embedding.Dir)
	if err != nil {
		return nil, fmt.Errorf("open embedding directory %s: %w", cfg.Embedding.Dir, err)
	}
	if !useHNSW {
		fmt.Printf("Embedding gallery: files in %s\n", cfg.Embedding.Dir)
		return fileStore, nil
	}

	indexed, err := vectorstore.NewIndexed(ctx, fileStore)
	if err != nil {
		return nil, fmt.Errorf("build HNSW index: %w", err)
	}
	fmt.Printf("Embedding gallery: files in %s with HNSW index (%d vectors)\n", cfg.Embedding.Dir, indexed.Len())
	return indexed, nil
}

// buildDirectory wires the student/class/course directory. When a campus
// academic database DSN is configured the directory reads from it directly,
// otherwise the service's own PostgreSQL reference tables are used.
func buildDirectory(cfg *config.Config, pool *postgres.Pool) (database.ReferenceDirectory, func(), error) {
	if cfg.Campus.DSN == "" {
		fmt.Println("Reference directory: PostgreSQL reference tables")
		return postgres.NewReferenceRepository(pool), func() {}, nil
	}

	campusPool, err := mysql.NewPool(cfg.Campus.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect campus database: %w", err)
	}
	fmt.Println("Reference directory: campus academic database (MySQL)")
	return mysql.NewReferenceRepository(campusPool), func() { campusPool.Close() }, nil
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()

	vectors, err := buildVectorStore(ctx, cfg, pool, mustGetBool(cmd, "hnsw"))
	if err != nil {
		return err
	}

	directory, closeDirectory, err := buildDirectory(cfg, pool)
	if err != nil {
		return err
	}
	defer closeDirectory()

	enrollments := postgres.NewEnrollmentRepository(pool)
	events := postgres.NewEventRepository(pool)
	records := postgres.NewAttendanceRepository(pool)

	pipeline := face.NewPipelineClient(cfg.Pipeline.URL)

	deps := web.Deps{
		Enrollment:     face.NewEnrollmentService(enrollments, vectors, directory, pipeline, pipeline),
		Verification:   face.NewVerificationService(enrollments, events, cfg.Face.ConfidenceThreshold, cfg.Face.LockoutLimit),
		Matcher:        face.NewMatcher(vectors),
		Enrollments:    enrollments,
		Events:         events,
		Engine:         attendance.NewEngine(records, directory),
		MatchThreshold: cfg.Face.MatchThreshold,
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(host, port, deps)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Campus Attendance API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
