package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "campus-attendance",
	Short: "Face-verified attendance service for campus courses",
	Long: `Campus Attendance is the backend for face-verified course attendance.
It stores face enrollments and embeddings, verifies check-in confidence
scores from the face pipeline, and manages per-meeting attendance sessions
with automatic expiry of unmarked records.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
