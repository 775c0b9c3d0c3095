// Command grade-report prints the weighted results of one semester as a
// console table.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/fyp-grading-api/internal/grading"
	"github.com/noah-isme/fyp-grading-api/internal/repository"
	"github.com/noah-isme/fyp-grading-api/internal/service"
	"github.com/noah-isme/fyp-grading-api/pkg/config"
	"github.com/noah-isme/fyp-grading-api/pkg/database"
	"github.com/noah-isme/fyp-grading-api/pkg/logger"
)

func main() {
	semesterID := flag.String("semester", "", "semester ID to report on")
	withComponents := flag.Bool("components", false, "add per-component rows with discrepancy")
	timeout := flag.Duration("timeout", time.Minute, "overall timeout")
	flag.Parse()

	if *semesterID == "" {
		fmt.Fprintln(os.Stderr, "usage: grade-report -semester <id> [-components]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := database.Open(ctx, cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	weightage := service.NewRoleWeightageService(repository.NewRoleWeightageRepository(db), nil, nil, nil, logr, service.RoleWeightageServiceConfig{
		Default: grading.RoleWeightage{
			Supervisor: cfg.Grading.DefaultSupervisorWeight,
			Moderator:  cfg.Grading.DefaultModeratorWeight,
		},
	})
	assignments := repository.NewProjectAssignmentRepository(db)
	results := service.NewResultService(service.ResultServiceParams{
		Weightage:  weightage,
		Semesters:  repository.NewSemesterRepository(db),
		Components: repository.NewAssessmentComponentRepository(db),
		Students:   assignments,
		Grades:     repository.NewRawGradeRepository(db),
		Logger:     logr,
		Config: service.ResultServiceConfig{
			PassThreshold:  cfg.Grading.PassThreshold,
			Workers:        cfg.Grading.ResultWorkers,
			ComputeTimeout: *timeout,
		},
	})

	data, _, err := results.SemesterResults(ctx, *semesterID)
	if err != nil {
		logr.Fatal("failed to compute results", zap.String("semester_id", *semesterID), zap.Error(err))
	}
	if err := render(os.Stdout, data, *withComponents); err != nil {
		logr.Fatal("failed to render table", zap.Error(err))
	}
}
