// Command create-admin bootstraps an account directly against the database.
// It is the only way to create the first SUPERADMIN.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/repository"
	"github.com/noah-isme/attendance-api/internal/service"
	"github.com/noah-isme/attendance-api/pkg/config"
	"github.com/noah-isme/attendance-api/pkg/database"
	"github.com/noah-isme/attendance-api/pkg/logger"
)

func main() {
	email := flag.String("email", "", "account email")
	name := flag.String("name", "Administrator", "full name")
	role := flag.String("role", string(models.RoleSuperAdmin), "SUPERADMIN, ADMIN or GUEST")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "initial password (defaults to $ADMIN_PASSWORD)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if err := database.Migrate(ctx, db, logr); err != nil {
		logr.Fatal("failed to migrate database", zap.Error(err))
	}

	admins := service.NewAdminService(repository.NewAdminRepository(db), validator.New(), logr)
	admin, err := admins.Create(ctx, service.CreateAdminRequest{
		Email:    *email,
		FullName: *name,
		Role:     models.AdminRole(strings.ToUpper(*role)),
		Password: *password,
	}, "", models.LoginRequest{UserAgent: "create-admin"})
	if err != nil {
		logr.Fatal("failed to create admin", zap.Error(err))
	}
	logr.Info("admin created", zap.String("id", admin.ID), zap.String("email", admin.Email), zap.String("role", string(admin.Role)))
}
