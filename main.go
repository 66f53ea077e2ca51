package main

import (
	"time"

	"github.com/vletron/inkblog/config"
	"github.com/vletron/inkblog/models"
	"github.com/vletron/inkblog/routes"
	"github.com/vletron/inkblog/storage"
	"github.com/vletron/inkblog/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.Blog{}, &models.Comment{}, &models.Attachment{})

	store, err := storage.New(cfg.StorageDir, cfg.PublicBaseURL, cfg.JWTSecret, time.Duration(cfg.SignedURLTTLSecs)*time.Second)
	if err != nil {
		utils.Sugar.Fatalf("object store init failed: %v", err)
	}

	r := routes.SetupRouter(db, store)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
