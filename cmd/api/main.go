package main

import (
	"context"
	"log"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/mdiaze-dotcom/made-drcm/config"
	"github.com/mdiaze-dotcom/made-drcm/expediente"
	"github.com/mdiaze-dotcom/made-drcm/httpapi"
	"github.com/mdiaze-dotcom/made-drcm/sheetstore"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("bootstrap config: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	store, err := sheetstore.New(ctx, cfg.SheetID, cfg.Worksheet, cfg.CredentialsFile)
	if err != nil {
		logger.Fatalf("bootstrap sheet store: %v", err)
	}

	svc := expediente.NewService(store, logger, cfg.SnapshotTTL)
	handler := httpapi.NewRouter(svc, logger)

	logger.WithField("addr", cfg.ListenAddr).Info("expediente api listening")
	if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		logger.Fatalf("serve: %v", err)
	}
}
