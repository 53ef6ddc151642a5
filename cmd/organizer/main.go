package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/guorganizer/organizer/internal/httpapi"
	"github.com/guorganizer/organizer/internal/organizer"
)

func main() {
	addr := os.Getenv("ORGANIZER_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	syncKV, localKV, err := buildStoresFromEnv()
	if err != nil {
		log.Fatalf("failed to initialize store backends: %v", err)
	}
	store := organizer.NewStore(syncKV, localKV)
	defer store.Close()

	resolver := organizer.NewIdentityResolver(store.Local, buildProbeFromEnv())
	repo := organizer.NewRepository(store, resolver)

	ctx := context.Background()
	if err := repo.Migrate(ctx, func(collection string) {
		log.Printf("migrated legacy %s collection to namespaced key", collection)
	}); err != nil {
		log.Fatalf("legacy data migration failed: %v", err)
	}

	backups := organizer.NewBackupManager(organizer.BackupManagerOptions{Repository: repo})
	if err := backups.CreateBackup(ctx, organizer.BackupAuto); err != nil {
		log.Printf("startup auto backup skipped: %v", err)
	}

	writer := organizer.NewDebouncedWriter(organizer.DebouncedWriterOptions{
		Delay: durationEnv("ORGANIZER_DEBOUNCE_DELAY", 0),
		Save:  organizer.CollectionSaver(repo),
		OnError: func(kind organizer.CollectionKind, err error) {
			log.Printf("debounced %s write failed: %v", kind, err)
		},
	})

	server := httpapi.NewServerWithConfig(repo, backups, writer, httpapi.ServerConfig{
		MaxBodyBytes: int64Env("ORGANIZER_MAX_BODY_BYTES", 0),
	})
	crossTab := organizer.NewCrossTabSynchronizer(store, server.NotifyRefresh)

	httpServer := &http.Server{Addr: addr, Handler: server}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("organizer listening on %s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		log.Fatalf("server failed: %v", err)
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	crossTab.Close()
	server.Close()
	writer.Close()
	if err := store.Close(); err != nil {
		log.Printf("store close: %v", err)
	}
}

func int64Env(name string, fallback int64) int64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %d", name, raw, fallback)
		return fallback
	}
	return value
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %s", name, raw, fallback.String())
		return fallback
	}
	return value
}

func buildStoresFromEnv() (organizer.KV, organizer.KV, error) {
	profileSyncDSN, profileLocalDSN, err := storageProfileDefaultsFromEnv()
	if err != nil {
		return nil, nil, err
	}
	syncDSN := strings.TrimSpace(os.Getenv("ORGANIZER_SYNC_DSN"))
	if syncDSN == "" {
		syncDSN = profileSyncDSN
	}
	localDSN := strings.TrimSpace(os.Getenv("ORGANIZER_LOCAL_DSN"))
	if localDSN == "" {
		localDSN = profileLocalDSN
	}

	syncKV, err := organizer.BuildKVFromDSN(organizer.ScopeSync, syncDSN)
	if err != nil {
		return nil, nil, err
	}
	localKV, err := organizer.BuildKVFromDSN(organizer.ScopeLocal, localDSN)
	if err != nil {
		return nil, nil, err
	}
	return syncKV, localKV, nil
}

func storageProfileDefaultsFromEnv() (syncDSN, localDSN string, err error) {
	profile := strings.ToLower(strings.TrimSpace(os.Getenv("ORGANIZER_BACKEND_PROFILE")))
	dataDir := strings.TrimSpace(os.Getenv("ORGANIZER_DATA_DIR"))
	if dataDir == "" {
		dataDir = ".organizer"
	}
	switch profile {
	case "", "custom":
		return "", "", nil
	case "memory", "inmemory":
		return "memory://", "memory://", nil
	case "production", "prod":
		// Shared state rides Postgres so every browser session sees it; the
		// device-scoped cache stays on the local disk.
		postgresDSN := strings.TrimSpace(os.Getenv("ORGANIZER_POSTGRES_DSN"))
		if postgresDSN == "" {
			return "", "", fmt.Errorf("ORGANIZER_POSTGRES_DSN is required when ORGANIZER_BACKEND_PROFILE=%s", profile)
		}
		return postgresDSN, "file://" + filepath.Join(dataDir, "local.json"), nil
	case "durable-local", "local-durable":
		return "file://" + filepath.Join(dataDir, "sync.json"),
			"file://" + filepath.Join(dataDir, "local.json"),
			nil
	default:
		return "", "", fmt.Errorf("unsupported ORGANIZER_BACKEND_PROFILE: %s", profile)
	}
}

// buildProbeFromEnv stands in for the in-page account indicator scrape. A
// fixed label suits single-account deployments; a label file lets an external
// watcher update the account without restarting the process.
func buildProbeFromEnv() organizer.PageProbe {
	if label := strings.TrimSpace(os.Getenv("ORGANIZER_ACCOUNT_LABEL")); label != "" {
		return organizer.PageProbeFunc(func() string { return label })
	}
	if path := strings.TrimSpace(os.Getenv("ORGANIZER_ACCOUNT_LABEL_FILE")); path != "" {
		return organizer.PageProbeFunc(func() string {
			data, err := os.ReadFile(path)
			if err != nil {
				return ""
			}
			return strings.TrimSpace(string(data))
		})
	}
	return nil
}
