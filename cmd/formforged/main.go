// Command formforged is the formforge server: it wires the configured
// database, file store, and mailer together and serves the HTTP API.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/formforge/formforge/internal/config"
	"github.com/formforge/formforge/internal/entries"
	"github.com/formforge/formforge/internal/filestore"
	"github.com/formforge/formforge/internal/filestore/local"
	"github.com/formforge/formforge/internal/filestore/minio"
	"github.com/formforge/formforge/internal/httpapi"
	"github.com/formforge/formforge/internal/logger"
	"github.com/formforge/formforge/internal/mailer"
	"github.com/formforge/formforge/internal/schema"
	"github.com/formforge/formforge/internal/store/postgres"
	"github.com/formforge/formforge/internal/store/sqlstore"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	lg := logger.New(&logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
	})
	ctx := context.Background()

	schemas, store, cleanup, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer cleanup()

	blobs, err := openFilestore(ctx, cfg)
	if err != nil {
		log.Fatalf("open filestore: %v", err)
	}
	defer blobs.Close()

	var sender mailer.Sender = &mailer.LogSender{Log: lg}
	if cfg.Email.SMTPAddr != "" {
		sender = &mailer.SMTPSender{Addr: cfg.Email.SMTPAddr}
	}
	mail := mailer.New(sender, mailer.Config{
		From:         cfg.Email.From,
		FailSilently: cfg.Email.FailSilently,
	}, lg)

	srv := httpapi.NewServer(httpapi.Config{
		Schemas:      schemas,
		Entries:      store,
		Blobs:        blobs,
		Bucket:       cfg.Filestore.Bucket,
		Mailer:       mail,
		CSVDelimiter: rune(cfg.Export.CSVDelimiter[0]),
		Log:          lg,
	})

	lg.With().Str("addr", cfg.HTTP.Listen).Logger().Info("formforged listening")
	if err := http.ListenAndServe(cfg.HTTP.Listen, srv.Router()); err != nil {
		log.Fatal(err)
	}
}

// openStores returns the configured backend behind both store ports.
func openStores(ctx context.Context, cfg *config.Config) (schema.Store, entries.Store, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		s, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.Database.DSN,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, nil, nil, err
		}
		return s, s, s.Close, nil
	default: // sqlite, mysql
		s, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, nil, nil, err
		}
		return s, s, func() { s.Close() }, nil
	}
}

func openFilestore(ctx context.Context, cfg *config.Config) (filestore.Store, error) {
	if cfg.Filestore.Provider == "minio" {
		return minio.New(ctx, &filestore.Config{
			Provider:  filestore.ProviderMinIO,
			Endpoint:  cfg.Filestore.Endpoint,
			AccessKey: cfg.Filestore.AccessKey,
			SecretKey: cfg.Filestore.SecretKey,
			UseSSL:    cfg.Filestore.UseSSL,
			Region:    cfg.Filestore.Region,
			Bucket:    cfg.Filestore.Bucket,
		})
	}
	return local.New(cfg.Filestore.Root)
}
