package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"clipper/internal/domain"
	"clipper/internal/infra"
	"clipper/internal/store"
)

func main() {
	var (
		keyFlag     string
		serviceFlag string
		emailFlag   string
	)
	flag.StringVar(&keyFlag, "key", "", "API key to store (falls back to environment)")
	flag.StringVar(&serviceFlag, "service", domain.ServiceTranscript, "Service the key belongs to (transcript_api or analysis_api)")
	flag.StringVar(&emailFlag, "email", "", "Account email the key was issued to (optional)")
	flag.Parse()

	service := strings.TrimSpace(strings.ToLower(serviceFlag))
	switch service {
	case domain.ServiceTranscript, domain.ServiceAnalysis:
	case "":
		service = domain.ServiceTranscript
	default:
		fmt.Fprintf(os.Stderr, "unsupported service %q\n", serviceFlag)
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		switch service {
		case domain.ServiceAnalysis:
			key = strings.TrimSpace(os.Getenv("ANALYSIS_API_KEY"))
		default:
			key = strings.TrimSpace(os.Getenv("TRANSCRIPT_API_KEY"))
		}
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "API key is required via -key or environment")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "transcriptkey").Str("service", service).Logger()
	credentials := store.NewCredentialStore(infra.NewSQLRunner(pool, logger))

	ctxExec, cancelExec := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelExec()
	cred, err := credentials.Insert(ctxExec, domain.Credential{
		Service: service,
		Secret:  key,
		Email:   strings.TrimSpace(emailFlag),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to store %s key: %v\n", service, err)
		os.Exit(1)
	}

	fmt.Printf("credential %d stored for %s\n", cred.ID, service)
}
