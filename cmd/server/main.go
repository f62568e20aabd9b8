package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/vyshu-2006/Hack4Health/internal/chat"
	"github.com/vyshu-2006/Hack4Health/internal/clinician"
	"github.com/vyshu-2006/Hack4Health/internal/config"
	"github.com/vyshu-2006/Hack4Health/internal/metrics"
	"github.com/vyshu-2006/Hack4Health/internal/middleware"
	"github.com/vyshu-2006/Hack4Health/internal/platform/telegram"
	"github.com/vyshu-2006/Hack4Health/internal/report"
	"github.com/vyshu-2006/Hack4Health/internal/triage"
)

func main() {
	cfg := config.Load()

	// 1. Session store
	var db *sql.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sql.Open("postgres", cfg.Database.DSN())
		if err == nil {
			err = db.Ping()
		}
		if err == nil {
			break
		}
		log.Printf("Waiting for DB... (%d/10)", i+1)
		time.Sleep(2 * time.Second)
	}

	var repo chat.Repository
	if err != nil {
		log.Printf("Could not connect to DB: %v. Falling back to in-memory session store (sessions are lost on restart).", err)
		repo = chat.NewMemoryRepository()
	} else {
		log.Println("Connected to Database.")
		m, err := migrate.New("file://migrations", cfg.Database.DSN())
		if err != nil {
			log.Printf("Migration init failed: %v", err)
		} else if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Printf("Migration up failed: %v", err)
		} else {
			log.Println("Migrations applied successfully!")
		}
		repo = chat.NewRepository(db)
	}

	// 2. Triage engine. An invalid rule table is a startup failure, never a
	// classification-time one.
	table, err := triage.NewRuleTable(triage.DefaultRules())
	if err != nil {
		log.Fatalf("Invalid trigger rule table: %v", err)
	}
	engine := triage.NewEngine(table)

	// 3. Emergency escalation channel
	tgClient := telegram.NewClient(cfg.Telegram.Token)
	reportSvc := report.NewService(tgClient, cfg.Telegram.ClinicianChatID)

	var alerter chat.Alerter
	if cfg.Telegram.Token != "" && cfg.Telegram.ClinicianChatID != 0 {
		alerter = reportSvc
	} else {
		log.Println("Warning: TELEGRAM_BOT_TOKEN or CLINICIAN_CHAT_ID is not set. Emergency escalation alerts are disabled.")
	}

	// 4. Services
	chatSvc := chat.NewService(repo, engine, alerter, cfg.Triage.CountryCode, chat.BusyPolicy(cfg.Triage.BusyPolicy))
	chatHandler := chat.NewHandler(chatSvc)

	clinicianSvc := clinician.NewService(repo, reportSvc)
	clinicianHandler := clinician.NewHandler(clinicianSvc)

	// 5. Router
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.SecurityHeaders)

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	r.Use(limiter.Middleware)

	// CORS for frontend
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
			if r.Method == "OPTIONS" {
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api", func(r chi.Router) {
		chat.RegisterRoutes(r, chatHandler)
		clinician.RegisterRoutes(r, clinicianHandler)
	})

	r.Handle("/metrics", metrics.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	fmt.Printf("Server starting on port %d...\n", cfg.Server.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port), r); err != nil {
		log.Fatal(err)
	}
}
