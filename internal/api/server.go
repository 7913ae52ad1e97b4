package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"corpempire/internal/bank"
	"corpempire/internal/economy"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Cycles is the scheduler surface exposed to operators.
type Cycles interface {
	TriggerNow(ctx context.Context) (economy.CycleSummary, error)
	Status() economy.Status
}

type Ledger interface {
	CentralBankLedger(ctx context.Context, period economy.Period) (economy.LedgerEntry, error)
}

type Loans interface {
	Quote(ctx context.Context, req bank.Request) (bank.Quote, error)
	Originate(ctx context.Context, req bank.Request) (economy.Loan, error)
}

type Server struct {
	token  string
	log    *slog.Logger
	cycles Cycles
	ledger Ledger
	loans  Loans
	mux    *chi.Mux

	mu         sync.Mutex
	originated map[string]economy.Loan
}

func New(logger *slog.Logger, adminToken string, cycles Cycles, ledger Ledger, loans Loans) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		token:      adminToken,
		log:        logger,
		cycles:     cycles,
		ledger:     ledger,
		loans:      loans,
		mux:        chi.NewRouter(),
		originated: map[string]economy.Loan{},
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/cycle/run", s.handleRunCycle)
		r.Get("/cycle/status", s.handleCycleStatus)
		r.Get("/ledger/{period}", s.handleLedger)
		r.Post("/loans/quote", s.handleLoanQuote)
		r.Post("/loans", s.handleOriginateLoan)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if s.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	// A cycle outlives a dropped client connection.
	summary, err := s.cycles.TriggerNow(context.WithoutCancel(r.Context()))
	if err != nil {
		if errors.Is(err, economy.ErrAlreadyRunning) || errors.Is(err, economy.ErrAlreadyCompleted) {
			writeDomainError(w, err)
			return
		}
		s.log.Error("manual cycle failed", "request_id", middleware.GetReqID(r.Context()), "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "summary": summary})
		return
	}
	s.log.Info("manual cycle completed", "request_id", middleware.GetReqID(r.Context()), "run_id", summary.RunID, "period", summary.Period)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCycleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cycles.Status())
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	period, err := economy.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := s.ledger.CentralBankLedger(r.Context(), period)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleLoanQuote(w http.ResponseWriter, r *http.Request) {
	var in bank.Request
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := s.loans.Quote(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// handleOriginateLoan replays the stored loan when an Idempotency-Key repeats.
func (s *Server) handleOriginateLoan(w http.ResponseWriter, r *http.Request) {
	var in bank.Request
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key := idempotencyKey(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	if loan, ok := s.originated[key]; ok {
		writeJSON(w, http.StatusOK, loan)
		return
	}
	loan, err := s.loans.Originate(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.originated[key] = loan
	w.Header().Set("Idempotency-Key", key)
	writeJSON(w, http.StatusCreated, loan)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, economy.ErrAlreadyRunning), errors.Is(err, economy.ErrAlreadyCompleted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, economy.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, bank.ErrTooManyLoans), errors.Is(err, bank.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
