// Package httpapi implements the ledger HTTP boundary from spec.md §6:
// POST /clientes/:id/transacoes and GET /clientes/:id/extrato, over the
// standard library net/http server — the teacher's own cmd/server/main.go
// never reaches for a router framework either, and none of the rest of
// the retrieved pack ships one this repository's domain would plausibly
// use. Every request is tagged with a google/uuid request id and logged
// via log.Printf, the way the teacher logs gRPC/HTTP lifecycle events.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/esporadb/espora/internal/pager"
	"github.com/esporadb/espora/ledger"
)

// Service wires the HTTP boundary to a fixed table of accounts, each
// keyed by the path id used in requests (spec.md's deployment has ids
// "1".."5", each with a fixed limit known at startup).
type Service struct {
	accounts map[string]*ledger.Account
	logger   *log.Logger
}

// NewService constructs a Service over an already-open account table.
func NewService(accounts map[string]*ledger.Account, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{accounts: accounts, logger: logger}
}

// Routes registers the service's handlers on mux.
func (s *Service) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /clientes/{id}/transacoes", s.withRequestID(s.handleTransacao))
	mux.HandleFunc("GET /clientes/{id}/extrato", s.withRequestID(s.handleExtrato))
}

// withRequestID tags every request with a generated id, logged at entry
// and exit, mirroring the teacher's log.Printf-around-every-RPC style.
func (s *Service) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.New().String()
		start := time.Now()
		s.logger.Printf("request %s start %s %s", reqID, r.Method, r.URL.Path)
		next(w, r)
		s.logger.Printf("request %s done in %s", reqID, time.Since(start))
	}
}

type transacaoRequest struct {
	Valor     int64  `json:"valor"`
	Tipo      string `json:"tipo"`
	Descricao string `json:"descricao"`
}

type transacaoResponse struct {
	Limite int64 `json:"limite"`
	Saldo  int64 `json:"saldo"`
}

func (s *Service) handleTransacao(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	account, ok := s.accounts[id]
	if !ok {
		http.Error(w, "unknown account", http.StatusNotFound)
		return
	}

	var req transacaoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	kind, err := ledger.ParseTransactionType(req.Tipo)
	if err != nil {
		http.Error(w, "invalid tipo", http.StatusUnprocessableEntity)
		return
	}
	description, err := ledger.NewDescription(req.Descricao)
	if err != nil {
		http.Error(w, "invalid descricao", http.StatusUnprocessableEntity)
		return
	}
	if req.Valor <= 0 {
		http.Error(w, "invalid valor", http.StatusUnprocessableEntity)
		return
	}

	tx := ledger.NewTransaction(req.Valor, kind, description, time.Time{})
	balance, err := account.Transact(tx)
	if err != nil {
		writeTransactError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transacaoResponse{
		Limite: account.Limit(),
		Saldo:  balance,
	})
}

func writeTransactError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientLimit),
		errors.Is(err, ledger.ErrInvalidDescription),
		errors.Is(err, ledger.ErrSerialization),
		errors.Is(err, ledger.ErrDeserialization),
		errors.Is(err, ledger.ErrArithmeticOverflow),
		errors.Is(err, pager.ErrIO),
		errors.Is(err, pager.ErrRowTooLarge),
		errors.Is(err, pager.ErrLockUnavailable):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type saldoJSON struct {
	Total       int64  `json:"total"`
	DataExtrato string `json:"data_extrato"`
	Limite      int64  `json:"limite"`
}

type transactionJSON struct {
	Valor       int64  `json:"valor"`
	Tipo        string `json:"tipo"`
	Descricao   string `json:"descricao"`
	RealizadaEm string `json:"realizada_em"`
}

type extratoResponse struct {
	Saldo             saldoJSON         `json:"saldo"`
	UltimasTransacoes []transactionJSON `json:"ultimas_transacoes"`
}

func (s *Service) handleExtrato(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	account, ok := s.accounts[id]
	if !ok {
		http.Error(w, "unknown account", http.StatusNotFound)
		return
	}

	entries, err := account.LastNTransactions(10)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var total int64
	if len(entries) > 0 {
		total = entries[0].BalanceAfter
	}

	transactions := make([]transactionJSON, 0, len(entries))
	for _, e := range entries {
		transactions = append(transactions, transactionJSON{
			Valor:       e.Transaction.Value,
			Tipo:        e.Transaction.Kind.String(),
			Descricao:   string(e.Transaction.Description),
			RealizadaEm: e.Transaction.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, extratoResponse{
		Saldo: saldoJSON{
			Total:       total,
			DataExtrato: time.Now().UTC().Format(time.RFC3339),
			Limite:      account.Limit(),
		},
		UltimasTransacoes: transactions,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
