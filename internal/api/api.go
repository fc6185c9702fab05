// Package api is the thin, non-core Read API named in spec.md §6: plain
// GET passthroughs onto internal/store, no business logic of its own.
// Routing follows cmd/explorer/server.go (gorilla/mux, one handler per
// route); request logging follows walletserver/middleware/logger.go.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/shardindexer/internal/model"
	"github.com/synnergy-labs/shardindexer/internal/store"
)

// reader is the narrow slice of *store.Store the API depends on.
type reader interface {
	ListBlocks(ctx context.Context, limit, offset int) ([]model.Block, error)
	GetBlockByHash(ctx context.Context, hash string) (model.Block, error)
	ListBlocksByHeight(ctx context.Context, height int64, limit, offset int) ([]model.Block, error)
	ListTransactionsByBlockHash(ctx context.Context, hash string, limit, offset int) ([]model.Transaction, error)
	ListTransactions(ctx context.Context, limit, offset int) ([]model.Transaction, error)
	GetTransactionByHash(ctx context.Context, hash string) (model.Transaction, error)
	ListEvents(ctx context.Context, limit, offset int) ([]model.Event, error)
	ListEventsByContract(ctx context.Context, contractAddress string, limit, offset int) ([]model.Event, error)
	ListEventsByTxID(ctx context.Context, txID string) ([]model.Event, error)
}

// Server exposes read-only indexer data over HTTP.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	store      reader
	log        *logrus.Logger
}

// NewServer builds a Server bound to addr, following NewServer(addr) in
// cmd/explorer/server.go.
func NewServer(addr string, s *store.Store, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	srv := &Server{router: mux.NewRouter(), store: s, log: log}
	srv.routes()
	srv.httpServer = &http.Server{Addr: addr, Handler: srv.router}
	return srv
}

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start() error { return s.httpServer.ListenAndServe() }

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error { return s.httpServer.Shutdown(ctx) }

func (s *Server) routes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/blocks", s.handleListBlocks).Methods(http.MethodGet)
	s.router.HandleFunc("/blocks/hash/{hash}", s.handleGetBlockByHash).Methods(http.MethodGet)
	s.router.HandleFunc("/blocks/height/{height:[0-9]+}", s.handleListBlocksByHeight).Methods(http.MethodGet)
	s.router.HandleFunc("/blocks/transactions/{hash}", s.handleListBlockTransactions).Methods(http.MethodGet)

	s.router.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	s.router.HandleFunc("/transactions/hash/{hash}", s.handleGetTransactionByHash).Methods(http.MethodGet)

	s.router.HandleFunc("/events", s.handleListEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/events/contract/{address}", s.handleListEventsByContract).Methods(http.MethodGet)
	s.router.HandleFunc("/events/tx/{txId}", s.handleListEventsByTx).Methods(http.MethodGet)
}

type requestIDKey struct{}

// requestIDMiddleware stamps every request with a uuid.New().String() id
// (the teacher's ID-generation idiom, e.g. core/ai.go), echoed back in the
// X-Request-Id response header and carried in the request context for the
// logging middleware to pick up.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		id, _ := r.Context().Value(requestIDKey{}).(string)
		s.log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"duration":   time.Since(start),
		}).Info("handled request")
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	http.Error(w, msg, status)
}

// pageParams reads optional limit/offset query params, common to every
// listing endpoint (spec.md §6).
func pageParams(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit, _ = strconv.Atoi(q.Get("limit"))
	offset, _ = strconv.Atoi(q.Get("offset"))
	return limit, offset
}

func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	blocks, err := s.store.ListBlocks(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, blocks)
}

func (s *Server) handleGetBlockByHash(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]
	block, err := s.store.GetBlockByHash(r.Context(), hash)
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, "block not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, block)
}

func (s *Server) handleListBlocksByHeight(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseInt(mux.Vars(r)["height"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid height")
		return
	}
	limit, offset := pageParams(r)
	blocks, err := s.store.ListBlocksByHeight(r.Context(), height, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, blocks)
}

func (s *Server) handleListBlockTransactions(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]
	limit, offset := pageParams(r)
	txs, err := s.store.ListTransactionsByBlockHash(r.Context(), hash, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, txs)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	txs, err := s.store.ListTransactions(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, txs)
}

func (s *Server) handleGetTransactionByHash(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]
	tx, err := s.store.GetTransactionByHash(r.Context(), hash)
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, tx)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	events, err := s.store.ListEvents(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, events)
}

func (s *Server) handleListEventsByContract(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	limit, offset := pageParams(r)
	events, err := s.store.ListEventsByContract(r.Context(), address, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, events)
}

func (s *Server) handleListEventsByTx(w http.ResponseWriter, r *http.Request) {
	txID := mux.Vars(r)["txId"]
	events, err := s.store.ListEventsByTxID(r.Context(), txID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, events)
}
