// Package main runs the bonding-curve pool service:
// - JSON API over pool creation, trading, oracle updates, and withdrawals
// - WebSocket event stream at /ws
// - Prometheus metrics at /metrics
//
// Storage is in-memory by default; --postgres-dsn switches the pool store to
// PostgreSQL and --clickhouse-dsn adds a durable event journal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"curvepool/internal/domain"
	"curvepool/internal/engine"
	"curvepool/internal/events"
	"curvepool/internal/events/ws"
	"curvepool/internal/ledger"
	ledgermem "curvepool/internal/ledger/memory"
	"curvepool/internal/observability"
	"curvepool/internal/storage"
	chstore "curvepool/internal/storage/clickhouse"
	"curvepool/internal/storage/memory"
	"curvepool/internal/storage/migrations"
	pgstore "curvepool/internal/storage/postgres"
)

// Server holds the engine and its collaborators.
type Server struct {
	engine  *engine.Engine
	pools   storage.PoolStore
	settle  ledger.SettlementLedger
	tokens  ledger.TokenLedger
	journal *chstore.EventJournal // nil without ClickHouse
	hub     *ws.Broadcaster
	logger  *log.Logger
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	listenAddr := flag.String("listen", ":8080", "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (empty for in-memory pool store)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (empty disables the event journal)")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Pool store
	var pools storage.PoolStore
	var cleanups []func()
	if *postgresDSN != "" {
		pgPool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to postgres: %v", err)
		}
		cleanups = append(cleanups, pgPool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pgPool); err != nil {
			logger.Fatalf("Failed to apply postgres migrations: %v", err)
		}
		pools = pgstore.NewPoolStore(pgPool)
		logger.Println("Using PostgreSQL pool store")
	} else {
		pools = memory.NewPoolStore()
		logger.Println("Using in-memory pool store")
	}

	// Event sinks: WebSocket fan-out always, ClickHouse journal when configured
	hub := ws.NewBroadcaster(nil)
	cleanups = append(cleanups, func() { hub.Close() })
	sinks := events.MultiSink{hub}

	var journal *chstore.EventJournal
	if *clickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to set up clickhouse: %v", err)
		}
		cleanups = append(cleanups, func() { chConn.Close() })
		journal = chstore.NewEventJournal(chConn)
		sinks = append(sinks, journal)
		logger.Println("ClickHouse event journal enabled")
	}

	// Custody ledgers are in-memory; settlement funds enter through the
	// deposit endpoint.
	settle := ledgermem.NewSettlementLedger()
	tokens := ledgermem.NewTokenLedger()

	metrics := observability.NewMetrics("curvepool")

	server := &Server{
		engine:  engine.New(pools, tokens, settle, engine.RealClock(), sinks, metrics),
		pools:   pools,
		settle:  settle,
		tokens:  tokens,
		journal: journal,
		hub:     hub,
		logger:  logger,
	}

	httpServer := &http.Server{
		Addr:    *listenAddr,
		Handler: server.routes(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}
		cancel()
	}()

	logger.Printf("Listening on %s", *listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server error: %v", err)
	}

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	logger.Println("Shutdown complete")
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Event stream
	mux.Handle("/ws", s.hub.Handler())

	// Pools
	mux.HandleFunc("POST /v1/pools", s.handleCreatePool)
	mux.HandleFunc("GET /v1/pools", s.handleListPools)
	mux.HandleFunc("GET /v1/pools/{creator}/{symbol}", s.handleGetPool)
	mux.HandleFunc("GET /v1/pools/{creator}/{symbol}/graduation", s.handleGraduation)
	mux.HandleFunc("GET /v1/pools/{creator}/{symbol}/withdrawals", s.handleWithdrawalInfo)
	mux.HandleFunc("GET /v1/pools/{creator}/{symbol}/quote/buy", s.handleBuyQuote)
	mux.HandleFunc("GET /v1/pools/{creator}/{symbol}/quote/sell", s.handleSellQuote)
	mux.HandleFunc("GET /v1/pools/{creator}/{symbol}/events", s.handlePoolEvents)

	// Trading and administration
	mux.HandleFunc("POST /v1/pools/{creator}/{symbol}/buy", s.handleBuy)
	mux.HandleFunc("POST /v1/pools/{creator}/{symbol}/sell", s.handleSell)
	mux.HandleFunc("POST /v1/pools/{creator}/{symbol}/oracle", s.handleOracleUpdate)
	mux.HandleFunc("POST /v1/pools/{creator}/{symbol}/withdraw/fees", s.handleWithdrawFees)
	mux.HandleFunc("POST /v1/pools/{creator}/{symbol}/withdraw/reserve", s.handleWithdrawReserve)
	mux.HandleFunc("POST /v1/pools/{creator}/{symbol}/withdraw/emergency", s.handleEmergencyWithdraw)

	// Accounts
	mux.HandleFunc("POST /v1/accounts/{account}/deposit", s.handleDeposit)
	mux.HandleFunc("GET /v1/accounts/{account}/balance", s.handleBalance)
	mux.HandleFunc("GET /v1/pools/{creator}/{symbol}/holders/{holder}", s.handleTokenBalance)

	return mux
}

type createPoolRequest struct {
	Creator       string `json:"creator"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	IconRef       string `json:"icon_ref"`
	ProjectURLRef string `json:"project_url_ref"`
	Decimals      uint8  `json:"decimals"`
	AssetType     string `json:"asset_type"`

	TotalSupply uint64 `json:"total_supply"`
	K           uint64 `json:"k"`
	FeeRateBps  uint64 `json:"fee_rate_bps"`

	BackingRatioBps           uint64 `json:"backing_ratio_bps"`
	WithdrawalLimitBps        uint64 `json:"withdrawal_limit_bps"`
	WithdrawalCooldownSeconds uint64 `json:"withdrawal_cooldown_seconds"`

	GraduationThreshold uint64 `json:"graduation_threshold"`
	GraduationTarget    string `json:"graduation_target"`
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	pool, err := s.engine.Create(r.Context(), engine.CreateParams{
		CreatorIdentity:           req.Creator,
		Symbol:                    req.Symbol,
		Name:                      req.Name,
		IconRef:                   req.IconRef,
		ProjectURLRef:             req.ProjectURLRef,
		Decimals:                  req.Decimals,
		AssetType:                 req.AssetType,
		TotalSupply:               req.TotalSupply,
		K:                         req.K,
		FeeRateBps:                req.FeeRateBps,
		BackingRatioBps:           req.BackingRatioBps,
		WithdrawalLimitBps:        req.WithdrawalLimitBps,
		WithdrawalCooldownSeconds: req.WithdrawalCooldownSeconds,
		GraduationThreshold:       req.GraduationThreshold,
		GraduationTarget:          req.GraduationTarget,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pool)
}

func (s *Server) handleListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.pools.List(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pools)
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	info, err := s.engine.GetFullTokenInfo(r.Context(), r.PathValue("creator"), r.PathValue("symbol"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleGraduation(w http.ResponseWriter, r *http.Request) {
	progress, err := s.engine.GetGraduationProgress(r.Context(), r.PathValue("creator"), r.PathValue("symbol"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleWithdrawalInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.engine.GetWithdrawalInfo(r.Context(), r.PathValue("creator"), r.PathValue("symbol"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleBuyQuote(w http.ResponseWriter, r *http.Request) {
	amount, err := queryAmount(r, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	quote, err := s.engine.GetBuyPrice(r.Context(), r.PathValue("creator"), r.PathValue("symbol"), amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleSellQuote(w http.ResponseWriter, r *http.Request) {
	amount, err := queryAmount(r, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	quote, err := s.engine.GetSellPrice(r.Context(), r.PathValue("creator"), r.PathValue("symbol"), amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handlePoolEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotImplemented, errors.New("event history requires the clickhouse journal"))
		return
	}
	limit := uint64(100)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit: %w", err))
			return
		}
		limit = parsed
	}
	evs, err := s.journal.PoolEvents(r.Context(), r.PathValue("creator"), r.PathValue("symbol"), limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evs)
}

type tradeRequest struct {
	Trader string `json:"trader"`
	Amount uint64 `json:"amount"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	tokens, err := s.engine.Buy(r.Context(), req.Trader, r.PathValue("creator"), r.PathValue("symbol"), req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"token_amount": tokens})
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	refund, err := s.engine.Sell(r.Context(), req.Trader, r.PathValue("creator"), r.PathValue("symbol"), req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"net_refund": refund})
}

type oracleRequest struct {
	Caller string `json:"caller"`
	Price  uint64 `json:"price"`
}

func (s *Server) handleOracleUpdate(w http.ResponseWriter, r *http.Request) {
	var req oracleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	err := s.engine.UpdateOraclePrice(r.Context(), req.Caller, r.PathValue("creator"), r.PathValue("symbol"), req.Price)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type withdrawRequest struct {
	Caller string `json:"caller"`
	Amount uint64 `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleWithdrawFees(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	err := s.engine.WithdrawFees(r.Context(), req.Caller, r.PathValue("creator"), r.PathValue("symbol"), req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWithdrawReserve(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	err := s.engine.WithdrawReserve(r.Context(), req.Caller, r.PathValue("creator"), r.PathValue("symbol"), req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	err := s.engine.EmergencyWithdraw(r.Context(), req.Caller, r.PathValue("creator"), r.PathValue("symbol"), req.Amount, req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type depositRequest struct {
	Amount uint64 `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if err := s.settle.Mint(r.Context(), r.PathValue("account"), req.Amount); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.settle.BalanceOf(r.Context(), r.PathValue("account"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"balance": balance})
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, r *http.Request) {
	token := domain.PoolKey(r.PathValue("creator"), r.PathValue("symbol"))
	balance, err := s.tokens.BalanceOf(r.Context(), token, r.PathValue("holder"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"balance": balance})
}

func queryAmount(r *http.Request, key string) (uint64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, fmt.Errorf("missing query parameter %q", key)
	}
	amount, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return amount, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeEngineError maps engine and storage sentinels to HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, engine.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, engine.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, engine.ErrInvalidState):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, engine.ErrCooldownNotExpired):
		writeError(w, http.StatusTooManyRequests, err)
	case errors.Is(err, engine.ErrInsufficientFunds),
		errors.Is(err, engine.ErrInsufficientTokenBalance),
		errors.Is(err, engine.ErrInsufficientCustodialTokens),
		errors.Is(err, engine.ErrExceedsWithdrawalLimit),
		errors.Is(err, engine.ErrInsufficientBacking):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, engine.ErrInvalidArgument),
		errors.Is(err, ledger.ErrInvalidInput),
		errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
