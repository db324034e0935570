package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xhector27/ribbon-v1/internal/factory"
	"github.com/0xhector27/ribbon-v1/internal/logger"
	"github.com/0xhector27/ribbon-v1/internal/metrics"
	"github.com/0xhector27/ribbon-v1/internal/state"
	"github.com/0xhector27/ribbon-v1/internal/vault"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer handles HTTP requests for vault and instrument data.
type WebServer struct {
	router    *mux.Router
	port      string
	vault     vault.Vault
	vaultName string
	factory   *factory.Factory
}

// NewWebServer creates a new web server instance.
func NewWebServer(port string, vaultName string, v vault.Vault, f *factory.Factory) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:    mux.NewRouter(),
		port:      port,
		vault:     v,
		vaultName: vaultName,
		factory:   f,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes.
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/vault/summary", ws.handleVaultSummary).Methods("GET")
	api.HandleFunc("/vault/account/{address}", ws.handleAccount).Methods("GET")
	api.HandleFunc("/rotations", ws.handleRotations).Methods("GET")
	api.HandleFunc("/positions/{owner}", ws.handlePositions).Methods("GET")
	api.HandleFunc("/receipts/{account}", ws.handleReceipts).Methods("GET")
	api.HandleFunc("/adapters", ws.handleAdapters).Methods("GET")
	api.HandleFunc("/instruments", ws.handleInstruments).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	dbStatus := "connected"
	if state.DB == nil {
		dbStatus = "not_initialized"
	} else if err := state.DB.Ping(); err != nil {
		dbStatus = "unreachable"
		status = "degraded"
	}

	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"database":  dbStatus,
		"vault":     ws.vaultName,
		"timestamp": time.Now().UTC(),
	})
}

// handleVaultSummary returns the vault's headline numbers.
func (ws *WebServer) handleVaultSummary(w http.ResponseWriter, r *http.Request) {
	total, err := ws.vault.TotalBalance()
	if err != nil {
		ws.writeError(w, http.StatusInternalServerError, err)
		return
	}
	available, err := ws.vault.AvailableToWithdraw()
	if err != nil {
		ws.writeError(w, http.StatusInternalServerError, err)
		return
	}

	metrics.VaultTotalBalance.WithLabelValues(ws.vaultName).Set(metrics.IntValue(total))

	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"vault":                 ws.vaultName,
		"total_balance":         total.String(),
		"available_to_withdraw": available.String(),
		"locked_amount":         ws.vault.LockedAmount().String(),
		"share_supply":          ws.vault.TotalShares().String(),
		"current_option":        ws.vault.CurrentOption().Hex(),
		"next_option_ready_at":  ws.vault.NextOptionReadyAt(),
	})
}

// handleAccount returns one depositor's share position.
func (ws *WebServer) handleAccount(w http.ResponseWriter, r *http.Request) {
	addrStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addrStr) {
		ws.writeError(w, http.StatusBadRequest, errInvalidAddress)
		return
	}
	account := common.HexToAddress(addrStr)

	balance, err := ws.vault.AccountVaultBalance(account)
	if err != nil {
		ws.writeError(w, http.StatusInternalServerError, err)
		return
	}
	maxShares, err := ws.vault.MaxWithdrawableShares(account)
	if err != nil {
		ws.writeError(w, http.StatusInternalServerError, err)
		return
	}

	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"account":                 account.Hex(),
		"shares":                  ws.vault.ShareBalance(account).String(),
		"balance":                 balance.String(),
		"max_withdrawable_shares": maxShares.String(),
	})
}

// handleRotations returns the persisted rotation history.
func (ws *WebServer) handleRotations(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	snapshots, err := state.GetRotationSnapshots(ws.vaultName, limit)
	if err != nil {
		ws.writeError(w, http.StatusInternalServerError, err)
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"vault":     ws.vaultName,
		"count":     len(snapshots),
		"rotations": snapshots,
	})
}

// handlePositions returns an owner's mirrored instrument positions.
func (ws *WebServer) handlePositions(w http.ResponseWriter, r *http.Request) {
	addrStr := mux.Vars(r)["owner"]
	if !common.IsHexAddress(addrStr) {
		ws.writeError(w, http.StatusBadRequest, errInvalidAddress)
		return
	}
	owner := common.HexToAddress(addrStr)

	positions, err := state.GetInstrumentPositions(owner)
	if err != nil {
		ws.writeError(w, http.StatusInternalServerError, err)
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"owner":     owner.Hex(),
		"count":     len(positions),
		"positions": positions,
	})
}

// handleReceipts returns an account's action receipts.
func (ws *WebServer) handleReceipts(w http.ResponseWriter, r *http.Request) {
	addrStr := mux.Vars(r)["account"]
	if !common.IsHexAddress(addrStr) {
		ws.writeError(w, http.StatusBadRequest, errInvalidAddress)
		return
	}
	account := common.HexToAddress(addrStr)

	receipts, err := state.GetActionReceipts(account, 100)
	if err != nil {
		ws.writeError(w, http.StatusInternalServerError, err)
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"account":  account.Hex(),
		"count":    len(receipts),
		"receipts": receipts,
	})
}

// handleAdapters returns the registered venue names.
func (ws *WebServer) handleAdapters(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"adapters": ws.factory.Adapters(),
	})
}

// handleInstruments returns the listed instrument names.
func (ws *WebServer) handleInstruments(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"instruments": ws.factory.Instruments(),
	})
}
