package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"synnergy-core/engine"
	"synnergy-core/exec"
	"synnergy-core/genesis"
	"synnergy-core/state"
	"synnergy-core/trie"
	"synnergy-core/types"
)

// serveRequest is the wire shape of one POST /deploy submission: a hex
// WASM module plus the same account/entry-point/args triple the deploy
// subcommand takes on the command line.
type serveRequest struct {
	Wasm       string            `json:"wasm"`
	EntryPoint string            `json:"entry_point"`
	Account    string            `json:"account"`
	Args       map[string]string `json:"args"` // name -> "type:value", see parseRuntimeArgs
	GasLimit   uint64            `json:"gas_limit"`
	Payment    uint64            `json:"payment"`
}

type serveResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	GasUsed uint64 `json:"gas_used"`
	NewRoot string `json:"new_root,omitempty"`
	Return  string `json:"return,omitempty"`
}

// serveLimiter caps request throughput the same way the teacher's vm daemon
// does: a single process-wide token bucket shared by every connection.
var serveLimiter = rate.NewLimiter(200, 100)

func serveRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !serveLimiter.Allow() {
			http.Error(w, "rate limit", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// serveState holds the single trie store + commit mutex shared by every
// request the daemon handles; deploys are serialized per spec §4.3's
// "commit is one atomic transaction" (a daemon cannot let two deploys race
// the same pre-state root).
type serveState struct {
	mu    sync.Mutex
	store *trie.Store
	path  string
}

func (s *serveState) handleDeploy(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	w.Header().Set("X-Request-Id", reqID)
	log := ctlLogger.WithField("request_id", reqID)

	var req serveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.WithFields(logrus.Fields{"account": req.Account, "entry_point": req.EntryPoint}).Info("deploy request received")
	code, err := hex.DecodeString(req.Wasm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	argFlags := make([]string, 0, len(req.Args))
	for name, v := range req.Args {
		argFlags = append(argFlags, name+"="+v)
	}
	args, err := parseRuntimeArgs(argFlags)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, ok := args["amount"]; !ok {
		args["amount"] = types.CLValue{Type: types.CLU512, Bytes: new(big.Int).SetUint64(req.Payment).Bytes()}
	}
	deployHash, err := randomDeployHash()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := readCurrentRoot(s.path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	tc := state.New(s.store, root)

	accountHash := genesis.AccountHashFromSeed(req.Account)
	accountVal, found, err := tc.Read(types.NewAccountKey(accountHash))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !found || accountVal.Account == nil {
		http.Error(w, fmt.Sprintf("account %q not found", req.Account), http.StatusNotFound)
		return
	}

	result := exec.Exec(exec.ExecutionRequest{
		Kind:              exec.ExecModule,
		ModuleBytes:       code,
		EntryPointName:    req.EntryPoint,
		Account:           accountVal.Account,
		AuthorizationKeys: []types.Hash32{accountHash},
		Args:              args,
		GasLimit:          req.GasLimit,
		Phase:             types.PhaseSession,
		DeployHash:        deployHash,
		ProtocolVersion:   types.ProtocolVersion{Major: 1},
	}, tc, genesis.AccountHashFromSeed("genesis-system-account"), engine.DefaultEngineConfig(), engine.NewPrecompileCache())

	resp := serveResponse{Success: result.Success, GasUsed: result.GasUsed}
	if !result.Success {
		resp.Error = result.Error.Error()
		log.WithError(result.Error).Warn("deploy request failed")
	} else {
		newRoot, err := s.store.Commit(root, true, result.Journal)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := writeCurrentRoot(s.path, newRoot); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.NewRoot = newRoot.String()
		resp.Return = hex.EncodeToString(result.ReturnValue)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *serveState) handleStateRoot(w http.ResponseWriter, _ *http.Request) {
	root, err := readCurrentRoot(s.path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"root": root.String()})
}

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an HTTP daemon accepting deploys against the configured trie store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, path, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		srvState := &serveState{store: store, path: path}

		router := mux.NewRouter()
		router.Use(serveRateLimit)
		router.HandleFunc("/deploy", srvState.handleDeploy).Methods("POST")
		router.HandleFunc("/state-root", srvState.handleStateRoot).Methods("GET")

		httpSrv := &http.Server{
			Addr:         serveListen,
			Handler:      router,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  30 * time.Second,
		}

		sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		go func() {
			<-sigCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		ctlLogger.Infof("enginectl serving on %s", serveListen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", ":9090", "HTTP listen address")
}
