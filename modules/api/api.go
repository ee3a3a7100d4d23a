package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	a "poll-node/modules/aggregate"
	pollCommon "poll-node/modules/common"
	feeLedger "poll-node/modules/fee-ledger"
	"poll-node/modules/journal"
	"poll-node/modules/leaderboard"
	pollRegistry "poll-node/modules/poll-registry"

	"github.com/chebyrash/promise"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
)

// ===== constants =====

const shutdownTimeout = 5 * time.Second

const prefix = "/api/v1"

// ===== types =====

type State interface {
	PollRegistry() *pollRegistry.Registry
	PollToken() *feeLedger.PollToken
	Journal() journal.Journal
	Ready() bool
}

type Leaderboard interface {
	Board() []leaderboard.Entry
}

type apiManager struct {
	conf     ApiConfig
	nodeConf pollCommon.NodeConfig
	state    State
	board    Leaderboard
	log      *slog.Logger
	validate *validator.Validate
	clock    pollCommon.Clock

	operator common.Address

	server   *http.Server
	listener net.Listener
}

// ===== interface assertion =====

var _ a.Plugin = &apiManager{}

// ===== implementing the a.Plugin interface =====

func New(conf ApiConfig, nodeConf pollCommon.NodeConfig, state State, board Leaderboard, log *slog.Logger) *apiManager {
	if log == nil {
		log = slog.Default()
	}
	return &apiManager{
		conf:     conf,
		nodeConf: nodeConf,
		state:    state,
		board:    board,
		log:      log.With("service", "api"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		clock:    pollCommon.SystemClock,
	}
}

func (api *apiManager) Init() error {
	key, err := api.nodeConf.OperatorKeyPair()
	if err != nil {
		return err
	}
	api.operator = crypto.PubkeyToAddress(key.PublicKey)

	c := cors.New(cors.Options{
		AllowedOrigins: api.conf.Get().AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	api.server = &http.Server{
		Addr:              api.conf.Get().HostAddr,
		Handler:           c.Handler(api.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return nil
}

func (api *apiManager) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+prefix+"/health", api.health)
	mux.HandleFunc("GET "+prefix+"/admin-address", api.adminAddress)
	mux.HandleFunc("GET "+prefix+"/polls", api.listPolls)
	mux.HandleFunc("GET "+prefix+"/polls/{id}", api.getPoll)
	mux.HandleFunc("GET "+prefix+"/polls/{id}/results", api.getPollResults)
	mux.HandleFunc("GET "+prefix+"/polls/{id}/votes", api.getPollVotes)
	mux.HandleFunc("GET "+prefix+"/poll-count", api.pollCount)
	mux.HandleFunc("POST "+prefix+"/create-poll", api.createPoll)
	mux.HandleFunc("POST "+prefix+"/relay-vote", api.relayVote)
	mux.HandleFunc("GET "+prefix+"/ballot-digest", api.ballotDigest)
	mux.HandleFunc("POST "+prefix+"/creators", api.addCreator)
	mux.HandleFunc("GET "+prefix+"/balance/{address}", api.balance)
	mux.HandleFunc("GET "+prefix+"/leaderboard", api.leaderboard)
	mux.HandleFunc("GET "+prefix+"/users/{address}", api.user)

	return mux
}

// Start resolves once the listener is bound; serving continues until Stop.
func (api *apiManager) Start() *promise.Promise[any] {
	return promise.New(func(resolve func(any), reject func(error)) {
		ln, err := net.Listen("tcp", api.server.Addr)
		if err != nil {
			reject(err)
			return
		}
		api.listener = ln
		api.log.Info("api listening", "addr", ln.Addr().String(), "operator", api.operator)

		go func() {
			if err := api.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				api.log.Error("api server failed", "err", err)
			}
		}()

		resolve(nil)
	})
}

func (api *apiManager) Stop() error {
	if api.server == nil {
		return nil
	}
	api.log.Info("shutting down api server")

	// gracefully shuts down the server with a timeout
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return api.server.Shutdown(ctx)
}

// Addr is the bound listen address, useful when HostAddr uses port 0.
func (api *apiManager) Addr() string {
	if api.listener == nil {
		return api.server.Addr
	}
	return api.listener.Addr().String()
}
