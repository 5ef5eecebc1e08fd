// Package api is the thin HTTP glue over the vote relay service: routing,
// CORS and the {"success":...} JSON envelope. No voting logic lives here.
package api

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"vote-relay/service"
)

type Server struct {
	router *chi.Mux
	voting *service.VotingService
	addr   string
}

type castVoteRequest struct {
	Candidate       string `json:"candidate"`
	ContractAddress string `json:"contractAddress"`
}

type deployContractRequest struct {
	Candidates    []string `json:"candidates"`
	MaxVoters     int64    `json:"maxVoters"`
	DurationHours int64    `json:"durationHours"`
}

type endElectionRequest struct {
	ContractAddress string `json:"contractAddress"`
}

func NewServer(voting *service.VotingService, host string, port int) *Server {
	s := &Server{
		voting: voting,
		addr:   fmt.Sprintf("%s:%d", host, port),
	}
	s.initRouter()
	return s
}

// Router exposes the chi router, mainly for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start blocks serving the API.
func (s *Server) Start() error {
	logrus.WithField("addr", s.addr).Info("starting vote relay API")
	return http.ListenAndServe(s.addr, s.router)
}

func (s *Server) initRouter() {
	s.router = chi.NewRouter()
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}).Handler)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(120 * time.Second))

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/candidates", s.handleCandidates)
	s.router.Get("/api/stats", s.handleStats)
	s.router.Get("/api/winner", s.handleWinner)
	s.router.Get("/api/admin", s.handleAdmin)
	s.router.Get("/api/has-voted/{voterID}", s.handleHasVoted)
	s.router.Post("/api/vote", s.handleCastVote)
	s.router.Post("/api/deploy-contract", s.handleDeployContract)
	s.router.Post("/api/end-election", s.handleEndElection)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"message": "Backend is running"}
	if block, err := s.voting.BlockNumber(r.Context()); err == nil {
		data["block"] = block
	} else {
		data["block"] = nil
	}
	writeData(w, data)
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	contract, err := contractParam(r)
	if err != nil {
		ErrInvalidContract.WithErr(err).Write(w)
		return
	}
	candidates, err := s.voting.Candidates(r.Context(), contract)
	if err != nil {
		fromService(err).Write(w)
		return
	}
	writeData(w, candidates)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	contract, err := contractParam(r)
	if err != nil {
		ErrInvalidContract.WithErr(err).Write(w)
		return
	}
	stats, err := s.voting.ElectionStats(r.Context(), contract)
	if err != nil {
		fromService(err).Write(w)
		return
	}
	writeData(w, stats)
}

func (s *Server) handleWinner(w http.ResponseWriter, r *http.Request) {
	contract, err := contractParam(r)
	if err != nil {
		ErrInvalidContract.WithErr(err).Write(w)
		return
	}
	winner, err := s.voting.Winner(r.Context(), contract)
	if err != nil {
		fromService(err).Write(w)
		return
	}
	writeData(w, winner)
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	admin, err := s.voting.Admin(r.Context())
	if err != nil {
		fromService(err).Write(w)
		return
	}
	writeData(w, admin.Hex())
}

// handleHasVoted always reports false: votes are cast from one-time
// addresses that cannot be traced back to a voter id, so the backend has
// nothing to look up. Clients track their own voted state.
func (s *Server) handleHasVoted(w http.ResponseWriter, r *http.Request) {
	logrus.WithField("voterID", chi.URLParam(r, "voterID")).
		Debug("has-voted lookup answered false to preserve anonymity")
	writeData(w, false)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if req.Candidate == "" {
		ErrMissingCandidate.Write(w)
		return
	}
	contract, err := parseContract(req.ContractAddress)
	if err != nil {
		ErrInvalidContract.WithErr(err).Write(w)
		return
	}
	txHash, err := s.voting.CastVote(r.Context(), req.Candidate, contract)
	if err != nil {
		fromService(err).Write(w)
		return
	}
	writeData(w, map[string]string{"transactionHash": txHash.Hex()})
}

func (s *Server) handleDeployContract(w http.ResponseWriter, r *http.Request) {
	var req deployContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if len(req.Candidates) < 2 {
		ErrTooFewCandidates.Withf("got %d", len(req.Candidates)).Write(w)
		return
	}
	if req.MaxVoters <= 0 {
		req.MaxVoters = 100
	}
	if req.DurationHours <= 0 {
		req.DurationHours = 24
	}
	addr, txHash, err := s.voting.DeployElection(r.Context(),
		req.Candidates, req.MaxVoters, req.DurationHours, clientOrigin(r))
	if err != nil {
		fromService(err).Write(w)
		return
	}
	writeData(w, map[string]string{
		"contractAddress": addr.Hex(),
		"transactionHash": txHash.Hex(),
	})
}

func (s *Server) handleEndElection(w http.ResponseWriter, r *http.Request) {
	var req endElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	contract, err := parseContract(req.ContractAddress)
	if err != nil {
		ErrInvalidContract.WithErr(err).Write(w)
		return
	}
	txHash, err := s.voting.EndElection(r.Context(), contract, clientOrigin(r))
	if err != nil {
		fromService(err).Write(w)
		return
	}
	writeData(w, map[string]string{"transactionHash": txHash.Hex()})
}

// writeData sends the success envelope.
func writeData(w http.ResponseWriter, data any) {
	body, err := json.Marshal(map[string]any{
		"success": true,
		"data":    data,
	})
	if err != nil {
		ErrInternal.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logrus.WithError(err).Warn("failed to write response")
	}
}

// contractParam reads the optional contractAddress query parameter.
func contractParam(r *http.Request) (*common.Address, error) {
	return parseContract(r.URL.Query().Get("contractAddress"))
}

func parseContract(raw string) (*common.Address, error) {
	if raw == "" {
		return nil, nil
	}
	if !common.IsHexAddress(raw) {
		return nil, fmt.Errorf("not a hex address: %q", raw)
	}
	addr := common.HexToAddress(raw)
	return &addr, nil
}

// clientOrigin extracts the requester's network origin. Proxy headers are
// trusted as-is, which is exactly as weak as it sounds; the authorization
// check built on top of this is best-effort only.
func clientOrigin(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
