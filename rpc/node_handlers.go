package rpc

import (
	"net/http"

	"dqchain/native/certificate"
	"dqchain/native/marketplace"
	"dqchain/native/token"
)

type roleQueryParams struct {
	Role    string `json:"role"`
	Address string `json:"address"`
}

type roleChangeParams struct {
	Caller  string `json:"caller"`
	Role    string `json:"role"`
	Address string `json:"address"`
}

type statusResult struct {
	Height uint64          `json:"height"`
	Root   string          `json:"stateRoot"`
	Paused map[string]bool `json:"paused"`
}

func (s *Server) handleGetSupplyInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	info, err := s.node.TokenSupplyInfo()
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatSupplyInfo(info))
}

func (s *Server) handleGetEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, formatEvents(s.node.Events()))
}

func (s *Server) handleGetStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, statusResult{
		Height: s.node.Height(),
		Root:   s.node.StateRoot().Hex(),
		Paused: map[string]bool{
			token.ModuleName:       s.node.ModulePaused(token.ModuleName),
			certificate.ModuleName: s.node.ModulePaused(certificate.ModuleName),
			marketplace.ModuleName: s.node.ModulePaused(marketplace.ModuleName),
		},
	})
}

func (s *Server) handleHasRole(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params roleQueryParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]bool{"hasRole": s.node.HasRole(params.Role, addr)})
}

func (s *Server) handleGrantRole(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params roleChangeParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.GrantRole(caller, params.Role, addr); err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"granted": true})
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params roleChangeParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.RevokeRole(caller, params.Role, addr); err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"revoked": true})
}
