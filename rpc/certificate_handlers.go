package rpc

import (
	"net/http"

	"dqchain/native/certificate"
)

type certMintParams struct {
	Caller      string `json:"caller"`
	Student     string `json:"student"`
	CourseID    uint64 `json:"courseId"`
	CourseName  string `json:"courseName"`
	Score       uint8  `json:"score"`
	MetadataURI string `json:"metadataURI,omitempty"`
}

type certVerifyParams struct {
	Student  string `json:"student"`
	CourseID uint64 `json:"courseId"`
}

type tokenIDParams struct {
	TokenID uint64 `json:"tokenId"`
}

func (s *Server) handleCertMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params certMintParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	student, err := parseAddress("student", params.Student)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	cert, err := s.node.CertificateMint(caller, student, params.CourseID, params.CourseName, params.Score, params.MetadataURI)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatCertificate(cert))
}

func (s *Server) handleCertVerify(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params certVerifyParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	student, err := parseAddress("student", params.Student)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ok, err := s.node.CertificateVerify(student, params.CourseID)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"certified": ok})
}

func (s *Server) handleCertGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenIDParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	cert, err := s.node.CertificateGet(params.TokenID)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatCertificate(cert))
}

func (s *Server) handleCertTokenURI(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenIDParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	uri, err := s.node.CertificateTokenURI(params.TokenID)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"tokenURI": uri})
}

func (s *Server) handleCertHolderTokens(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	student, err := parseAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ids, err := s.node.CertificateHolderTokens(student)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"tokenIds": ids})
}

func (s *Server) handleCertTotalIssued(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	total, err := s.node.CertificateTotalIssued()
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"totalIssued": total})
}

func (s *Server) handleCertPause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params callerParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.CertificatePause(caller); err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paused": s.node.ModulePaused(certificate.ModuleName)})
}

func (s *Server) handleCertUnpause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params callerParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.CertificateUnpause(caller); err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paused": s.node.ModulePaused(certificate.ModuleName)})
}
