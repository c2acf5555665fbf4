package rpc

import (
	"net/http"

	"dqchain/native/marketplace"
)

type createCourseParams struct {
	Caller          string `json:"caller"`
	Price           string `json:"price"`
	MetadataURI     string `json:"metadataURI,omitempty"`
	RevenueSharePct uint8  `json:"revenueSharePct,omitempty"`
}

type updateCourseParams struct {
	Caller          string `json:"caller"`
	CourseID        uint64 `json:"courseId"`
	Price           string `json:"price"`
	MetadataURI     string `json:"metadataURI,omitempty"`
	RevenueSharePct uint8  `json:"revenueSharePct,omitempty"`
}

type courseActionParams struct {
	Caller   string `json:"caller"`
	CourseID uint64 `json:"courseId"`
}

type courseIDParams struct {
	CourseID uint64 `json:"courseId"`
}

type issueCertificateParams struct {
	Caller      string `json:"caller"`
	Student     string `json:"student"`
	CourseID    uint64 `json:"courseId"`
	CourseName  string `json:"courseName"`
	Score       uint8  `json:"score"`
	MetadataURI string `json:"metadataURI,omitempty"`
}

func (s *Server) handleMarketCreateCourse(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params createCourseParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	price, err := parseAmount("price", params.Price)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	course, err := s.node.MarketCreateCourse(caller, price, params.MetadataURI, params.RevenueSharePct)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatCourse(course))
}

func (s *Server) handleMarketPurchaseCourse(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params courseActionParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	buyer, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	course, err := s.node.MarketPurchaseCourse(buyer, params.CourseID)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatCourse(course))
}

func (s *Server) handleMarketUpdateCourse(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params updateCourseParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	price, err := parseAmount("price", params.Price)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	course, err := s.node.MarketUpdateCourse(caller, params.CourseID, price, params.MetadataURI, params.RevenueSharePct)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatCourse(course))
}

func (s *Server) handleMarketToggleCourseStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params courseActionParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	course, err := s.node.MarketToggleCourseStatus(caller, params.CourseID)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatCourse(course))
}

func (s *Server) handleMarketWithdrawRevenue(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params courseActionParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := s.node.MarketWithdrawRevenue(caller, params.CourseID)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"withdrawn": amount.String()})
}

func (s *Server) handleMarketIssueCertificate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params issueCertificateParams
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
	cert, err := s.node.MarketIssueCertificate(caller, student, params.CourseID, params.CourseName, params.Score, params.MetadataURI)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatCertificate(cert))
}

func (s *Server) handleMarketGetCourse(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params courseIDParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	course, err := s.node.MarketGetCourse(params.CourseID)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatCourse(course))
}

func (s *Server) handleMarketNextCourseID(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	next, err := s.node.MarketNextCourseID()
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"nextCourseId": next})
}

func (s *Server) handleMarketCoursesByCreator(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	creator, err := parseAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusOK, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ids, err := s.node.MarketCoursesByCreator(creator)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"courseIds": ids})
}

func (s *Server) handleMarketEnrollments(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
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
	ids, err := s.node.MarketEnrollments(student)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"courseIds": ids})
}

func (s *Server) handleMarketPause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
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
	if err := s.node.MarketPause(caller); err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paused": s.node.ModulePaused(marketplace.ModuleName)})
}

func (s *Server) handleMarketUnpause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
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
	if err := s.node.MarketUnpause(caller); err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paused": s.node.ModulePaused(marketplace.ModuleName)})
}
