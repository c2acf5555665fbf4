package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"dqchain/core"
	"dqchain/core/genesis"
	"dqchain/crypto"
	"dqchain/native/token"
	"dqchain/storage"
)

const testAuthToken = "test-rpc-secret"

var (
	adminAddr   = testAddr(0x01)
	creatorAddr = testAddr(0x02)
	studentAddr = testAddr(0x03)
)

func testAddr(b byte) crypto.Address {
	var raw [20]byte
	raw[19] = b
	return crypto.MustNewAddress(crypto.DQPrefix, raw[:])
}

func unit(n int64) *big.Int {
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(token.Decimals)), nil)
	return new(big.Int).Mul(big.NewInt(n), one)
}

func newTestServer(t *testing.T) (*Server, *core.Node) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node, err := core.NewNode(db, nil)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	raw := fmt.Sprintf(`{
  "genesisTime": "2025-01-01T00:00:00Z",
  "token": {"symbol": "DQT", "name": "DataQuest Token", "decimals": 18, "totalSupply": "%s"},
  "alloc": {%q: "%s", %q: "%s"},
  "rewardPool": "%s",
  "roles": {
    "ROLE_ADMIN": [%q],
    "ROLE_COURSE_CREATOR": [%q]
  }
}`, unit(1_000_000),
		adminAddr.String(), unit(800_000),
		studentAddr.String(), unit(100_000),
		unit(100_000),
		adminAddr.String(), creatorAddr.String())
	spec, err := genesis.ParseSpec([]byte(raw))
	if err != nil {
		t.Fatalf("parse spec: %v", err)
	}
	if err := node.InitGenesis(spec); err != nil {
		t.Fatalf("init genesis: %v", err)
	}
	return NewServer(node, testAuthToken, nil), node
}

func rpcCall(t *testing.T, srv *Server, bearer, method string, params interface{}) RPCResponse {
	t.Helper()
	var rawParams []json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		rawParams = []json.RawMessage{encoded}
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: rawParams, ID: 1})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var resp RPCResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

func resultMap(t *testing.T, resp RPCResponse) map[string]interface{} {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %d %s", resp.Error.Code, resp.Error.Message)
	}
	out, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result is not an object: %T", resp.Result)
	}
	return out
}

func TestReadMethodsNeedNoAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := rpcCall(t, srv, "", "token_balanceOf", addressParams{Address: studentAddr.String()})
	result := resultMap(t, resp)
	if result["balance"] != unit(100_000).String() {
		t.Fatalf("balance: got %v", result["balance"])
	}

	resp = rpcCall(t, srv, "", "dq_getStatus", nil)
	status := resultMap(t, resp)
	if status["height"].(float64) != 0 {
		t.Fatalf("fresh ledger height: got %v", status["height"])
	}
}

func TestMutatingMethodsRequireBearer(t *testing.T) {
	srv, _ := newTestServer(t)
	params := transferParams{From: adminAddr.String(), To: studentAddr.String(), Amount: unit(1).String()}

	resp := rpcCall(t, srv, "", "token_transfer", params)
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got %+v", resp.Error)
	}

	resp = rpcCall(t, srv, "wrong-token", "token_transfer", params)
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized for bad token, got %+v", resp.Error)
	}

	resp = rpcCall(t, srv, testAuthToken, "token_transfer", params)
	if resp.Error != nil {
		t.Fatalf("authorized transfer failed: %+v", resp.Error)
	}
}

func TestMethodNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := rpcCall(t, srv, "", "token_mintFreeMoney", nil)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp.Error)
	}
}

func TestLedgerErrorCodes(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := rpcCall(t, srv, testAuthToken, "token_transfer", transferParams{
		From: studentAddr.String(), To: adminAddr.String(), Amount: unit(500_000).String(),
	})
	if resp.Error == nil || resp.Error.Code != codeInsufficient {
		t.Fatalf("expected insufficient funds code, got %+v", resp.Error)
	}

	resp = rpcCall(t, srv, testAuthToken, "market_createCourse", createCourseParams{
		Caller: studentAddr.String(), Price: unit(10).String(),
	})
	if resp.Error == nil || resp.Error.Code != codeForbidden {
		t.Fatalf("expected forbidden code, got %+v", resp.Error)
	}

	resp = rpcCall(t, srv, "", "market_getCourse", courseIDParams{CourseID: 99})
	if resp.Error == nil || resp.Error.Code != codeNotFound {
		t.Fatalf("expected not found code, got %+v", resp.Error)
	}

	resp = rpcCall(t, srv, "", "token_balanceOf", addressParams{Address: "not-an-address"})
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params for foreign address, got %+v", resp.Error)
	}
}

func TestCourseLifecycleOverRPC(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := rpcCall(t, srv, testAuthToken, "market_createCourse", createCourseParams{
		Caller: creatorAddr.String(), Price: unit(100).String(), MetadataURI: "ipfs://course/1",
		RevenueSharePct: 80,
	})
	course := resultMap(t, resp)
	if course["id"].(float64) != 1 {
		t.Fatalf("course id: got %v", course["id"])
	}

	resp = rpcCall(t, srv, testAuthToken, "market_purchaseCourse", courseActionParams{
		Caller: studentAddr.String(), CourseID: 1,
	})
	resultMap(t, resp)

	resp = rpcCall(t, srv, testAuthToken, "market_issueCertificate", issueCertificateParams{
		Caller: creatorAddr.String(), Student: studentAddr.String(), CourseID: 1,
		CourseName: "Go Fundamentals", Score: 92, MetadataURI: "ipfs://cert/1",
	})
	cert := resultMap(t, resp)
	if cert["tokenId"].(float64) != 1 {
		t.Fatalf("certificate token id: got %v", cert["tokenId"])
	}

	resp = rpcCall(t, srv, "", "cert_verify", certVerifyParams{Student: studentAddr.String(), CourseID: 1})
	verified := resultMap(t, resp)
	if verified["certified"] != true {
		t.Fatalf("certificate not verified: %v", verified)
	}

	resp = rpcCall(t, srv, testAuthToken, "market_withdrawRevenue", courseActionParams{
		Caller: creatorAddr.String(), CourseID: 1,
	})
	withdrawn := resultMap(t, resp)
	if withdrawn["withdrawn"] != unit(80).String() {
		t.Fatalf("withdrawn: got %v", withdrawn["withdrawn"])
	}

	resp = rpcCall(t, srv, "", "dq_getSupplyInfo", nil)
	supply := resultMap(t, resp)
	if supply["totalSupply"] != unit(1_000_000).String() {
		t.Fatalf("total supply: got %v", supply["totalSupply"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status: got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("health body: %v", body)
	}
}

func TestOversizedBodyRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	payload := bytes.Repeat([]byte("a"), maxRequestBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}
