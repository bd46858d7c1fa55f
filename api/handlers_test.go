package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willowysolutions/kanza-accounts-sub002/api"
	"github.com/willowysolutions/kanza-accounts-sub002/cashbook"
	"github.com/willowysolutions/kanza-accounts-sub002/ledger"
	"github.com/willowysolutions/kanza-accounts-sub002/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer() *httptest.Server {
	store := memory.New()
	svc := cashbook.NewService(store, ledger.NewIST(), nil)
	return httptest.NewServer(api.NewRouter(api.NewHandler(svc)))
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

var saleDate = time.Date(2024, time.April, 1, 10, 0, 0, 0, time.UTC)

// =============================================================================
// ENTRY LIFECYCLE
// =============================================================================

func TestCreateEntry_Sale(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	cash := decimal.NewFromInt(600)
	card := decimal.NewFromInt(400)
	resp := postJSON(t, srv.URL+"/api/entries", api.EntryRequest{
		BranchID:  "branch-x",
		Kind:      "sale",
		Date:      saleDate,
		Cash:      &cash,
		Card:      &card,
		Reference: "INV-042",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decode[api.EntryResponse](t, resp)
	assert.NotEmpty(t, body.Entry.ID)
	assert.Equal(t, "sale", body.Entry.Kind)
	assert.True(t, body.Entry.Amount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, body.Entry.CashAmount.Equal(cash))
	require.NotNil(t, body.Receipt)
	assert.True(t, body.Receipt.Amount.Equal(cash), "only the cash split moves the balance")
}

func TestUpdateEntry_MovesBalanceByDifference(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/entries", api.EntryRequest{
		BranchID: "branch-x",
		Kind:     "expense",
		Date:     saleDate,
		Amount:   decimal.NewFromInt(300),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[api.EntryResponse](t, resp)

	raw, err := json.Marshal(api.EntryRequest{
		BranchID: "branch-x",
		Kind:     "expense",
		Date:     saleDate,
		Amount:   decimal.NewFromInt(350),
	})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/entries/"+created.Entry.ID, bytes.NewReader(raw))
	require.NoError(t, err)
	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, putResp.StatusCode)

	updated := decode[api.EntryResponse](t, putResp)
	assert.True(t, updated.Entry.Amount.Equal(decimal.NewFromInt(350)))
	require.NotNil(t, updated.Receipt)
	assert.True(t, updated.Receipt.Amount.Equal(decimal.NewFromInt(-350)), "got %s", updated.Receipt.Amount)
}

func TestDeleteEntry_ReversesEffect(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	cash := decimal.NewFromInt(500)
	resp := postJSON(t, srv.URL+"/api/entries", api.EntryRequest{
		BranchID: "branch-x",
		Kind:     "sale",
		Date:     saleDate,
		Cash:     &cash,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[api.EntryResponse](t, resp)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/entries/"+created.Entry.ID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, delResp.StatusCode)
	delResp.Body.Close()

	balResp, err := http.Get(fmt.Sprintf("%s/api/branches/branch-x/balance?at=%s",
		srv.URL, saleDate.Format(time.RFC3339)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, balResp.StatusCode)
	bal := decode[api.BalanceDTO](t, balResp)
	assert.True(t, bal.Balance.IsZero(), "got %s", bal.Balance)
}

func TestListEntries_FiltersByBranch(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	for _, branch := range []string{"branch-x", "branch-x", "branch-y"} {
		resp := postJSON(t, srv.URL+"/api/entries", api.EntryRequest{
			BranchID: branch,
			Kind:     "expense",
			Date:     saleDate,
			Amount:   decimal.NewFromInt(10),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/api/entries?branch_id=branch-x&from=2024-04-01&to=2024-04-02")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[[]api.EntryDTO](t, resp)
	assert.Len(t, entries, 2)
}

// =============================================================================
// BALANCE
// =============================================================================

func TestGetBalance_CarriesForward(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	cash := decimal.NewFromInt(750)
	resp := postJSON(t, srv.URL+"/api/entries", api.EntryRequest{
		BranchID: "branch-x",
		Kind:     "sale",
		Date:     saleDate,
		Cash:     &cash,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Five days later, nothing recorded in between.
	later := saleDate.AddDate(0, 0, 5)
	balResp, err := http.Get(fmt.Sprintf("%s/api/branches/branch-x/balance?at=%s",
		srv.URL, later.Format(time.RFC3339)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, balResp.StatusCode)

	bal := decode[api.BalanceDTO](t, balResp)
	assert.Equal(t, "branch-x", bal.BranchID)
	assert.True(t, bal.Balance.Equal(cash), "got %s", bal.Balance)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestCreateEntry_ValidationErrors(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	cases := []struct {
		name string
		req  api.EntryRequest
	}{
		{"missing branch", api.EntryRequest{Kind: "expense", Date: saleDate, Amount: decimal.NewFromInt(10)}},
		{"unknown kind", api.EntryRequest{BranchID: "branch-x", Kind: "refund", Date: saleDate, Amount: decimal.NewFromInt(10)}},
		{"zero date", api.EntryRequest{BranchID: "branch-x", Kind: "expense", Amount: decimal.NewFromInt(10)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/entries", tc.req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decode[api.ErrorResponse](t, resp)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestCreateEntry_MalformedBody(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/entries", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateEntry_Unknown_NotFound(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	raw, err := json.Marshal(api.EntryRequest{
		BranchID: "branch-x",
		Kind:     "expense",
		Date:     saleDate,
		Amount:   decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/entries/missing", bytes.NewReader(raw))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListEntries_MissingBranch_Rejected(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/entries")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
