package sales

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/papeleria/papeleria/internal/platform/httpx"
	"github.com/papeleria/papeleria/internal/shared"
)

func newTestServer(t *testing.T) (*httptest.Server, *fixture) {
	t.Helper()
	f := newFixture()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc)
	r := chi.NewRouter()
	r.Route("/api/sales", h.MountRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, f
}

func do(t *testing.T, method, url, body string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHandlerCreateAndFetchSale(t *testing.T) {
	srv, f := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/sales",
		`{"customer_name":"Ana","lines":[{"product_id":1,"quantity":2,"unit_price":"0.01"},{"product_id":2,"quantity":1}]}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[Sale](t, resp)
	require.Equal(t, "5.25", created.Total.StringFixed(2))
	require.Equal(t, int64(8), f.store.StockOf(1))

	resp = do(t, http.MethodGet, srv.URL+"/api/sales/"+itoa(created.ID)+"/lines", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	lines := decode[[]Line](t, resp)
	require.Len(t, lines, 2)
	require.Equal(t, "3.00", lines[0].Subtotal.StringFixed(2))
	require.Equal(t, "Cuaderno", lines[0].ProductName)

	resp = do(t, http.MethodGet, srv.URL+"/api/sales?status=Completed", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[listResponse](t, resp)
	require.Len(t, page.Items, 1)
	require.Equal(t, 1, page.Pagination.Total)
}

func TestHandlerInsufficientStockProblem(t *testing.T) {
	srv, f := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/sales",
		`{"customer_name":"Ana","lines":[{"product_id":1,"quantity":1},{"product_id":2,"quantity":50}]}`, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	problem := decode[httpx.ProblemDetail](t, resp)
	require.Equal(t, shared.KindInsufficientStock, problem.Kind)
	require.True(t, problem.Aborted)
	require.Contains(t, problem.Detail, "Boligrafo")
	require.Equal(t, int64(10), f.store.StockOf(1))
}

func TestHandlerValidationProblem(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/sales", `{"customer_name":"","lines":[{"product_id":1,"quantity":0}]}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	problem := decode[httpx.ProblemDetail](t, resp)
	require.Equal(t, shared.KindInvalidInput, problem.Kind)
	fields := []string{}
	for _, fe := range problem.Errors {
		fields = append(fields, fe.Field)
	}
	require.ElementsMatch(t, []string{"customer_name", "lines[0].quantity"}, fields)

	resp = do(t, http.MethodPost, srv.URL+"/api/sales", `{"customer_name":`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerIdempotentCreate(t *testing.T) {
	srv, f := newTestServer(t)
	body := `{"customer_name":"Ana","lines":[{"product_id":1,"quantity":1}]}`
	key := map[string]string{IdempotencyHeader: "abc-123"}

	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/api/sales", body, key).StatusCode)
	resp := do(t, http.MethodPost, srv.URL+"/api/sales", body, key)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, shared.KindDuplicate, decode[httpx.ProblemDetail](t, resp).Kind)
	require.Equal(t, int64(9), f.store.StockOf(1))
}

func TestHandlerStatusAndDelete(t *testing.T) {
	srv, f := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/sales", `{"customer_name":"Ana","status":"Pending","lines":[{"product_id":2,"quantity":2}]}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := itoa(decode[Sale](t, resp).ID)

	resp = do(t, http.MethodPost, srv.URL+"/api/sales/"+id+"/lines", `{"product_id":1,"quantity":1}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "6.00", decode[Sale](t, resp).Total.StringFixed(2))

	resp = do(t, http.MethodPatch, srv.URL+"/api/sales/"+id+"/status", `{"status":"Completed"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPatch, srv.URL+"/api/sales/"+id+"/status", `{"status":"Pending"}`, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, shared.KindInvalidState, decode[httpx.ProblemDetail](t, resp).Kind)

	resp = do(t, http.MethodDelete, srv.URL+"/api/sales/"+id, "", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, int64(5), f.store.StockOf(2))
	require.Equal(t, int64(10), f.store.StockOf(1))

	resp = do(t, http.MethodGet, srv.URL+"/api/sales/"+id, "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/sales/abc", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
