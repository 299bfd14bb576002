package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	applog "mymoney/internal/log"
	"mymoney/internal/services"
	"mymoney/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(":memory:")
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	ledger := services.NewWalletService(repo, nil)
	billing := services.NewCreditCardService(repo)
	recurring := services.NewRecurringService(repo)

	s := NewServer("127.0.0.1:0", ledger, billing, recurring, applog.New(applog.DefaultConfig()))
	ts := httptest.NewServer(s.Server.Handler)
	t.Cleanup(func() {
		ts.Close()
		s.limiter.stop()
	})
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func createWallet(t *testing.T, ts *httptest.Server, name, balance string) walletView {
	t.Helper()
	var w walletView
	status := doJSON(t, ts, http.MethodPost, "/api/wallets",
		map[string]string{"name": name, "type": "CHECKING", "opening_balance": balance}, &w)
	if status != http.StatusCreated {
		t.Fatalf("create wallet %q: status %d", name, status)
	}
	return w
}

func createCategory(t *testing.T, ts *httptest.Server, name string) categoryView {
	t.Helper()
	var c categoryView
	status := doJSON(t, ts, http.MethodPost, "/api/categories", map[string]string{"name": name}, &c)
	if status != http.StatusCreated {
		t.Fatalf("create category %q: status %d", name, status)
	}
	return c
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := ts.Client().Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: status %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestWalletLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := createWallet(t, ts, "Checking", "100.00")
	if w.Balance != "100.00" {
		t.Errorf("opening balance = %s, want 100.00", w.Balance)
	}

	// Duplicate name is a conflict.
	if status := doJSON(t, ts, http.MethodPost, "/api/wallets",
		map[string]string{"name": "Checking", "type": "CHECKING"}, nil); status != http.StatusConflict {
		t.Errorf("duplicate wallet: status %d, want 409", status)
	}

	// Blank name is a validation error.
	if status := doJSON(t, ts, http.MethodPost, "/api/wallets",
		map[string]string{"name": "  ", "type": "CHECKING"}, nil); status != http.StatusUnprocessableEntity {
		t.Errorf("blank wallet name: status %d, want 422", status)
	}

	var updated walletView
	status := doJSON(t, ts, http.MethodPatch, fmt.Sprintf("/api/wallets/%d", w.ID),
		map[string]any{"name": "Main", "balance": "-12.50"}, &updated)
	if status != http.StatusOK {
		t.Fatalf("patch wallet: status %d", status)
	}
	if updated.Name != "Main" || updated.Balance != "-12.50" {
		t.Errorf("patched wallet = %+v", updated)
	}

	if status := doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/wallets/%d", w.ID), nil, nil); status != http.StatusNoContent {
		t.Errorf("delete wallet: status %d, want 204", status)
	}
	if status := doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/wallets/%d", w.ID), nil, nil); status != http.StatusNotFound {
		t.Errorf("get deleted wallet: status %d, want 404", status)
	}
}

func TestTransactionFlow(t *testing.T) {
	ts := newTestServer(t)
	w := createWallet(t, ts, "Checking", "100.00")
	c := createCategory(t, ts, "Groceries")

	var tx transactionView
	status := doJSON(t, ts, http.MethodPost, "/api/transactions", map[string]any{
		"wallet_id":   w.ID,
		"category_id": c.ID,
		"type":        "EXPENSE",
		"amount":      "30.00",
		"description": "weekly shop",
		"date":        "2026-08-10",
	}, &tx)
	if status != http.StatusCreated {
		t.Fatalf("create transaction: status %d", status)
	}
	if tx.Status != "PENDING" {
		t.Errorf("default status = %s, want PENDING", tx.Status)
	}

	// Pending: balance untouched.
	var got walletView
	doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/wallets/%d", w.ID), nil, &got)
	if got.Balance != "100.00" {
		t.Errorf("balance after pending = %s, want 100.00", got.Balance)
	}

	var confirmed transactionView
	if status := doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/transactions/%d/confirm", tx.ID), nil, &confirmed); status != http.StatusOK {
		t.Fatalf("confirm: status %d", status)
	}
	if confirmed.Status != "CONFIRMED" {
		t.Errorf("status after confirm = %s", confirmed.Status)
	}
	doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/wallets/%d", w.ID), nil, &got)
	if got.Balance != "70.00" {
		t.Errorf("balance after confirm = %s, want 70.00", got.Balance)
	}

	// Confirming twice is a conflict.
	if status := doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/transactions/%d/confirm", tx.ID), nil, nil); status != http.StatusConflict {
		t.Errorf("double confirm: status %d, want 409", status)
	}

	// Deleting a confirmed expense restores the balance.
	if status := doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", tx.ID), nil, nil); status != http.StatusNoContent {
		t.Fatalf("delete transaction: status %d", status)
	}
	doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/wallets/%d", w.ID), nil, &got)
	if got.Balance != "100.00" {
		t.Errorf("balance after delete = %s, want 100.00", got.Balance)
	}
}

func TestTransactionValidation(t *testing.T) {
	ts := newTestServer(t)
	w := createWallet(t, ts, "Checking", "0.00")
	c := createCategory(t, ts, "Misc")

	valid := func() map[string]any {
		return map[string]any{
			"wallet_id":   w.ID,
			"category_id": c.ID,
			"type":        "EXPENSE",
			"amount":      "5.00",
			"description": "ok",
			"date":        "2026-08-10",
		}
	}

	tests := []struct {
		name   string
		mutate func(map[string]any)
		want   int
	}{
		{"zero amount", func(m map[string]any) { m["amount"] = "0" }, http.StatusUnprocessableEntity},
		{"malformed amount", func(m map[string]any) { m["amount"] = "abc" }, http.StatusUnprocessableEntity},
		{"blank description", func(m map[string]any) { m["description"] = " " }, http.StatusUnprocessableEntity},
		{"unknown type", func(m map[string]any) { m["type"] = "LOAN" }, http.StatusUnprocessableEntity},
		{"bad date", func(m map[string]any) { m["date"] = "10/08/2026" }, http.StatusUnprocessableEntity},
		{"missing wallet", func(m map[string]any) { m["wallet_id"] = 9999 }, http.StatusNotFound},
		{"unknown field", func(m map[string]any) { m["amnt"] = "5.00" }, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := valid()
			tt.mutate(body)
			if status := doJSON(t, ts, http.MethodPost, "/api/transactions", body, nil); status != tt.want {
				t.Errorf("status = %d, want %d", status, tt.want)
			}
		})
	}
}

func TestTransferEndpoint(t *testing.T) {
	ts := newTestServer(t)
	a := createWallet(t, ts, "Checking", "100.00")
	b := createWallet(t, ts, "Savings", "0.00")

	var tr transferView
	status := doJSON(t, ts, http.MethodPost, "/api/transfers", map[string]any{
		"sender_id":   a.ID,
		"receiver_id": b.ID,
		"amount":      "40.00",
		"date":        "2026-08-10",
		"description": "monthly savings",
	}, &tr)
	if status != http.StatusCreated {
		t.Fatalf("transfer: status %d", status)
	}

	var got walletView
	doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/wallets/%d", a.ID), nil, &got)
	if got.Balance != "60.00" {
		t.Errorf("sender balance = %s, want 60.00", got.Balance)
	}
	doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/wallets/%d", b.ID), nil, &got)
	if got.Balance != "40.00" {
		t.Errorf("receiver balance = %s, want 40.00", got.Balance)
	}

	// Overdraft is a conflict.
	if status := doJSON(t, ts, http.MethodPost, "/api/transfers", map[string]any{
		"sender_id":   a.ID,
		"receiver_id": b.ID,
		"amount":      "1000.00",
		"date":        "2026-08-10",
		"description": "too much",
	}, nil); status != http.StatusConflict {
		t.Errorf("overdraft transfer: status %d, want 409", status)
	}

	var transfers []transferView
	doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/wallets/%d/transfers", a.ID), nil, &transfers)
	if len(transfers) != 1 {
		t.Errorf("transfers listed = %d, want 1", len(transfers))
	}
}

func TestCreditCardEndpoints(t *testing.T) {
	ts := newTestServer(t)
	w := createWallet(t, ts, "Checking", "500.00")
	c := createCategory(t, ts, "Electronics")

	var card cardView
	status := doJSON(t, ts, http.MethodPost, "/api/cards", map[string]any{
		"name":             "Blue Card",
		"operator":         "Visa",
		"max_debt":         "1000.00",
		"closing_day":      25,
		"due_day":          5,
		"last_four_digits": "1234",
	}, &card)
	if status != http.StatusCreated {
		t.Fatalf("create card: status %d", status)
	}

	var debt debtView
	status = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/cards/%d/debts", card.ID), map[string]any{
		"category_id":   c.ID,
		"register_date": "2026-08-10",
		"total_amount":  "300.00",
		"installments":  3,
		"description":   "laptop",
		"first_invoice": "2026-09",
	}, &debt)
	if status != http.StatusCreated {
		t.Fatalf("register debt: status %d", status)
	}

	var credit struct {
		AvailableCredit string `json:"available_credit"`
	}
	doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/cards/%d/available-credit", card.ID), nil, &credit)
	if credit.AvailableCredit != "700.00" {
		t.Errorf("available credit = %s, want 700.00", credit.AvailableCredit)
	}

	var invoice invoiceView
	doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/cards/%d/invoices/2026-09", card.ID), nil, &invoice)
	if invoice.Total != "100.00" || invoice.Unpaid != "100.00" {
		t.Errorf("invoice = total %s unpaid %s, want 100.00 both", invoice.Total, invoice.Unpaid)
	}
	if len(invoice.Payments) != 1 {
		t.Fatalf("invoice payments = %d, want 1", len(invoice.Payments))
	}

	var payResult struct {
		Paid string `json:"paid"`
	}
	status = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/cards/%d/invoices/2026-09/pay", card.ID),
		map[string]any{"wallet_id": w.ID}, &payResult)
	if status != http.StatusOK {
		t.Fatalf("pay invoice: status %d", status)
	}
	if payResult.Paid != "100.00" {
		t.Errorf("paid = %s, want 100.00", payResult.Paid)
	}

	var got walletView
	doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/wallets/%d", w.ID), nil, &got)
	if got.Balance != "400.00" {
		t.Errorf("wallet after invoice pay = %s, want 400.00", got.Balance)
	}

	// A card with registered debts cannot be deleted.
	if status := doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/cards/%d", card.ID), nil, nil); status != http.StatusConflict {
		t.Errorf("delete card with debts: status %d, want 409", status)
	}

	// A debt with a paid installment is frozen.
	if status := doJSON(t, ts, http.MethodPut, fmt.Sprintf("/api/debts/%d", debt.ID), map[string]any{
		"category_id":   c.ID,
		"register_date": "2026-08-10",
		"total_amount":  "200.00",
		"installments":  2,
		"description":   "laptop",
		"first_invoice": "2026-09",
	}, nil); status != http.StatusConflict {
		t.Errorf("update paid debt: status %d, want 409", status)
	}
}

func TestRecurringEndpoints(t *testing.T) {
	ts := newTestServer(t)
	w := createWallet(t, ts, "Checking", "0.00")
	c := createCategory(t, ts, "Rent")

	var rec recurringView
	status := doJSON(t, ts, http.MethodPost, "/api/recurring", map[string]any{
		"wallet_id":   w.ID,
		"category_id": c.ID,
		"type":        "EXPENSE",
		"amount":      "800.00",
		"description": "rent",
		"frequency":   "MONTHLY",
		"start_date":  "2026-01-01",
	}, &rec)
	if status != http.StatusCreated {
		t.Fatalf("create recurring: status %d", status)
	}
	if rec.Status != "ACTIVE" {
		t.Errorf("new template status = %s, want ACTIVE", rec.Status)
	}

	var stopped recurringView
	if status := doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/recurring/%d/stop", rec.ID), nil, &stopped); status != http.StatusOK {
		t.Fatalf("stop recurring: status %d", status)
	}
	if stopped.Status != "ENDED" {
		t.Errorf("stopped status = %s, want ENDED", stopped.Status)
	}
	if status := doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/recurring/%d/stop", rec.ID), nil, nil); status != http.StatusConflict {
		t.Errorf("second stop: status %d, want 409", status)
	}

	// End date before start date.
	if status := doJSON(t, ts, http.MethodPost, "/api/recurring", map[string]any{
		"wallet_id":   w.ID,
		"category_id": c.ID,
		"type":        "EXPENSE",
		"amount":      "10.00",
		"description": "backwards",
		"frequency":   "WEEKLY",
		"start_date":  "2026-05-01",
		"end_date":    "2026-04-01",
	}, nil); status != http.StatusUnprocessableEntity {
		t.Errorf("inverted range: status %d, want 422", status)
	}
}

func TestForeseenBalanceEndpoint(t *testing.T) {
	ts := newTestServer(t)
	w := createWallet(t, ts, "Checking", "100.00")
	c := createCategory(t, ts, "Misc")

	add := func(txType, amount, status string) {
		t.Helper()
		if got := doJSON(t, ts, http.MethodPost, "/api/transactions", map[string]any{
			"wallet_id":   w.ID,
			"category_id": c.ID,
			"type":        txType,
			"status":      status,
			"amount":      amount,
			"description": "fb",
			"date":        "2026-08-15",
		}, nil); got != http.StatusCreated {
			t.Fatalf("add %s %s: status %d", txType, amount, got)
		}
	}
	add("INCOME", "50.00", "PENDING")
	add("EXPENSE", "20.00", "PENDING")
	add("EXPENSE", "5.00", "CONFIRMED")

	var fb struct {
		ForeseenBalance string `json:"foreseen_balance"`
	}
	doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/wallets/%d/foreseen-balance?month=2026-08", w.ID), nil, &fb)
	// 95 confirmed + 50 pending income - 20 pending expense.
	if fb.ForeseenBalance != "125.00" {
		t.Errorf("foreseen balance = %s, want 125.00", fb.ForeseenBalance)
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	ts := newTestServer(t)

	var lastStatus int
	for i := 0; i < requestsPerMinute+5; i++ {
		status := doJSON(t, ts, http.MethodPost, "/api/categories",
			map[string]string{"name": fmt.Sprintf("cat-%d", i)}, nil)
		lastStatus = status
		if status == http.StatusTooManyRequests {
			break
		}
	}
	if lastStatus != http.StatusTooManyRequests {
		t.Errorf("rate limit never tripped, last status %d", lastStatus)
	}
}

func TestErrorBodyShape(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.Client().Get(ts.URL + "/api/wallets/42")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var body apiError
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error == "" {
		t.Error("error body has empty message")
	}
}
