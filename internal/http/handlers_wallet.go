package http

import (
	"net/http"
	"time"

	"mymoney/internal/core"
)

type walletView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Balance  string `json:"balance"`
	Archived bool   `json:"archived"`
}

func toWalletView(w core.Wallet) walletView {
	return walletView{ID: w.ID, Name: w.Name, Type: w.Type, Balance: w.Balance.String(), Archived: w.Archived}
}

type categoryView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
}

type transactionView struct {
	ID          int64  `json:"id"`
	WalletID    int64  `json:"wallet_id"`
	CategoryID  int64  `json:"category_id"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

func toTransactionView(t core.WalletTransaction) transactionView {
	return transactionView{
		ID:          t.ID,
		WalletID:    t.WalletID,
		CategoryID:  t.CategoryID,
		Type:        string(t.Type),
		Status:      string(t.Status),
		Amount:      t.Amount.String(),
		Description: t.Description,
		Date:        t.Date.Format(time.RFC3339),
	}
}

type transferView struct {
	ID          int64  `json:"id"`
	SenderID    int64  `json:"sender_id"`
	ReceiverID  int64  `json:"receiver_id"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

func toTransferView(t core.Transfer) transferView {
	return transferView{
		ID:          t.ID,
		SenderID:    t.SenderID,
		ReceiverID:  t.ReceiverID,
		Amount:      t.Amount.String(),
		Date:        t.Date.Format(time.RFC3339),
		Description: t.Description,
	}
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string `json:"name"`
		Type           string `json:"type"`
		OpeningBalance string `json:"opening_balance"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	balance := core.Money{}
	if req.OpeningBalance != "" {
		var err error
		if balance, err = parseSignedAmount(req.OpeningBalance); err != nil {
			writeError(w, r, err)
			return
		}
	}
	wallet, err := s.ledger.CreateWallet(r.Context(), req.Name, req.Type, balance)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWalletView(wallet))
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := s.ledger.ListWallets(r.Context(), queryBool(r, "include_archived"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]walletView, 0, len(wallets))
	for _, wallet := range wallets {
		views = append(views, toWalletView(wallet))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	wallet, err := s.ledger.GetWallet(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalletView(wallet))
}

// handleUpdateWallet applies the fields present in the request; absent fields
// are left untouched.
func (s *Server) handleUpdateWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Name     *string `json:"name"`
		Type     *string `json:"type"`
		Balance  *string `json:"balance"`
		Archived *bool   `json:"archived"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	if req.Name != nil {
		if err := s.ledger.RenameWallet(ctx, id, *req.Name); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Type != nil {
		if err := s.ledger.ChangeWalletType(ctx, id, *req.Type); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Balance != nil {
		balance, err := parseSignedAmount(*req.Balance)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.ledger.SetWalletBalance(ctx, id, balance); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Archived != nil {
		if err := s.ledger.SetWalletArchived(ctx, id, *req.Archived); err != nil {
			writeError(w, r, err)
			return
		}
	}
	wallet, err := s.ledger.GetWallet(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalletView(wallet))
}

func (s *Server) handleDeleteWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteWallet(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	category, err := s.ledger.CreateCategory(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, categoryView(category))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.ledger.ListCategories(r.Context(), queryBool(r, "include_archived"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]categoryView, 0, len(categories))
	for _, c := range categories {
		views = append(views, categoryView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Archived *bool `json:"archived"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Archived != nil {
		if err := s.ledger.SetCategoryArchived(r.Context(), id, *req.Archived); err != nil {
			writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type transactionRequest struct {
	WalletID    int64  `json:"wallet_id"`
	CategoryID  int64  `json:"category_id"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

func (req transactionRequest) toDomain() (core.WalletTransaction, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return core.WalletTransaction{}, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return core.WalletTransaction{}, err
	}
	status := core.TransactionStatus(req.Status)
	if req.Status == "" {
		status = core.Pending
	}
	return core.WalletTransaction{
		WalletID:    req.WalletID,
		CategoryID:  req.CategoryID,
		Type:        core.TransactionType(req.Type),
		Status:      status,
		Amount:      amount,
		Description: req.Description,
		Date:        date,
	}, nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := req.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.ledger.AddTransaction(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionView(created))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionView(t))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := req.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}
	t.ID = id
	if err := s.ledger.UpdateTransaction(r.Context(), t); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionView(updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfirmTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.ConfirmTransaction(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionView(t))
}

// handleListTransactions returns the wallet's history, optionally narrowed to
// one month with ?month=YYYY-MM.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var transactions []core.WalletTransaction
	if r.URL.Query().Get("month") != "" {
		month, err := queryMonth(r, "month")
		if err != nil {
			writeError(w, r, err)
			return
		}
		transactions, err = s.ledger.ListTransactionsByMonth(r.Context(), id, month)
		if err != nil {
			writeError(w, r, err)
			return
		}
	} else {
		transactions, err = s.ledger.ListTransactions(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}
	views := make([]transactionView, 0, len(transactions))
	for _, t := range transactions {
		views = append(views, toTransactionView(t))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SenderID    int64  `json:"sender_id"`
		ReceiverID  int64  `json:"receiver_id"`
		Amount      string `json:"amount"`
		Date        string `json:"date"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	transfer, err := s.ledger.Transfer(r.Context(), core.Transfer{
		SenderID:    req.SenderID,
		ReceiverID:  req.ReceiverID,
		Amount:      amount,
		Date:        date,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransferView(transfer))
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	transfers, err := s.ledger.ListTransfers(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]transferView, 0, len(transfers))
	for _, t := range transfers {
		views = append(views, toTransferView(t))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleForeseenBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := queryMonth(r, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}
	balance, err := s.ledger.ForeseenBalance(r.Context(), id, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		WalletID        int64  `json:"wallet_id"`
		Month           string `json:"month"`
		ForeseenBalance string `json:"foreseen_balance"`
	}{WalletID: id, Month: month.String(), ForeseenBalance: balance.String()})
}
