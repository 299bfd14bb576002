package http

import (
	"net/http"
	"time"

	"mymoney/internal/core"
	"mymoney/internal/services"
)

type cardView struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Operator       string `json:"operator"`
	MaxDebt        string `json:"max_debt"`
	ClosingDay     int    `json:"closing_day"`
	DueDay         int    `json:"due_day"`
	LastFourDigits string `json:"last_four_digits"`
	Archived       bool   `json:"archived"`
}

func toCardView(c core.CreditCard) cardView {
	return cardView{
		ID:             c.ID,
		Name:           c.Name,
		Operator:       c.Operator,
		MaxDebt:        c.MaxDebt.String(),
		ClosingDay:     c.ClosingDay,
		DueDay:         c.DueDay,
		LastFourDigits: c.LastFourDigits,
		Archived:       c.Archived,
	}
}

type debtView struct {
	ID           int64  `json:"id"`
	CardID       int64  `json:"card_id"`
	CategoryID   int64  `json:"category_id"`
	RegisterDate string `json:"register_date"`
	TotalAmount  string `json:"total_amount"`
	Installments int    `json:"installments"`
	Description  string `json:"description"`
}

func toDebtView(d core.CreditCardDebt) debtView {
	return debtView{
		ID:           d.ID,
		CardID:       d.CardID,
		CategoryID:   d.CategoryID,
		RegisterDate: d.RegisterDate.Format(time.RFC3339),
		TotalAmount:  d.TotalAmount.String(),
		Installments: d.Installments,
		Description:  d.Description,
	}
}

type paymentView struct {
	ID           int64  `json:"id"`
	DebtID       int64  `json:"debt_id"`
	InvoiceMonth string `json:"invoice_month"`
	Installment  int    `json:"installment"`
	Amount       string `json:"amount"`
	WalletID     *int64 `json:"wallet_id"`
}

type invoiceView struct {
	CardID   int64         `json:"card_id"`
	Month    string        `json:"month"`
	Payments []paymentView `json:"payments"`
	Total    string        `json:"total"`
	Unpaid   string        `json:"unpaid"`
}

func toInvoiceView(inv services.Invoice) invoiceView {
	payments := make([]paymentView, 0, len(inv.Payments))
	for _, p := range inv.Payments {
		payments = append(payments, paymentView{
			ID:           p.ID,
			DebtID:       p.DebtID,
			InvoiceMonth: p.InvoiceMonth.String(),
			Installment:  p.Installment,
			Amount:       p.Amount.String(),
			WalletID:     p.WalletID,
		})
	}
	return invoiceView{
		CardID:   inv.CardID,
		Month:    inv.Month.String(),
		Payments: payments,
		Total:    inv.Total.String(),
		Unpaid:   inv.Unpaid.String(),
	}
}

type cardRequest struct {
	Name           string `json:"name"`
	Operator       string `json:"operator"`
	MaxDebt        string `json:"max_debt"`
	ClosingDay     int    `json:"closing_day"`
	DueDay         int    `json:"due_day"`
	LastFourDigits string `json:"last_four_digits"`
}

func (req cardRequest) toDomain() (core.CreditCard, error) {
	maxDebt, err := parseAmount(req.MaxDebt)
	if err != nil {
		return core.CreditCard{}, err
	}
	return core.CreditCard{
		Name:           req.Name,
		Operator:       req.Operator,
		MaxDebt:        maxDebt,
		ClosingDay:     req.ClosingDay,
		DueDay:         req.DueDay,
		LastFourDigits: req.LastFourDigits,
	}, nil
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	card, err := req.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.billing.CreateCreditCard(r.Context(), card)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCardView(created))
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.billing.ListCreditCards(r.Context(), queryBool(r, "include_archived"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]cardView, 0, len(cards))
	for _, c := range cards {
		views = append(views, toCardView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	card, err := s.billing.GetCreditCard(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardView(card))
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req cardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	card, err := req.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}
	card.ID = id
	if err := s.billing.UpdateCreditCard(r.Context(), card); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.billing.GetCreditCard(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardView(updated))
}

func (s *Server) handleArchiveCard(w http.ResponseWriter, r *http.Request) {
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
		if err := s.billing.SetCreditCardArchived(r.Context(), id, *req.Archived); err != nil {
			writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.billing.DeleteCreditCard(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAvailableCredit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	available, err := s.billing.AvailableCredit(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		CardID          int64  `json:"card_id"`
		AvailableCredit string `json:"available_credit"`
	}{CardID: id, AvailableCredit: available.String()})
}

type debtRequest struct {
	CategoryID   int64  `json:"category_id"`
	RegisterDate string `json:"register_date"`
	TotalAmount  string `json:"total_amount"`
	Installments int    `json:"installments"`
	Description  string `json:"description"`
	FirstInvoice string `json:"first_invoice"`
}

func (req debtRequest) toDomain(cardID int64) (core.CreditCardDebt, core.YearMonth, error) {
	amount, err := parseAmount(req.TotalAmount)
	if err != nil {
		return core.CreditCardDebt{}, core.YearMonth{}, err
	}
	registerDate, err := parseDate(req.RegisterDate)
	if err != nil {
		return core.CreditCardDebt{}, core.YearMonth{}, err
	}
	firstInvoice, err := core.ParseYearMonth(req.FirstInvoice)
	if err != nil {
		return core.CreditCardDebt{}, core.YearMonth{}, err
	}
	return core.CreditCardDebt{
		CardID:       cardID,
		CategoryID:   req.CategoryID,
		RegisterDate: registerDate,
		TotalAmount:  amount,
		Installments: req.Installments,
		Description:  req.Description,
	}, firstInvoice, nil
}

func (s *Server) handleRegisterDebt(w http.ResponseWriter, r *http.Request) {
	cardID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req debtRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	debt, firstInvoice, err := req.toDomain(cardID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.billing.RegisterDebt(r.Context(), debt, firstInvoice)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDebtView(created))
}

func (s *Server) handleListDebts(w http.ResponseWriter, r *http.Request) {
	cardID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	debts, err := s.billing.ListDebts(r.Context(), cardID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]debtView, 0, len(debts))
	for _, d := range debts {
		views = append(views, toDebtView(d))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetDebt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	debt, err := s.billing.GetDebt(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtView(debt))
}

// handleUpdateDebt reshapes an unpaid debt; the card it belongs to never
// changes.
func (s *Server) handleUpdateDebt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req debtRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	debt, firstInvoice, err := req.toDomain(0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	debt.ID = id
	if err := s.billing.UpdateDebt(r.Context(), debt, firstInvoice); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.billing.GetDebt(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtView(updated))
}

func (s *Server) handleDeleteDebt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.billing.DeleteDebt(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	cardID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := core.ParseYearMonth(r.PathValue("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	invoice, err := s.billing.GetInvoice(r.Context(), cardID, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceView(invoice))
}

func (s *Server) handlePayInvoice(w http.ResponseWriter, r *http.Request) {
	cardID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := core.ParseYearMonth(r.PathValue("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		WalletID int64 `json:"wallet_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	paid, err := s.billing.PayInvoice(r.Context(), cardID, month, req.WalletID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		CardID   int64  `json:"card_id"`
		Month    string `json:"month"`
		WalletID int64  `json:"wallet_id"`
		Paid     string `json:"paid"`
	}{CardID: cardID, Month: month.String(), WalletID: req.WalletID, Paid: paid.String()})
}
