package http

import (
	"net/http"
	"time"

	"mymoney/internal/core"
)

type recurringView struct {
	ID            int64   `json:"id"`
	WalletID      int64   `json:"wallet_id"`
	CategoryID    int64   `json:"category_id"`
	Type          string  `json:"type"`
	Amount        string  `json:"amount"`
	Description   string  `json:"description"`
	Frequency     string  `json:"frequency"`
	StartDate     string  `json:"start_date"`
	EndDate       *string `json:"end_date"`
	Status        string  `json:"status"`
	LastGenerated *string `json:"last_generated"`
}

func toRecurringView(r core.RecurringTransaction) recurringView {
	view := recurringView{
		ID:          r.ID,
		WalletID:    r.WalletID,
		CategoryID:  r.CategoryID,
		Type:        string(r.Type),
		Amount:      r.Amount.String(),
		Description: r.Description,
		Frequency:   string(r.Frequency),
		StartDate:   r.StartDate.Format(time.RFC3339),
		Status:      string(r.Status),
	}
	if r.EndDate != nil {
		end := r.EndDate.Format(time.RFC3339)
		view.EndDate = &end
	}
	if r.LastGenerated != nil {
		last := r.LastGenerated.Format(time.RFC3339)
		view.LastGenerated = &last
	}
	return view
}

type recurringRequest struct {
	WalletID    int64  `json:"wallet_id"`
	CategoryID  int64  `json:"category_id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Frequency   string `json:"frequency"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

func (req recurringRequest) toDomain() (core.RecurringTransaction, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	end, err := parseOptionalDate(req.EndDate)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	return core.RecurringTransaction{
		WalletID:    req.WalletID,
		CategoryID:  req.CategoryID,
		Type:        core.TransactionType(req.Type),
		Amount:      amount,
		Description: req.Description,
		Frequency:   core.Frequency(req.Frequency),
		StartDate:   start,
		EndDate:     end,
	}, nil
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	template, err := req.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.recurring.CreateRecurring(r.Context(), template)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecurringView(created))
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	templates, err := s.recurring.ListRecurring(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]recurringView, 0, len(templates))
	for _, t := range templates {
		views = append(views, toRecurringView(t))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	template, err := s.recurring.GetRecurring(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecurringView(template))
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req recurringRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	template, err := req.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}
	template.ID = id
	if err := s.recurring.UpdateRecurring(r.Context(), template); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.recurring.GetRecurring(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecurringView(updated))
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.recurring.DeleteRecurring(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStopRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.recurring.StopRecurring(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	template, err := s.recurring.GetRecurring(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecurringView(template))
}
