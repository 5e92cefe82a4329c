package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"splid/internal/core"
	"splid/internal/entry"
	"splid/internal/services"
)

type memberResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Initials string `json:"initials,omitempty"`
}

type payerResponse struct {
	ID     string  `json:"id"`
	Amount float64 `json:"amount"`
}

type entryResponse struct {
	ID              string              `json:"id"`
	GroupID         string              `json:"groupId"`
	Title           *string             `json:"title,omitempty"`
	PrimaryPayer    string              `json:"primaryPayer"`
	SecondaryPayers []payerResponse     `json:"secondaryPayers,omitempty"`
	CurrencyCode    string              `json:"currencyCode"`
	Amount          float64             `json:"amount"`
	IsSplitExpense  bool                `json:"isSplitExpense"`
	IsPayment       bool                `json:"isPayment"`
	IsDeleted       bool                `json:"isDeleted"`
	Category        *entry.CategoryView `json:"category,omitempty"`
	CreatedDate     time.Time           `json:"createdDate"`
	PurchasedDate   *time.Time          `json:"purchasedDate,omitempty"`
	Items           []entry.ItemView    `json:"items"`
	Version         int64               `json:"version,omitempty"`
}

func newEntryResponse(e *entry.Entry, version int64) entryResponse {
	var payers []payerResponse
	for _, p := range e.SecondaryPayers() {
		payers = append(payers, payerResponse{ID: p.ID, Amount: p.Amount})
	}
	return entryResponse{
		ID:              e.ID(),
		GroupID:         e.Record().Group.ObjectID,
		Title:           e.Title(),
		PrimaryPayer:    e.PrimaryPayer(),
		SecondaryPayers: payers,
		CurrencyCode:    e.CurrencyCode(),
		Amount:          e.Amount(),
		IsSplitExpense:  e.IsSplitExpense(),
		IsPayment:       e.IsPayment(),
		IsDeleted:       e.IsDeleted(),
		Category:        e.Category(),
		CreatedDate:     e.CreatedDate(),
		PurchasedDate:   e.PurchasedDate(),
		Items:           e.Items(),
		Version:         version,
	}
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.edits.Members(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]memberResponse, len(members))
	for i, m := range members {
		out[i] = memberResponse{ID: m.ID, Name: m.Name, Initials: m.Initials}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.edits.ListEntries(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]entryResponse, len(entries))
	for i, e := range entries {
		out[i] = newEntryResponse(e, 0)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.edits.GetEntry(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEntryResponse(e, 0))
}

func (s *Server) writeCommitted(w http.ResponseWriter, r *http.Request, c services.Committed, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEntryResponse(entry.New(c.Record), c.Version))
}

func (s *Server) handleChangeCurrency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrencyCode string `json:"currencyCode"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.CurrencyCode == "" {
		s.writeError(w, r, badRequest("currencyCode is required"))
		return
	}
	c, err := s.edits.ChangeCurrency(r.Context(), chi.URLParam(r, "entryID"), req.CurrencyCode)
	s.writeCommitted(w, r, c, err)
}

func (s *Server) handleMergeSubItems(w http.ResponseWriter, r *http.Request) {
	c, err := s.edits.MergeSubItems(r.Context(), chi.URLParam(r, "entryID"))
	s.writeCommitted(w, r, c, err)
}

func (s *Server) handleSetAmount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount *float64 `json:"amount"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Amount == nil {
		s.writeError(w, r, badRequest("amount is required"))
		return
	}
	c, err := s.edits.SetAmount(r.Context(), chi.URLParam(r, "entryID"), *req.Amount)
	s.writeCommitted(w, r, c, err)
}

func (s *Server) handleAddSubItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title  string  `json:"title"`
		Amount float64 `json:"amount"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.edits.AddSubItem(r.Context(), chi.URLParam(r, "entryID"), req.Title, req.Amount)
	s.writeCommitted(w, r, c, err)
}

func (s *Server) handleDeleteSubItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, r, badRequest("item index must be an integer"))
		return
	}
	c, err := s.edits.DeleteSubItem(r.Context(), chi.URLParam(r, "entryID"), index)
	s.writeCommitted(w, r, c, err)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	c, err := s.edits.SetDeleted(r.Context(), chi.URLParam(r, "entryID"), true)
	s.writeCommitted(w, r, c, err)
}

// parseItem parses an optional item index; it defaults to 0.
func parseItem(v *int) (int, error) {
	if v == nil {
		return 0, nil
	}
	if *v < 0 {
		return 0, core.ErrItemOutOfRange
	}
	return *v, nil
}
