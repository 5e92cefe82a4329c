package http

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"splid/internal/allocation"
	"splid/internal/entry"
	"splid/internal/log"
	"splid/internal/services"
)

// draft is a cached editing session. mu serializes requests on the same
// draft since allocation.Draft is not safe for concurrent use. closed is set
// under mu once the draft is committed or cancelled; requests that fetched
// it earlier then see it as gone.
type draft struct {
	mu     sync.Mutex
	sess   *services.Session
	closed bool
}

type draftResponse struct {
	ID         string            `json:"id"`
	EntryID    string            `json:"entryId,omitempty"`
	GroupID    string            `json:"groupId"`
	Item       int               `json:"item"`
	Total      float64           `json:"total"`
	Implicit   bool              `json:"implicit"`
	Changed    bool              `json:"changed"`
	Members    []string          `json:"members"`
	Profiteers []allocation.View `json:"profiteers"`
}

func newDraftResponse(id string, sess *services.Session) draftResponse {
	return draftResponse{
		ID:         id,
		EntryID:    sess.EntryID,
		GroupID:    sess.GroupID,
		Item:       sess.Item,
		Total:      sess.Draft.Total(),
		Implicit:   sess.Draft.ShareSet().IsEmpty(),
		Changed:    sess.Draft.Changed(),
		Members:    sess.Draft.Members(),
		Profiteers: sess.Draft.Profiteers(),
	}
}

type commitResponse struct {
	Entry   entryResponse `json:"entry"`
	Created bool          `json:"created"`
}

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID string   `json:"groupId"`
		EntryID string   `json:"entryId"`
		Item    *int     `json:"item"`
		Amount  *float64 `json:"amount"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	var (
		sess *services.Session
		err  error
	)
	switch {
	case req.EntryID != "":
		var item int
		if item, err = parseItem(req.Item); err == nil {
			sess, err = s.edits.OpenDraft(r.Context(), req.GroupID, req.EntryID, item)
		}
	case req.GroupID != "":
		if req.Amount == nil {
			err = badRequest("amount is required for a new expense")
			break
		}
		sess, err = s.edits.NewDraft(r.Context(), req.GroupID, *req.Amount)
	default:
		err = badRequest("entryId or groupId is required")
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id := uuid.NewString()
	s.drafts.Set(id, &draft{sess: sess})
	log.FromContext(r.Context()).WithComponent(log.ComponentDraft).DebugContext(r.Context(), "Draft opened",
		log.NewFields().WithDraft(id).WithEntry(sess.EntryID, sess.GroupID).ToSlice()...)

	writeJSON(w, http.StatusCreated, newDraftResponse(id, sess))
}

// withDraft runs fn on the draft named in the URL while holding its lock and
// renders the resulting state.
func (s *Server) withDraft(w http.ResponseWriter, r *http.Request, fn func(*allocation.Draft) error) {
	id := chi.URLParam(r, "draftID")
	d, ok := s.drafts.Get(id)
	if !ok {
		s.writeError(w, r, errDraftNotFound)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		s.writeError(w, r, errDraftNotFound)
		return
	}
	if fn != nil {
		if err := fn(d.sess.Draft); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, newDraftResponse(id, d.sess))
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	s.withDraft(w, r, nil)
}

func (s *Server) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.ID == "" {
		s.writeError(w, r, badRequest("id is required"))
		return
	}
	s.withDraft(w, r, func(d *allocation.Draft) error {
		return d.AddParticipant(req.ID)
	})
}

func (s *Server) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "participantID")
	s.withDraft(w, r, func(d *allocation.Draft) error {
		return d.RemoveParticipant(id)
	})
}

type valueRequest struct {
	Value *float64 `json:"value"`
}

func (s *Server) decodeValue(w http.ResponseWriter, r *http.Request) (float64, bool) {
	var req valueRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return 0, false
	}
	if req.Value == nil {
		s.writeError(w, r, badRequest("value is required"))
		return 0, false
	}
	return *req.Value, true
}

// handleSetPercentage takes a value in [0, 100]. Values outside the range
// leave the draft unchanged.
func (s *Server) handleSetPercentage(w http.ResponseWriter, r *http.Request) {
	value, ok := s.decodeValue(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "participantID")
	s.withDraft(w, r, func(d *allocation.Draft) error {
		return d.SetPercentage(id, value)
	})
}

func (s *Server) handleSetParticipantAmount(w http.ResponseWriter, r *http.Request) {
	value, ok := s.decodeValue(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "participantID")
	s.withDraft(w, r, func(d *allocation.Draft) error {
		return d.SetAmount(id, value)
	})
}

// handleCommitDraft persists the draft and discards it. A draft opened
// without an entry creates a new expense.
func (s *Server) handleCommitDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title        string `json:"title"`
		PrimaryPayer string `json:"primaryPayer"`
	}
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "draftID")
	d, ok := s.drafts.Get(id)
	if !ok {
		s.writeError(w, r, errDraftNotFound)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		s.writeError(w, r, errDraftNotFound)
		return
	}
	created := d.sess.EntryID == ""
	c, err := s.edits.Commit(r.Context(), d.sess, services.CommitOptions{
		Title:        req.Title,
		PrimaryPayer: req.PrimaryPayer,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d.closed = true
	s.drafts.Delete(id)

	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogEntryCommitted(r.Context(), d.sess.EntryID, d.sess.GroupID, d.sess.Item, c.Version)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, commitResponse{
		Entry:   newEntryResponse(entry.New(c.Record), c.Version),
		Created: created,
	})
}

// handleCancelDraft discards the draft without saving.
func (s *Server) handleCancelDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "draftID")
	d, ok := s.drafts.Get(id)
	if !ok {
		s.writeError(w, r, errDraftNotFound)
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		s.writeError(w, r, errDraftNotFound)
		return
	}
	d.closed = true
	s.drafts.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}
