package httpapi

import (
	"fmt"
	"net/http"

	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/internal/service/knowledge"
)

type rejectRequest struct {
	Reason string `json:"reason"`
}

type enhanceRequest struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

type enhanceResponse struct {
	Content string `json:"content"`
}

func (a *API) submitMaterial(w http.ResponseWriter, r *http.Request) {
	var in knowledge.SubmitInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := a.knowledge.Submit(r.Context(), subjectFrom(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) listMaterials(w http.ResponseWriter, r *http.Request) {
	status := core.MaterialStatus(r.URL.Query().Get("status"))
	switch status {
	case "", core.MaterialPending, core.MaterialApproved, core.MaterialRejected:
	default:
		writeError(w, r, fmt.Errorf("%w: unknown status %q", core.ErrInvalidInput, status))
		return
	}

	list, err := a.knowledge.List(r.Context(), status, queryLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getMaterial(w http.ResponseWriter, r *http.Request) {
	m, err := a.knowledge.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) approveMaterial(w http.ResponseWriter, r *http.Request) {
	res, err := a.knowledge.Approve(r.Context(), subjectFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) rejectMaterial(w http.ResponseWriter, r *http.Request) {
	var in rejectRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := a.knowledge.Reject(r.Context(), subjectFrom(r.Context()), r.PathValue("id"), in.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) deleteMaterial(w http.ResponseWriter, r *http.Request) {
	if err := a.knowledge.Delete(r.Context(), subjectFrom(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) queryKnowledge(w http.ResponseWriter, r *http.Request) {
	entries, err := a.knowledge.Query(r.Context(), r.URL.Query().Get("topic"), queryLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) enhance(w http.ResponseWriter, r *http.Request) {
	var in enhanceRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.Answer == "" {
		writeError(w, r, fmt.Errorf("%w: empty answer", core.ErrInvalidInput))
		return
	}
	writeJSON(w, http.StatusOK, enhanceResponse{
		Content: a.knowledge.EnhanceResponse(r.Context(), in.Query, in.Answer),
	})
}
