package httpapi

import (
	"net/http"
	"strconv"

	"github.com/sandevgo/tuskchat/internal/service/memory"
)

const defaultListLimit = 50

type pinRequest struct {
	Pinned *bool `json:"pinned"`
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func (a *API) createMemory(w http.ResponseWriter, r *http.Request) {
	var in memory.CreateItem
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := a.items.Create(r.Context(), subjectFrom(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) listMemories(w http.ResponseWriter, r *http.Request) {
	items, err := a.items.List(r.Context(), subjectFrom(r.Context()), queryLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) searchMemories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := a.items.Search(r.Context(), subjectFrom(r.Context()), q.Get("query"), queryLimit(r), q.Get("contentType"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) getMemory(w http.ResponseWriter, r *http.Request) {
	item, err := a.items.Get(r.Context(), subjectFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) deleteMemory(w http.ResponseWriter, r *http.Request) {
	if err := a.items.Delete(r.Context(), subjectFrom(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pinMemory pins the item. A body of {"pinned": false} unpins it.
func (a *API) pinMemory(w http.ResponseWriter, r *http.Request) {
	var in pinRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	pinned := in.Pinned == nil || *in.Pinned

	item, err := a.items.SetPinned(r.Context(), subjectFrom(r.Context()), r.PathValue("id"), pinned)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
