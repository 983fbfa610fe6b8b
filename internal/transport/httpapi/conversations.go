package httpapi

import (
	"net/http"
	"strconv"

	"github.com/sandevgo/tuskchat/internal/service/chat"
)

type updateConversationRequest struct {
	Title    *string `json:"title"`
	Mode     *string `json:"mode"`
	Provider *string `json:"provider"`
	Model    *string `json:"model"`
}

func (a *API) createConversation(w http.ResponseWriter, r *http.Request) {
	var in chat.CreateInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	conv, err := a.chat.Create(r.Context(), subjectFrom(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (a *API) listConversations(w http.ResponseWriter, r *http.Request) {
	archived, _ := strconv.ParseBool(r.URL.Query().Get("archived"))
	list, err := a.chat.List(r.Context(), subjectFrom(r.Context()), archived)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := a.chat.Get(r.Context(), subjectFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (a *API) updateConversation(w http.ResponseWriter, r *http.Request) {
	var in updateConversationRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, subject, id := r.Context(), subjectFrom(r.Context()), r.PathValue("id")
	conv, err := a.chat.Get(ctx, subject, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if in.Title != nil {
		if conv, err = a.chat.Rename(ctx, subject, id, *in.Title); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if in.Mode != nil {
		if conv, err = a.chat.SetMode(ctx, subject, id, *in.Mode); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if in.Provider != nil || in.Model != nil {
		provider, model := conv.Provider, conv.Model
		if in.Provider != nil {
			provider = *in.Provider
		}
		if in.Model != nil {
			model = *in.Model
		}
		if conv, err = a.chat.SetModel(ctx, subject, id, provider, model); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, conv)
}

func (a *API) deleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := a.chat.Delete(r.Context(), subjectFrom(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) archiveConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := a.chat.Archive(r.Context(), subjectFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs, err := a.chat.Messages(r.Context(), subjectFrom(r.Context()), r.PathValue("id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}
