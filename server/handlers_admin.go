package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/onnwee/chatbot/command"
	"github.com/onnwee/chatbot/store"
)

type adminRequest struct {
	Source string `json:"source"`
	UserID string `json:"user_id"`
}

// HandleAdmins lists, adds and removes admins of one source.
//
//	GET    /admin/admins?source=discord
//	POST   /admin/admins {"source":"discord","user_id":"..."}
//	DELETE /admin/admins?source=discord&user_id=...
func (h *Handlers) HandleAdmins(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		src, err := parseSource(r.URL.Query().Get("source"))
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		ids, err := h.store.ListAdmins(ctx, src)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"source": src, "admins": ids})

	case http.MethodPost:
		var req adminRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeStoreError(w, r, err)
			return
		}
		src, id, err := adminTarget(req.Source, req.UserID)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		added, err := h.store.AddAdmin(ctx, src, id)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		status := http.StatusOK
		if added {
			status = http.StatusCreated
		}
		writeJSON(w, status, map[string]any{"source": src, "user_id": id, "added": added})

	case http.MethodDelete:
		q := r.URL.Query()
		src, id, err := adminTarget(q.Get("source"), q.Get("user_id"))
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		if err := h.store.RemoveAdmin(ctx, src, id); err != nil {
			writeStoreError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, "GET, POST, DELETE")
	}
}

func adminTarget(source, userID string) (command.Source, string, error) {
	src, err := parseSource(source)
	if err != nil {
		return "", "", err
	}
	userID = strings.TrimSpace(userID)
	if err := command.ValidateUserID(src, userID); err != nil {
		return "", "", fmt.Errorf("%w: %v", command.ErrUsage, err)
	}
	return src, userID, nil
}

type commandRequest struct {
	Source  string `json:"source"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

type commandResponse struct {
	Source  command.Source `json:"source"`
	Name    string         `json:"name"`
	Content string         `json:"content"`
}

// HandleCommands manages custom commands of one source.
//
//	GET    /admin/commands?source=twitch
//	POST   /admin/commands {"source","name","content"}   create
//	PUT    /admin/commands {"source","name","content"}   update
//	DELETE /admin/commands?source=twitch&name=hello
func (h *Handlers) HandleCommands(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		src, err := parseSource(r.URL.Query().Get("source"))
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		cmds, err := store.CollectCommands(h.store.ListCommands(ctx, src))
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		out := make([]commandResponse, 0, len(cmds))
		for _, c := range cmds {
			out = append(out, commandResponse{Source: c.Source, Name: c.Name, Content: c.Content})
		}
		writeJSON(w, http.StatusOK, map[string]any{"source": src, "commands": out})

	case http.MethodPost, http.MethodPut:
		var req commandRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeStoreError(w, r, err)
			return
		}
		src, err := parseSource(req.Source)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		name := command.NormalizeName(req.Name)
		if strings.TrimSpace(req.Content) == "" {
			writeStoreError(w, r, fmt.Errorf("%w: content is required", command.ErrUsage))
			return
		}
		resp := commandResponse{Source: src, Name: name, Content: req.Content}
		if r.Method == http.MethodPost {
			if err := h.store.CreateCommand(ctx, src, name, req.Content); err != nil {
				writeStoreError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, resp)
			return
		}
		if err := h.store.UpdateCommand(ctx, src, name, req.Content); err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)

	case http.MethodDelete:
		q := r.URL.Query()
		src, err := parseSource(q.Get("source"))
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		if err := h.store.DeleteCommand(ctx, src, command.NormalizeName(q.Get("name"))); err != nil {
			writeStoreError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, "GET, POST, PUT, DELETE")
	}
}

type usageResponse struct {
	Kind  command.Kind `json:"kind"`
	Name  string       `json:"name"`
	Count int64        `json:"count"`
}

// HandleStats reports usage for the current month, a given YYYY-MM month or
// all time.
//
//	GET /admin/stats?period=current|total|2024-03
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	ctx := r.Context()
	period := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("period")))

	var (
		label string
		recs  []command.UsageRecord
		err   error
	)
	switch period {
	case "", "current":
		p := command.PeriodOf(h.now())
		label = p.String()
		recs, err = h.store.TopForMonth(ctx, p.Year, p.Month)
	case "total":
		label = "total"
		recs, err = h.store.TopAllTime(ctx)
	default:
		p, perr := command.ParsePeriod(period)
		if perr != nil {
			writeStoreError(w, r, perr)
			return
		}
		label = p.String()
		recs, err = h.store.TopForMonth(ctx, p.Year, p.Month)
	}
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	out := make([]usageResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, usageResponse{Kind: rec.Kind, Name: rec.Name, Count: rec.Count})
	}
	writeJSON(w, http.StatusOK, map[string]any{"period": label, "usage": out})
}
