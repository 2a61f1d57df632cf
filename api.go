package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPerPage = 12
	maxPerPage     = 100
)

// api wires the HTTP surface to the refresh pipeline.
type api struct {
	addr            string
	store           statsStore
	cache           *statsCache
	refresher       *refresher
	refreshDeadline time.Duration
	staticDir       string
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]any{
		"ok":    false,
		"error": fmt.Sprintf(format, args...),
	})
}

// statusForError maps pipeline failures onto HTTP statuses.
func statusForError(err error) int {
	var fetchErr *FetchError
	var upstreamErr *UpstreamError
	var persistErr *PersistenceError
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &fetchErr):
		if fetchErr.Kind == fetchKindTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.As(err, &upstreamErr):
		return http.StatusBadGateway
	case errors.As(err, &persistErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func (a *api) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// usersPage is the /api/users response envelope.
type usersPage struct {
	Users         []UserRow `json:"users"`
	Page          int       `json:"page"`
	PerPage       int       `json:"per_page"`
	Total         int       `json:"total"`
	TotalPages    int       `json:"total_pages"`
	LiveRefreshed bool      `json:"live_refreshed"`
	TimedOut      bool      `json:"timed_out"`
}

// getUsersHandler lists persisted users with pagination and allow-listed
// sorting. With live=1 the current page's records are force-refreshed first,
// bounded by the refresh deadline; the listing then reflects whatever landed
// in time (best effort, not a consistency guarantee).
func (a *api) getUsersHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage := queryInt(r, "per_page", defaultPerPage)
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	offset := (page - 1) * perPage

	col, dir := sortColumn(strings.ToLower(q.Get("sort")), strings.ToLower(q.Get("order")))
	live := isTruthy(q.Get("live"))

	var timedOut bool
	if live {
		usernames, err := a.store.pageUsernames(ctx, perPage, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list usernames: %v", err)
			return
		}
		report := a.refresher.refreshBatch(ctx, usernames, a.refreshDeadline)
		timedOut = report.TimedOut
	}

	total, err := a.store.countUsers(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "count users: %v", err)
		return
	}

	users, err := a.store.listUsers(ctx, listQuery{sortCol: col, sortDir: dir, limit: perPage, offset: offset})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list users: %v", err)
		return
	}
	if users == nil {
		users = []UserRow{}
	}

	writeJSON(w, http.StatusOK, usersPage{
		Users:         users,
		Page:          page,
		PerPage:       perPage,
		Total:         total,
		TotalPages:    (total + perPage - 1) / perPage,
		LiveRefreshed: live,
		TimedOut:      timedOut,
	})
}

// getUserHandler serves one user's stats through the read-through cache;
// force=1 bypasses the TTL.
func (a *api) getUserHandler(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	force := isTruthy(r.URL.Query().Get("force"))

	stats, err := a.refresher.getOrRefresh(r.Context(), username, force)
	if err != nil {
		writeError(w, statusForError(err), "%v", err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		UserStats
	}{OK: true, UserStats: stats})
}

// uploadHandler ingests a newline-separated username list (form field
// "usernames") and fetches each one, reporting per-username outcomes.
func (a *api) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	text := strings.TrimSpace(r.FormValue("usernames"))
	if text == "" {
		writeError(w, http.StatusBadRequest, "no usernames provided")
		return
	}

	var usernames []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			usernames = append(usernames, line)
		}
	}

	report := a.refresher.bulkUpsert(r.Context(), usernames)
	writeJSON(w, http.StatusOK, report)
}

// refreshAllHandler kicks off a background sweep over every persisted user.
func (a *api) refreshAllHandler(w http.ResponseWriter, r *http.Request) {
	err := a.refresher.refreshAll(r.Context())
	switch {
	case errors.Is(err, ErrSweepRunning):
		writeError(w, http.StatusConflict, "%v", err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "%v", err)
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "message": "refresh started"})
	}
}

func (a *api) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	deleted, err := a.store.deleteUser(r.Context(), username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete user: %v", err)
		return
	}
	a.cache.invalidate(cacheKey(username))

	if !deleted {
		writeError(w, http.StatusNotFound, "user %q not found", username)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": fmt.Sprintf("user %q deleted", username),
	})
}

func (a *api) deleteAllHandler(w http.ResponseWriter, r *http.Request) {
	count, err := a.store.deleteAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete all users: %v", err)
		return
	}
	a.cache.invalidatePrefix(cacheKeyPrefix)

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"deleted": count,
		"message": fmt.Sprintf("all users deleted, %d records removed", count),
	})
}

func (a *api) debugDBHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.store.ping(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "msg": "connected to database"})
}

func (a *api) indexHandler(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(a.staticDir, "index.html"))
}

func (a *api) adminPageHandler(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(a.staticDir, "admin.html"))
}
