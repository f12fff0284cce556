package hub

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/auth"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/broker"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/errs"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/store"
)

// HTTPServer is the CRUD boundary surface: notification/capture reads
// and deletes, push-token registration, the settings singleton, and
// short-lived TURN credentials for viewers.
type HTTPServer struct {
	store      *store.Store
	auth       *auth.Decoder
	turnHost   string
	turnSecret string
}

func NewHTTPServer(s *store.Store, decoder *auth.Decoder, turnHost, turnSecret string) *HTTPServer {
	return &HTTPServer{store: s, auth: decoder, turnHost: turnHost, turnSecret: turnSecret}
}

// Register mounts every HTTP route on mux.
func (h *HTTPServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/notifications", h.withUser(h.listNotifications))
	mux.HandleFunc("GET /api/notifications/count", h.withUser(h.countNotifications))
	mux.HandleFunc("DELETE /api/notifications/{id}", h.withUser(h.deleteNotification))
	mux.HandleFunc("POST /api/notifications/delete", h.withUser(h.deleteNotifications))
	mux.HandleFunc("GET /api/captures", h.withUser(h.listCaptures))
	mux.HandleFunc("POST /api/devices", h.withUser(h.registerDevice))
	mux.HandleFunc("GET /api/settings", h.withUser(h.getSettings))
	mux.HandleFunc("PUT /api/settings", h.withUser(h.updateSettings))
	mux.HandleFunc("GET /api/turn-credentials", h.withUser(h.turnCredentials))
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID uint)

func (h *HTTPServer) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, errs.Auth("missing bearer token", nil))
			return
		}
		userID, err := h.auth.Authenticate(token)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, userID)
	}
}

func listParams(r *http.Request) store.ListParams {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	return store.ListParams{
		Page:      page,
		PageSize:  pageSize,
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}
}

func (h *HTTPServer) listNotifications(w http.ResponseWriter, r *http.Request, userID uint) {
	rows, err := h.store.ListNotifications(userID, listParams(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *HTTPServer) countNotifications(w http.ResponseWriter, _ *http.Request, userID uint) {
	count, err := h.store.CountNotifications(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"hits": count})
}

func (h *HTTPServer) deleteNotification(w http.ResponseWriter, r *http.Request, userID uint) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, errs.Validation("malformed notification id", err))
		return
	}
	if err := h.store.DeleteNotificationsOwned(userID, []uint{uint(id)}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPServer) deleteNotifications(w http.ResponseWriter, r *http.Request, userID uint) {
	var body struct {
		IDs []uint `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.IDs) == 0 {
		writeError(w, errs.Validation("expected a non-empty ids list", err))
		return
	}
	if err := h.store.DeleteNotificationsOwned(userID, body.IDs); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPServer) listCaptures(w http.ResponseWriter, r *http.Request, userID uint) {
	rows, err := h.store.ListCaptures(userID, listParams(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *HTTPServer) registerDevice(w http.ResponseWriter, r *http.Request, userID uint) {
	var body struct {
		FCMToken         string `json:"fcm_token"`
		PhysicalDeviceID string `json:"physical_device_id"`
		DeviceType       string `json:"device_type"`
		AppVersion       string `json:"app_version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.Validation("malformed device registration", err))
		return
	}
	if body.FCMToken == "" || body.PhysicalDeviceID == "" {
		writeError(w, errs.Validation("fcm_token and physical_device_id are required", nil))
		return
	}
	device := &store.FCMDevice{
		UserID:           userID,
		FCMToken:         body.FCMToken,
		PhysicalDeviceID: body.PhysicalDeviceID,
		DeviceType:       body.DeviceType,
		AppVersion:       body.AppVersion,
	}
	if err := h.store.UpsertFCMDevice(device); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPServer) getSettings(w http.ResponseWriter, _ *http.Request, _ uint) {
	settings, err := h.store.GetSettings()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *HTTPServer) updateSettings(w http.ResponseWriter, r *http.Request, _ uint) {
	var settings store.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, errs.Validation("malformed settings", err))
		return
	}
	if err := h.store.UpdateSettings(&settings); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *HTTPServer) turnCredentials(w http.ResponseWriter, _ *http.Request, userID uint) {
	username, password := broker.TurnCredentials(h.turnSecret, strconv.FormatUint(uint64(userID), 10), 24*time.Hour)
	writeJSON(w, http.StatusOK, map[string]string{
		"host":     h.turnHost,
		"username": username,
		"password": password,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[hub] encode response: %v", err)
	}
}

// writeError maps error kinds to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.AuthErrorKind:
		status = http.StatusUnauthorized
	case errs.NotFoundKind:
		status = http.StatusNotFound
	case errs.ValidationErrorKind:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Printf("[hub] request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
