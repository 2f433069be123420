package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/manpreetbhatti/driftrace/backend/internal/db"
	"github.com/manpreetbhatti/driftrace/backend/internal/room"
	"github.com/manpreetbhatti/driftrace/backend/internal/ws"
)

type API struct {
	hub      *ws.Hub
	registry *room.Registry
	database *db.Database
	logger   *slog.Logger
}

func New(hub *ws.Hub, database *db.Database, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		hub:      hub,
		registry: hub.Registry(),
		database: database,
		logger:   logger,
	}
}

// Router wires every endpoint, the WebSocket upgrade included.
func (a *API) Router() *httprouter.Router {
	router := httprouter.New()

	router.GET("/ws", a.WebSocketHandler)
	router.GET("/health", a.HealthHandler)
	router.GET("/api/stats", a.StatsHandler)
	router.GET("/api/rooms", a.ListRoomsHandler)
	router.GET("/api/rooms/:name", a.GetRoomHandler)
	router.GET("/api/races", a.ListRacesHandler)
	router.GET("/api/races/:id", a.GetRaceHandler)
	router.DELETE("/api/races/:id", a.DeleteRaceHandler)
	router.GET("/api/leaderboard", a.LeaderboardHandler)

	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusNotFound, "Not found")
	})

	return router
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func pagination(r *http.Request, defaultLimit int) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = defaultLimit
	}

	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (a *API) WebSocketHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ws.ServeWs(a.hub, w, r)
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status := "ok"
	code := http.StatusOK
	if a.database != nil {
		if err := a.database.Ping(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	jsonResponse(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stats := map[string]interface{}{
		"active_rooms":   a.registry.Count(),
		"active_clients": a.hub.GetClientCount(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}

	if a.database != nil {
		dbStats, err := a.database.GetStats(r.Context())
		if err == nil {
			stats["total_races"] = dbStats.RaceCount
			stats["total_results"] = dbStats.ResultCount
		} else {
			a.logger.Warn("stats: database unavailable", "error", err)
		}
	}

	jsonResponse(w, http.StatusOK, stats)
}

// Room handlers

func (a *API) ListRoomsHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rooms := a.registry.Snapshot()
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"rooms": rooms,
		"total": len(rooms),
	})
}

func (a *API) GetRoomHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("name")

	rm, ok := a.registry.Get(name)
	if !ok {
		errorResponse(w, http.StatusNotFound, "Room not found")
		return
	}

	info := rm.Info()
	if len(info.Participants) == 0 {
		errorResponse(w, http.StatusNotFound, "Room not found")
		return
	}

	jsonResponse(w, http.StatusOK, info)
}

// Race history handlers

func (a *API) ListRacesHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset := pagination(r, 20)

	races, err := a.database.ListRaces(r.Context(), limit, offset)
	if err != nil {
		a.logger.Error("list races", "error", err)
		errorResponse(w, http.StatusInternalServerError, "Failed to list races")
		return
	}
	if races == nil {
		races = []db.Race{}
	}

	total, _ := a.database.CountRaces(r.Context())

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"races":  races,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (a *API) GetRaceHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	race, err := a.database.GetRace(r.Context(), ps.ByName("id"))
	if err != nil {
		a.logger.Error("get race", "id", ps.ByName("id"), "error", err)
		errorResponse(w, http.StatusInternalServerError, "Failed to get race")
		return
	}
	if race == nil {
		errorResponse(w, http.StatusNotFound, "Race not found")
		return
	}

	jsonResponse(w, http.StatusOK, race)
}

func (a *API) DeleteRaceHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	deleted, err := a.database.DeleteRace(r.Context(), ps.ByName("id"))
	if err != nil {
		a.logger.Error("delete race", "id", ps.ByName("id"), "error", err)
		errorResponse(w, http.StatusInternalServerError, "Failed to delete race")
		return
	}
	if !deleted {
		errorResponse(w, http.StatusNotFound, "Race not found")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "Race deleted"})
}

func (a *API) LeaderboardHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, _ := pagination(r, 10)

	entries, err := a.database.Leaderboard(r.Context(), limit)
	if err != nil {
		a.logger.Error("leaderboard", "error", err)
		errorResponse(w, http.StatusInternalServerError, "Failed to load leaderboard")
		return
	}
	if entries == nil {
		entries = []db.LeaderboardEntry{}
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"limit":   limit,
	})
}
