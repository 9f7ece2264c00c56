package api

import (
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Basbat-net/Study-Enforcer/internal/api/recovery"
	"github.com/Basbat-net/Study-Enforcer/internal/config"
	"github.com/Basbat-net/Study-Enforcer/internal/filestore"
	"github.com/Basbat-net/Study-Enforcer/internal/intervalstore"
	"github.com/Basbat-net/Study-Enforcer/internal/logstore"
	"github.com/Basbat-net/Study-Enforcer/internal/timerstore"
	"github.com/Basbat-net/Study-Enforcer/internal/userstore"
)

// NewRouter builds the full API surface on top of the locked file store.
func NewRouter(cfg *config.Config, log zerolog.Logger) *mux.Router {
	files := filestore.New(filestore.LockPolicy{
		Stale:      cfg.LockStale(),
		Refresh:    cfg.LockRefresh(),
		MinDelay:   cfg.LockMinDelay(),
		MaxDelay:   cfg.LockMaxDelay(),
		Multiplier: float64(cfg.LockBackoffFactor),
		MaxRetries: uint64(cfg.LockRetries),
	}, log)

	logs := logstore.New(files, log)
	timers := timerstore.New(files, cfg, log)
	users := userstore.New(files, cfg, log)
	intervals := intervalstore.New(files, logs, cfg, log)

	root := mux.NewRouter()
	root.Use(recovery.Middleware)
	r := root.PathPrefix("/api").Subrouter()

	// Logs
	logsHandler := NewLogsHandler(logs, cfg, log)
	r.HandleFunc("/logs/{username}", logsHandler.GetLogs).Methods("GET")
	r.HandleFunc("/logs/{username}", logsHandler.SaveLogs).Methods("POST")
	r.HandleFunc("/logs/{username}/add", logsHandler.AddLog).Methods("POST")
	r.HandleFunc("/logs/{username}", logsHandler.ClearLogs).Methods("DELETE")

	// Timer state
	timerHandler := NewTimerHandler(timers, log)
	r.HandleFunc("/timer-state/{username}", timerHandler.GetTimerState).Methods("GET")
	r.HandleFunc("/timer-state/{username}", timerHandler.SaveTimerState).Methods("POST")
	r.HandleFunc("/timer-state/{username}", timerHandler.ClearTimerState).Methods("DELETE")

	// Pending inactive intervals
	intervalHandler := NewIntervalHandler(intervals, log)
	r.HandleFunc("/inactive-interval/start/{username}", intervalHandler.StartInterval).Methods("POST")
	r.HandleFunc("/inactive-interval/end/{username}", intervalHandler.EndInterval).Methods("POST")

	// Users
	usersHandler := NewUsersHandler(users, log)
	r.HandleFunc("/users", usersHandler.ListUsers).Methods("GET")
	r.HandleFunc("/ping", usersHandler.Ping).Methods("GET")
	r.HandleFunc("/init-user/{username}", usersHandler.InitUser).Methods("POST")
	r.HandleFunc("/user/{username}", usersHandler.RemoveUser).Methods("DELETE")

	return root
}
