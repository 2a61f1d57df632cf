package main

import (
	"log"
	"net/http"
)

func route(api *api) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", api.healthHandler)
	mux.HandleFunc("GET /api/users", api.getUsersHandler)
	mux.HandleFunc("GET /api/users/{username}", api.getUserHandler)
	mux.HandleFunc("POST /admin/upload", api.uploadHandler)
	mux.HandleFunc("POST /admin/refresh", api.refreshAllHandler)
	mux.HandleFunc("DELETE /admin/users", api.deleteAllHandler)
	mux.HandleFunc("DELETE /admin/users/{username}", api.deleteUserHandler)
	mux.HandleFunc("GET /debug/db", api.debugDBHandler)
	mux.HandleFunc("GET /admin", api.adminPageHandler)
	mux.HandleFunc("GET /{$}", api.indexHandler)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(api.staticDir))))

	var h http.Handler = mux

	h = loggingMiddleware(h)
	h = requestIDMiddleware(h)
	h = recoverMiddleware(h)

	return h
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	db, err := openDB(cfg.databaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := initSchema(db); err != nil {
		log.Fatal(err)
	}

	cache := newStatsCache(cfg.cacheTTL)
	store := newPgStore(db)
	client := newLeetClient(cfg.graphqlURL, cfg.fetchTimeout, cfg.maxRetries)

	api := &api{
		addr:            cfg.addr,
		store:           store,
		cache:           cache,
		refresher:       newRefresher(client, cache, store, cfg),
		refreshDeadline: cfg.refreshDeadline,
		staticDir:       "static",
	}

	srv := &http.Server{
		Addr:    api.addr,
		Handler: route(api),
	}

	log.Printf("listening on %s", api.addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
