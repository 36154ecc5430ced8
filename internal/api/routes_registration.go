package api

import "github.com/gorilla/mux"

func (s *Server) registerRoutes(r *mux.Router) {
	r.HandleFunc("/health", s.handleHealth).Methods("GET", "OPTIONS")

	r.HandleFunc("/price", s.handlePrice).Methods("GET", "OPTIONS")
	r.HandleFunc("/schedule", s.handleSchedule).Methods("POST", "OPTIONS")
	r.HandleFunc("/schedule/{groupId}", s.handleProgress).Methods("GET", "OPTIONS")

	r.HandleFunc("/ws/progress", s.handleProgressWS).Methods("GET")
}
