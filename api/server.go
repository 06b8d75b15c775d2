package api

import (
	"cpsys/internal"
	"cpsys/internal/config"
	"cpsys/models"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
)

// Station is the read-only view of the charge point exposed over the local
// api.
type Station interface {
	ConnectorStatuses() []models.ConnectorStatus
	QueueSizes() (normal int, transaction int)
	IsOnline() bool
	IsRegistered() bool
}

type Server struct {
	conf     *config.Config
	logger   internal.LogHandler
	database internal.Database
	station  Station
}

func NewServer(conf *config.Config, logger internal.LogHandler, database internal.Database, station Station) *Server {
	return &Server{
		conf:     conf,
		logger:   logger,
		database: database,
		station:  station,
	}
}

func (s *Server) Listen() error {
	if !s.conf.Api.Enabled {
		return nil
	}
	router := httprouter.New()
	router.GET("/api/status", s.status)
	router.GET("/api/status/:id", s.connectorStatus)
	router.GET("/api/log", s.readLog)
	address := s.conf.Api.BindIP + ":" + s.conf.Api.Port
	s.logger.Debug("starting api server on " + address)
	return http.ListenAndServe(address, router)
}

type statusReport struct {
	Online      bool                     `json:"online"`
	Registered  bool                     `json:"registered"`
	QueueNormal int                      `json:"queue_normal"`
	QueueTx     int                      `json:"queue_transaction"`
	Connectors  []models.ConnectorStatus `json:"connectors"`
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	normal, transaction := s.station.QueueSizes()
	report := statusReport{
		Online:      s.station.IsOnline(),
		Registered:  s.station.IsRegistered(),
		QueueNormal: normal,
		QueueTx:     transaction,
		Connectors:  s.station.ConnectorStatuses(),
	}
	s.respond(w, report)
}

func (s *Server) connectorStatus(w http.ResponseWriter, _ *http.Request, params httprouter.Params) {
	connectorId, err := strconv.Atoi(params.ByName("id"))
	if err != nil {
		http.Error(w, "invalid connector id", http.StatusBadRequest)
		return
	}
	for _, status := range s.station.ConnectorStatuses() {
		if status.ConnectorId == connectorId {
			s.respond(w, status)
			return
		}
	}
	http.Error(w, fmt.Sprintf("unknown connector %d", connectorId), http.StatusNotFound)
}

func (s *Server) readLog(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	if s.database == nil {
		http.Error(w, "log storage is not configured", http.StatusNotFound)
		return
	}
	logMessages, err := s.database.ReadLog()
	if err != nil {
		s.logger.Error("reading log", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.respond(w, logMessages)
}

func (s *Server) respond(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encoding api response", err)
	}
}
