package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"laser-go-control/internal/laser"
	"laser-go-control/internal/scpi"
	"laser-go-control/internal/store"
)

func (s *Server) handleAPIState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleAPIListPorts(w http.ResponseWriter, r *http.Request) {
	candidates := s.ctrl.ListCandidates(nil)
	s.writeJSON(w, http.StatusOK, candidates)
}

func (s *Server) handleAPIDiscover(w http.ResponseWriter, r *http.Request) {
	found := s.ctrl.FindLasers(laser.DiscoveryOptions{})
	s.writeJSON(w, http.StatusOK, found)
}

type connectRequest struct {
	Resource string `json:"resource"`
}

func (s *Server) handleAPIConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	// An empty resource falls back to the last known port.
	if req.Resource == "" && s.settings != nil {
		if saved, err := s.settings.GetSettings(); err == nil {
			req.Resource = saved.LastResource
		} else if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("load settings", "err", err)
		}
	}
	if req.Resource == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "resource is required"})
		return
	}

	if err := s.ctrl.Connect(req.Resource); err != nil {
		s.logger.Error("connect", "err", err, "resource", req.Resource)
		s.writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	s.persistSettings(func(st *store.Settings) {
		st.LastResource = req.Resource
	})

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "resource": req.Resource})
}

func (s *Server) handleAPIDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Disconnect(); err != nil {
		s.logger.Error("disconnect", "err", err)
		s.writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type enableRequest struct {
	On bool `json:"on"`
}

func (s *Server) handleAPIEnable(w http.ResponseWriter, r *http.Request) {
	var req enableRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	s.writeCommandResult(w, s.ctrl.SetEnabled(req.On))
}

type currentRequest struct {
	Milliamps int `json:"milliamps"`
}

func (s *Server) handleAPICurrent(w http.ResponseWriter, r *http.Request) {
	var req currentRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Milliamps < 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "milliamps must not be negative"})
		return
	}

	res := s.ctrl.SetCurrent(req.Milliamps)
	if res.Code == 0 && !res.TransportFault {
		s.persistSettings(func(st *store.Settings) {
			st.TargetMilliamps = req.Milliamps
		})
	}
	s.writeCommandResult(w, res)
}

type tecRequest struct {
	Celsius float64 `json:"celsius"`
}

func (s *Server) handleAPITEC(w http.ResponseWriter, r *http.Request) {
	var req tecRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res := s.ctrl.SetTECSetpoint(req.Celsius)
	if res.Code == 0 && !res.TransportFault {
		s.persistSettings(func(st *store.Settings) {
			st.TECSetpointC = req.Celsius
		})
	}
	s.writeCommandResult(w, res)
}

type pwmRequest struct {
	Percent float64 `json:"percent"`
}

func (s *Server) handleAPIPWM(w http.ResponseWriter, r *http.Request) {
	var req pwmRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res := s.ctrl.SetPWMDutyCycle(req.Percent)
	if res.Code == 0 && !res.TransportFault {
		s.persistSettings(func(st *store.Settings) {
			st.PWMDutyCyclePct = req.Percent
		})
	}
	s.writeCommandResult(w, res)
}

func (s *Server) handleAPIRestoreFactory(w http.ResponseWriter, r *http.Request) {
	s.writeCommandResult(w, s.ctrl.RestoreFactorySettings())
}

func (s *Server) handleAPISaveParameters(w http.ResponseWriter, r *http.Request) {
	s.writeCommandResult(w, s.ctrl.SaveParameters())
}

// handleAPIBoard reports board-level diagnostics in one response.
func (s *Server) handleAPIBoard(w http.ResponseWriter, r *http.Request) {
	if !s.ctrl.IsConnected() {
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": "not connected"})
		return
	}

	status := s.ctrl.Status()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":      status.Value,
		"status_text": scpi.StatusText(status.Value),
		"current_ma":  s.ctrl.BoardCurrent(),
		"temperature": s.ctrl.BoardTemperature(),
		"on_hours":    s.ctrl.OnHours(),
		"error_queue": s.ctrl.ErrorQueueCount(),
	})
}

func (s *Server) handleAPISettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "settings not available"})
		return
	}
	saved, err := s.settings.GetSettings()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeJSON(w, http.StatusOK, &store.Settings{})
			return
		}
		s.logger.Error("load settings", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	s.writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleAPIVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// persistSettings applies fn to the stored settings, if a store is wired.
func (s *Server) persistSettings(fn func(*store.Settings)) {
	if s.settings == nil {
		return
	}
	err := s.settings.UpdateSettings(func(st *store.Settings) error {
		fn(st)
		return nil
	})
	if err != nil {
		s.logger.Error("persist settings", "err", err)
	}
}

// writeCommandResult maps a device round-trip onto an HTTP status: 502 for
// a broken link, 422 for a device-rejected command, 200 otherwise.
func (s *Server) writeCommandResult(w http.ResponseWriter, res laser.CommandResult) {
	switch {
	case res.TransportFault:
		s.writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": res.Message,
			"code":  res.Code,
		})
	case res.Code != 0:
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":       res.Message,
			"code":        res.Code,
			"description": scpi.Describe(res.Code),
		})
	default:
		s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "code": 0})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writeJSON encode failed", "err", err)
	}
}
