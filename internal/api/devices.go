package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/fleetd/internal/device"
)

// handleListDevices returns the full inventory as a bare array.
//
// GET /api/devices
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.inventory.List(r.Context())
	if err != nil {
		s.logger.Error("listing devices failed", "error", err)
		writeInternalError(w, "internal server error")
		return
	}
	if devices == nil {
		devices = []device.Device{}
	}

	writeJSON(w, http.StatusOK, devices)
}

// handleCreateDevice registers a new device.
//
// POST /api/devices
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var d device.Device
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	id, _ := identityFromContext(r.Context())

	if err := s.inventory.Create(r.Context(), &d, id.Username); err != nil {
		var verr *device.ValidationError
		switch {
		case errors.As(err, &verr):
			writeValidationError(w, verr.Error())
		case errors.Is(err, device.ErrDeviceExists):
			writeConflict(w, "device already exists")
		default:
			s.logger.Error("creating device failed", "error", err)
			writeInternalError(w, "internal server error")
		}
		return
	}

	s.auditLog(r, "device.create", "device", strconv.FormatInt(d.ID, 10), id.Username, map[string]any{
		"device_type": d.DeviceType,
		"device_id":   d.DeviceID,
	})

	writeJSON(w, http.StatusCreated, d)
}

// handleSearchDevices returns devices matching the posted criteria
// as a bare array.
//
// POST /api/devices/search
func (s *Server) handleSearchDevices(w http.ResponseWriter, r *http.Request) {
	var criteria device.Criteria
	if err := json.NewDecoder(r.Body).Decode(&criteria); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	devices, err := s.inventory.Search(r.Context(), criteria)
	if err != nil {
		s.logger.Error("searching devices failed", "error", err)
		writeInternalError(w, "internal server error")
		return
	}
	if devices == nil {
		devices = []device.Device{}
	}

	writeJSON(w, http.StatusOK, devices)
}

// handleUpdateDevice applies a partial update to a device.
//
// PUT /api/devices/{id}
//
// A malformed body is rejected before the id is looked up, so a bad
// request against an unknown id answers 400, not 404.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	deviceID, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		writeBadRequest(w, "device id must be numeric")
		return
	}

	var patch device.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	id, _ := identityFromContext(r.Context())

	updated, err := s.inventory.Update(r.Context(), deviceID, patch, id.Username)
	if err != nil {
		var verr *device.ValidationError
		if errors.As(err, &verr) {
			writeValidationError(w, verr.Error())
			return
		}
		s.logger.Error("updating device failed", "error", err, "id", deviceID)
		writeInternalError(w, "internal server error")
		return
	}
	if updated == nil {
		writeNotFound(w, "device not found")
		return
	}

	s.auditLog(r, "device.update", "device", idParam, id.Username, map[string]any{
		"device_type": updated.DeviceType,
		"device_id":   updated.DeviceID,
	})

	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteDevice removes a device from the inventory.
//
// DELETE /api/devices/{id}
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	deviceID, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		writeBadRequest(w, "device id must be numeric")
		return
	}

	id, _ := identityFromContext(r.Context())

	deleted, err := s.inventory.Delete(r.Context(), deviceID, id.Username)
	if err != nil {
		s.logger.Error("deleting device failed", "error", err, "id", deviceID)
		writeInternalError(w, "internal server error")
		return
	}
	if !deleted {
		writeNotFound(w, "device not found")
		return
	}

	s.auditLog(r, "device.delete", "device", idParam, id.Username, nil)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
