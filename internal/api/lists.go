package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"bledemo/internal/ble"
	"bledemo/internal/logging"
	"bledemo/internal/middleware"
	"bledemo/internal/store"
)

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.Load()
	if err != nil {
		s.storeFailure(w, r, s.devices.Name(), "load", err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleSaveDevice(w http.ResponseWriter, r *http.Request) {
	form, err := readForm(r)
	if err != nil {
		writeFormError(w, err)
		return
	}

	device := ble.SavedDevice{
		Name:    form.Get("name"),
		Address: form.Get("address"),
		SavedAt: ble.Millis(s.now()),
	}

	n, err := s.devices.Append(device)
	if err != nil {
		s.storeFailure(w, r, s.devices.Name(), "append", err)
		return
	}

	s.listLogger(s.devices.Name()).Info("device saved", "name", device.Name, "address", device.Address, "count", n)
	writeStatus(w, "device_saved")
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	commands, err := s.commands.Load()
	if err != nil {
		s.storeFailure(w, r, s.commands.Name(), "load", err)
		return
	}
	writeJSON(w, http.StatusOK, commands)
}

func (s *Server) handleSaveCommand(w http.ResponseWriter, r *http.Request) {
	form, err := readForm(r)
	if err != nil {
		writeFormError(w, err)
		return
	}

	cmd := ble.SavedCommand{
		Name:               form.Get("name"),
		ServiceUUID:        form.Get("serviceUUID"),
		CharacteristicUUID: form.Get("characteristicUUID"),
		Data:               form.Get("data"),
		SavedAt:            ble.Millis(s.now()),
	}

	n, err := s.commands.Append(cmd)
	if err != nil {
		s.storeFailure(w, r, s.commands.Name(), "append", err)
		return
	}

	s.listLogger(s.commands.Name()).Info("command saved", "name", cmd.Name, "count", n)
	writeStatus(w, "command_saved")
}

// handleDeleteCommand removes the command at the form's index (default 0).
// The commands file must already exist; the seed list cannot be deleted from.
func (s *Server) handleDeleteCommand(w http.ResponseWriter, r *http.Request) {
	form, err := readForm(r)
	if err != nil {
		writeFormError(w, err)
		return
	}

	index := 0
	if raw := strings.TrimSpace(form.Get("index")); raw != "" {
		index, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid index")
			return
		}
	}

	_, err = s.commands.RemoveAt(index)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Commands file not found")
		return
	case errors.Is(err, store.ErrIndexOutOfRange):
		writeError(w, http.StatusBadRequest, "Invalid index")
		return
	case err != nil:
		s.storeFailure(w, r, s.commands.Name(), "remove", err)
		return
	}

	s.listLogger(s.commands.Name()).Info("command deleted", "index", index)
	writeStatus(w, "command_deleted")
}

func (s *Server) storeFailure(w http.ResponseWriter, r *http.Request, list, op string, err error) {
	s.listLogger(list).Error("store operation failed",
		"op", op,
		"error", err,
		"request_id", middleware.RequestIDFrom(r.Context()),
	)
	writeError(w, http.StatusInternalServerError, "Failed to access "+list)
}

func (s *Server) listLogger(list string) logging.Logger {
	return s.logger.With("list", list)
}
