package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/feedfm/fmsession/internal/models"
)

// withPlayer runs fn with the current player, or writes the usage error.
func (h *Handlers) withPlayer(w http.ResponseWriter, fn func(p Player)) {
	p, err := h.player()
	if err != nil {
		writeError(w, err)
		return
	}
	fn(p)
}

// accepted reports a command the engine will confirm later.
func accepted(w http.ResponseWriter, p Player, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, p.Snapshot())
}

func (h *Handlers) getState(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"streamer": h.streamer.Snapshot()}
	if p, err := h.player(); err == nil {
		resp["player"] = p.Snapshot()
	} else {
		resp["player"] = nil
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) getPlayer(w http.ResponseWriter, r *http.Request) {
	h.withPlayer(w, func(p Player) {
		writeJSON(w, http.StatusOK, p.Snapshot())
	})
}

func (h *Handlers) getStations(w http.ResponseWriter, r *http.Request) {
	h.withPlayer(w, func(p Player) {
		s := p.Snapshot()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"stations":       s.Stations,
			"active_station": s.ActiveStation,
		})
	})
}

// getAvailable reports availability. With wait=1 it blocks until the
// engine answers or the client goes away.
func (h *Handlers) getAvailable(w http.ResponseWriter, r *http.Request) {
	h.withPlayer(w, func(p Player) {
		if r.URL.Query().Get("wait") == "1" {
			if _, err := p.WaitAvailable(r.Context()); err != nil {
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"available": p.Snapshot().Available})
	})
}

func (h *Handlers) playerCmd(w http.ResponseWriter, r *http.Request) {
	h.withPlayer(w, func(p Player) {
		var err error
		switch cmd := chi.URLParam(r, "cmd"); cmd {
		case "play":
			err = p.Play()
		case "pause":
			err = p.Pause()
		case "stop":
			err = p.Stop()
		case "skip":
			err = p.Skip()
		default:
			writeError(w, models.ErrNotFound("unknown player command: "+cmd))
			return
		}
		accepted(w, p, err)
	})
}

func (h *Handlers) setPlayerVolume(w http.ResponseWriter, r *http.Request) {
	var req models.VolumeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Volume == nil {
		writeError(w, models.ErrBadRequest("volume is required"))
		return
	}
	h.withPlayer(w, func(p Player) {
		if err := p.SetVolume(*req.Volume); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p.Snapshot())
	})
}

func (h *Handlers) setStation(w http.ResponseWriter, r *http.Request) {
	var req models.StationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ID == nil {
		writeError(w, models.ErrBadRequest("id is required"))
		return
	}
	h.withPlayer(w, func(p Player) {
		accepted(w, p, p.SetActiveStation(*req.ID))
	})
}

func (h *Handlers) setStationByPath(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	h.withPlayer(w, func(p Player) {
		accepted(w, p, p.SetActiveStation(id))
	})
}

func (h *Handlers) setClientID(w http.ResponseWriter, r *http.Request) {
	var req models.ClientIDRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.withPlayer(w, func(p Player) {
		accepted(w, p, p.SetClientID(req.ClientID, nil))
	})
}

func (h *Handlers) newClientID(w http.ResponseWriter, r *http.Request) {
	h.withPlayer(w, func(p Player) {
		accepted(w, p, p.CreateNewClientID(nil))
	})
}

func (h *Handlers) seek(w http.ResponseWriter, r *http.Request) {
	var req models.SeekRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.withPlayer(w, func(p Player) {
		accepted(w, p, p.SeekCurrentStationBy(req.Seconds))
	})
}

func (h *Handlers) logEvent(w http.ResponseWriter, r *http.Request) {
	var req models.LogEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.withPlayer(w, func(p Player) {
		if err := p.LogEvent(req.Name, req.Params); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *Handlers) getCanSkip(w http.ResponseWriter, r *http.Request) {
	h.withPlayer(w, func(p Player) {
		ok, err := p.CanSkip(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"can_skip": ok})
	})
}

func (h *Handlers) getMaxSeekable(w http.ResponseWriter, r *http.Request) {
	h.withPlayer(w, func(p Player) {
		v, err := p.MaxSeekableLengthInSeconds(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]float64{"max_seekable_seconds": v})
	})
}

func (h *Handlers) reinitialize(w http.ResponseWriter, r *http.Request) {
	if h.reinit == nil {
		writeError(w, models.ErrNotFound("reinitialize not supported"))
		return
	}
	if err := h.reinit(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.withPlayer(w, func(p Player) {
		writeJSON(w, http.StatusAccepted, p.Snapshot())
	})
}
