package api

import (
	"net/http"

	"github.com/feedfm/fmsession/internal/models"
)

func (h *Handlers) streamerAccepted(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.streamer.Snapshot())
}

func (h *Handlers) getStreamer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.streamer.Snapshot())
}

func (h *Handlers) connect(w http.ResponseWriter, r *http.Request) {
	var req models.ConnectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.streamerAccepted(w, h.streamer.Connect(req.Token))
}

func (h *Handlers) switchStream(w http.ResponseWriter, r *http.Request) {
	var req models.SwitchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.streamerAccepted(w, h.streamer.SwitchStream(req.Token))
}

func (h *Handlers) disconnect(w http.ResponseWriter, r *http.Request) {
	var req models.DisconnectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.streamerAccepted(w, h.streamer.Disconnect(req.Force))
}

func (h *Handlers) setStreamerVolume(w http.ResponseWriter, r *http.Request) {
	var req models.VolumeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Volume == nil {
		writeError(w, models.ErrBadRequest("volume is required"))
		return
	}
	if err := h.streamer.SetVolume(*req.Volume); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.streamer.Snapshot())
}
