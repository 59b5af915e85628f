// Package api implements the HTTP control API for the player and streamer
// sessions.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/feedfm/fmsession/internal/events"
	"github.com/feedfm/fmsession/internal/models"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	player   func() (Player, error)
	streamer Streamer
	events   EventBus
	info     func() models.Info
	reinit   func(ctx context.Context) error
}

// Player is the station player as the handlers use it.
type Player interface {
	Snapshot() models.Session
	WaitAvailable(ctx context.Context) (bool, error)
	Play() error
	Pause() error
	Stop() error
	Skip() error
	SetVolume(v float64) error
	SetActiveStation(id int) error
	SetClientID(id string, onUpdated func(clientID string)) error
	CreateNewClientID(onUpdated func(clientID string)) error
	SeekCurrentStationBy(seconds float64) error
	LogEvent(name string, params map[string]interface{}) error
	CanSkip(ctx context.Context) (bool, error)
	MaxSeekableLengthInSeconds(ctx context.Context) (float64, error)
}

// Streamer is the simulcast streamer as the handlers use it.
type Streamer interface {
	Snapshot() models.StreamerSession
	Connect(token string) error
	SwitchStream(token string) error
	Disconnect(force bool) error
	SetVolume(v float64) error
}

// EventBus is the interface for subscribing to session notifications.
type EventBus interface {
	Subscribe(id string) <-chan events.Envelope
	Unsubscribe(id string)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an AppError as a JSON response.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		w.WriteHeader(appErr.Status)
		_ = json.NewEncoder(w).Encode(appErr)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(models.ErrInternal(err.Error()))
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return models.ErrBadRequest("invalid JSON: " + err.Error())
	}
	return nil
}

// intParam reads an integer path parameter by name.
func intParam(r *http.Request, name string) (int, error) {
	s := chi.URLParam(r, name)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, models.ErrBadRequest("invalid " + name + " parameter")
	}
	return n, nil
}
