// Package httpstatus implements the plain GET "/" metadata endpoint
// described in spec.md §6: a trivial JSON status document, served from the
// same path the websocket upgrade lives on. Grounded on
// woozymasta/zenit/internal/server's plain net/http handler style - no
// library in the retrieval pack does bespoke tiny-JSON-status better than
// stdlib encoding/json + http.HandlerFunc, so this stays on the standard
// library (DESIGN.md).
package httpstatus

import (
	"encoding/json"
	"net/http"

	"github.com/bonkroom/server/internal/roomstate"
)

// document is the wire shape of spec.md §6's "GET /" response.
type document struct {
	IsBonkServer bool   `json:"isBonkServer"`
	RoomName     string `json:"roomname"`
	Password     int    `json:"password"`
	Players      int    `json:"players"`
	MaxPlayers   int    `json:"maxplayers"`
	ModeGa       string `json:"mode_ga"`
	ModeMo       string `json:"mode_mo"`
}

// Handler returns the http.HandlerFunc for spec.md §6's metadata endpoint.
func Handler(room *roomstate.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := room.Snapshot()

		password := 0
		if snap.HasPassword {
			password = 1
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(document{
			IsBonkServer: true,
			RoomName:     snap.RoomName,
			Password:     password,
			Players:      snap.PlayerCount,
			MaxPlayers:   snap.MaxPlayers,
			ModeGa:       snap.Engine,
			ModeMo:       snap.Mode,
		})
	}
}
