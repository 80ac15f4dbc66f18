package wlan_manager

import (
	"fmt"
	"math/rand"

	"github.com/wlansensor/wlan-sensor-module-go/src/config_manager"
)

// NextBand evaluates the band policy for one connect cycle. It returns the band
// to request and the state to persist afterwards; state itself is not modified.
//
// Rotating flips to the other band once RoundsElapsed exceeds RoundsConfigured
// and restarts the count at 1, otherwise it keeps the band and counts up. On the
// first run (no LastBandUsed) it starts on the first allowed band with
// RoundsElapsed 1. Random picks from AllowedBands and leaves the state as is.
func NextBand(state config_manager.BandRotationState, rnd *rand.Rand) (config_manager.Band, config_manager.BandRotationState, error) {
	next := state
	next.AllowedBands = append([]config_manager.Band(nil), state.AllowedBands...)
	allowed := state.AllowedBands
	if len(allowed) == 0 {
		allowed = []config_manager.Band{config_manager.Band2G, config_manager.Band5G}
	}

	switch state.Policy {
	case config_manager.PolicyFixed2G:
		next.LastBandUsed = config_manager.Band2G
		return config_manager.Band2G, next, nil
	case config_manager.PolicyFixed5G:
		next.LastBandUsed = config_manager.Band5G
		return config_manager.Band5G, next, nil
	case config_manager.PolicyRandom:
		if rnd == nil {
			return "", state, fmt.Errorf("random band policy needs a random source")
		}
		return allowed[rnd.Intn(len(allowed))], next, nil
	case config_manager.PolicyRotating:
		switch {
		case state.LastBandUsed != config_manager.Band2G && state.LastBandUsed != config_manager.Band5G:
			next.LastBandUsed = allowed[0]
			next.RoundsElapsed = 1
		case state.RoundsElapsed > state.RoundsConfigured:
			next.LastBandUsed = state.LastBandUsed.Opposite()
			next.RoundsElapsed = 1
		default:
			next.RoundsElapsed = state.RoundsElapsed + 1
		}
		return next.LastBandUsed, next, nil
	}
	return "", state, fmt.Errorf("unknown band policy %q", state.Policy)
}
