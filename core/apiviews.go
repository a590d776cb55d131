package core

import "time"

type MonitoredArtistView struct {
	ArtistID   string `json:"artist_id"`
	ArtistName string `json:"artist_name,omitempty"`
	LastWorkID string `json:"last_seen_marker,omitempty"`
	UpdatedAt  string `json:"updated_at"`
}

func (view MonitoredArtistView) From(entity MonitoredArtist) MonitoredArtistView {
	return MonitoredArtistView{
		ArtistID:   entity.ArtistID,
		ArtistName: entity.ArtistName,
		LastWorkID: entity.LastWorkID,
		UpdatedAt:  entity.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type Fromable[Entity any, Repr any] interface {
	From(Entity) Repr
}

func FromMany[T any, U Fromable[T, U]](elems []T) []U {
	out := make([]U, len(elems))
	for i, t := range elems {
		var u U
		out[i] = u.From(t)
	}
	return out
}
