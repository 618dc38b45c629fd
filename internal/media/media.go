// internal/media/media.go
package media

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tmunro/partyhub/internal/models"
)

// ErrUnsupportedRef indicates the submitted reference is not a recognizable
// media URL. Callers treat a failed parse as a no-op rather than a reported
// failure, so this error never reaches other lobby members.
var ErrUnsupportedRef = errors.New("unsupported media reference")

// ParseTrackRef extracts a playable track from a user-submitted reference.
// Recognized forms:
//
//	https://www.youtube.com/watch?v={id}
//	https://youtu.be/{id}
func ParseTrackRef(ref, addedBy string) (models.Track, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return models.Track{}, fmt.Errorf("parse media reference: %w", err)
	}

	var id string
	switch {
	case strings.Contains(u.Hostname(), "youtube.com"):
		id = u.Query().Get("v")
	case strings.Contains(u.Hostname(), "youtu.be"):
		id = strings.TrimPrefix(u.Path, "/")
	}
	if id == "" {
		return models.Track{}, ErrUnsupportedRef
	}

	return models.Track{
		TrackID: id,
		Title:   fmt.Sprintf("Video %s", id),
		AddedBy: addedBy,
	}, nil
}
