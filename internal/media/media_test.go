// internal/media/media_test.go
package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrackRefYouTubeWatch(t *testing.T) {
	track, err := ParseTrackRef("https://www.youtube.com/watch?v=dQw4w9WgXcQ", "alice")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", track.TrackID)
	assert.Equal(t, "Video dQw4w9WgXcQ", track.Title)
	assert.Equal(t, "alice", track.AddedBy)
}

func TestParseTrackRefShortLink(t *testing.T) {
	track, err := ParseTrackRef("https://youtu.be/XYZ", "bob")
	require.NoError(t, err)
	assert.Equal(t, "XYZ", track.TrackID)
	assert.Equal(t, "bob", track.AddedBy)
}

func TestParseTrackRefWithExtraParams(t *testing.T) {
	track, err := ParseTrackRef("https://youtube.com/watch?v=abc123&t=42s", "alice")
	require.NoError(t, err)
	assert.Equal(t, "abc123", track.TrackID)
}

func TestParseTrackRefRejectsUnknownHosts(t *testing.T) {
	_, err := ParseTrackRef("https://vimeo.com/12345", "alice")
	assert.ErrorIs(t, err, ErrUnsupportedRef)
}

func TestParseTrackRefRejectsMissingVideoID(t *testing.T) {
	_, err := ParseTrackRef("https://www.youtube.com/watch", "alice")
	assert.ErrorIs(t, err, ErrUnsupportedRef)
}

func TestParseTrackRefRejectsPlainText(t *testing.T) {
	_, err := ParseTrackRef("not a url at all", "alice")
	assert.Error(t, err)
}
