package lastfm

import "encoding/json"

// Artist identifies an artist in the metadata provider's catalog.
type Artist struct {
	MBID string `json:"mbid"`
	Name string `json:"name"`
}

// Image is one cover-art rendition with the provider's size label.
type Image struct {
	URL  string `json:"url"`
	Size string `json:"size"`
}

// Album identifies an album with its cover art.
type Album struct {
	MBID   string  `json:"mbid"`
	Title  string  `json:"title"`
	Images []Image `json:"images"`
}

// Track is the metadata record for a single track.
type Track struct {
	MBID   string
	Title  string
	Artist Artist
	Album  Album
	Genres []string
}

// SimilarTrack is one recommendation from the similar-tracks lookup.
type SimilarTrack struct {
	MBID       string
	Title      string
	Artist     Artist
	Images     []Image
	Match      float64
	DurationMs int
}

// SimilarParams selects the seed track for a similar-tracks lookup: either
// an MBID or an (artist, title) pair.
type SimilarParams struct {
	MBID   string
	Artist string
	Title  string
	Limit  int
}

// Wire types. Every field beyond the track object itself is optional, so
// decoding tolerates absence everywhere and the caller gets zero values.

type wireImage struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

type wireArtist struct {
	MBID string `json:"mbid"`
	Name string `json:"name"`
}

type wireAlbum struct {
	MBID   string      `json:"mbid"`
	Title  string      `json:"title"`
	Images []wireImage `json:"image"`
}

type wireTag struct {
	Name string `json:"name"`
}

type trackInfoResponse struct {
	Track *struct {
		MBID    string      `json:"mbid"`
		Name    string      `json:"name"`
		Artist  *wireArtist `json:"artist"`
		Album   *wireAlbum  `json:"album"`
		TopTags *struct {
			Tag []wireTag `json:"tag"`
		} `json:"toptags"`
	} `json:"track"`
}

type similarTracksResponse struct {
	SimilarTracks *struct {
		Track []struct {
			MBID     string      `json:"mbid"`
			Name     string      `json:"name"`
			Match    json.Number `json:"match"`
			Duration json.Number `json:"duration"`
			Artist   *wireArtist `json:"artist"`
			Images   []wireImage `json:"image"`
		} `json:"track"`
	} `json:"similartracks"`
}

// apiError is the provider's error envelope.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}
