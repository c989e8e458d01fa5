package metadata

// Provider identifies an external search backend and, for TMDB, the endpoint.
type Provider string

const (
	ProviderTMDBMovie Provider = "tmdb:movie"
	ProviderTMDBTV    Provider = "tmdb:tv"
	ProviderAniList   Provider = "anilist"
)

// Service returns the upstream service name for logging and error text.
func (p Provider) Service() string {
	switch p {
	case ProviderTMDBMovie, ProviderTMDBTV:
		return "TMDB"
	case ProviderAniList:
		return "AniList"
	default:
		return string(p)
	}
}

// SearchResult is a normalized, ephemeral provider hit. Title is never
// absent; it is the empty string when the provider supplied nothing usable.
type SearchResult struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	NativeTitle string `json:"nativeTitle,omitempty"`
	RomajiTitle string `json:"romajiTitle,omitempty"`
	Year        *int   `json:"year,omitempty"`
	Overview    string `json:"overview,omitempty"`
	PosterURL   string `json:"posterUrl,omitempty"`
}

func optionalYear(y int) *int {
	if y <= 0 {
		return nil
	}
	return &y
}
