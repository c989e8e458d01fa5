package tmdb

// MediaKind selects the TMDB search endpoint.
type MediaKind string

const (
	KindMovie MediaKind = "movie"
	KindTV    MediaKind = "tv"
)

// searchResponse is the paged envelope shared by /search/movie and /search/tv.
type searchResponse struct {
	Page         int            `json:"page"`
	Results      []searchResult `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

// searchResult carries the union of movie and TV fields; movies fill
// Title/ReleaseDate, TV fills Name/FirstAirDate.
type searchResult struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   *string `json:"poster_path"`
	Adult        bool    `json:"adult"`
}

// ErrorResponse is the TMDB error payload.
type ErrorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Success       bool   `json:"success"`
}

// SearchPage is one normalized page of search results.
type SearchPage struct {
	Page         int
	TotalPages   int
	TotalResults int
	Results      []NormalizedResult
}

// NormalizedResult is a movie or TV result flattened to common fields.
// Year is 0 when the date is missing or malformed.
type NormalizedResult struct {
	ID        int64
	Title     string
	Year      int
	Overview  string
	PosterURL string
}
