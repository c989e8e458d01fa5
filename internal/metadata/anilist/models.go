package anilist

// graphQLRequest is the POST body sent to the GraphQL endpoint.
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type searchResponse struct {
	Data struct {
		Page struct {
			Media []media `json:"media"`
		} `json:"Page"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type media struct {
	ID          int64      `json:"id"`
	Title       mediaTitle `json:"title"`
	SeasonYear  *int       `json:"seasonYear"`
	Description *string    `json:"description"`
	CoverImage  struct {
		Large *string `json:"large"`
	} `json:"coverImage"`
}

// mediaTitle holds the localized title variants; any of them may be null.
type mediaTitle struct {
	English *string `json:"english"`
	Romaji  *string `json:"romaji"`
	Native  *string `json:"native"`
}

// NormalizedResult is an anime search hit. Description is returned as
// received and may contain HTML markup.
type NormalizedResult struct {
	ID          int64
	Title       string
	NativeTitle string
	RomajiTitle string
	Year        int
	Description string
	CoverURL    string
}
