package domain

// Paper is a bibliographic entry supplied for literature review.
type Paper struct {
	Title    string   `toml:"title"`
	Authors  []string `toml:"authors"`
	Year     int      `toml:"year"`
	Abstract string   `toml:"abstract"`
	URL      string   `toml:"url"`
}

// PaperSummary is a paper with its generated summary.
type PaperSummary struct {
	Paper   Paper
	Summary string
}

// ReviewCluster is a group of papers with similar summaries.
type ReviewCluster struct {
	Label  int
	Papers []PaperSummary
}

// LiteratureReview is the synthesized review of a topic.
type LiteratureReview struct {
	Topic    string
	Clusters []ReviewCluster
	Text     string
}
