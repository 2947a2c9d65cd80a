package entity

// RenderedPage is what a page fetcher hands back after navigation settled.
type RenderedPage struct {
	URL        string
	StatusCode int
	HTML       string
}

// PageResult holds the raw review fragments of one listing page.
type PageResult struct {
	Index      int
	URL        string
	StatusCode int
	Fragments  []string
}

// ReviewCollection is the ordered list of normalized reviews for a run.
type ReviewCollection []string

// Append returns a new collection with reviews added after the existing ones.
// The receiver is left untouched.
func (c ReviewCollection) Append(reviews ...string) ReviewCollection {
	out := make(ReviewCollection, 0, len(c)+len(reviews))
	out = append(out, c...)
	return append(out, reviews...)
}

// Len returns the number of reviews.
func (c ReviewCollection) Len() int { return len(c) }
