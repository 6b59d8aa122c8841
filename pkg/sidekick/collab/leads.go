package collab

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Lead is a scraped prospect record.
type Lead struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Company   string `json:"companyName"`
	JobTitle  string `json:"jobTitle"`
	Email     string `json:"email"`
	LinkedIn  string `json:"publicIdentifier"`
}

// Leads is the lead-scraping collaborator.
type Leads interface {
	// Scrape fetches up to limit leads for a job title in a location.
	// Implementations must enforce a hard cap of MaxLeads results.
	Scrape(ctx context.Context, query, location string, limit int) ([]Lead, error)
}

// MaxLeads is the hard cap on leads per scrape, enforced regardless of the
// requested limit to keep actor costs bounded.
const MaxLeads = 10

const (
	apifyBaseURL = "https://api.apify.com/v2"
	apifyActorID = "IoSHqwTR9YGhzccez"
)

// apify runs the lead-scraper actor synchronously and returns its dataset.
type apify struct {
	token   string
	client  httpDoer
	baseURL string
}

// NewApify creates a Leads backed by the Apify actor.
func NewApify(token string) Leads {
	return &apify{token: token, client: defaultClient(), baseURL: apifyBaseURL}
}

func (a *apify) Scrape(ctx context.Context, query, location string, limit int) ([]Lead, error) {
	if a.token == "" {
		return nil, Errf("lead_gen", "Apify API token not configured")
	}
	if limit <= 0 || limit > MaxLeads {
		limit = MaxLeads
	}

	input := map[string]any{
		"fetch_count":       limit,
		"contact_job_title": []string{query},
		"contact_location":  []string{strings.ToLower(location)},
	}

	q := url.Values{}
	q.Set("token", a.token)
	u := a.baseURL + "/acts/" + apifyActorID + "/run-sync-get-dataset-items?" + q.Encode()

	var leads []Lead
	if err := doJSON(ctx, a.client, "lead_gen", http.MethodPost, u, nil, input, &leads); err != nil {
		return nil, err
	}
	if len(leads) > limit {
		leads = leads[:limit]
	}
	return leads, nil
}
