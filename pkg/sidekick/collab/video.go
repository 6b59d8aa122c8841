package collab

import (
	"context"
	"net/http"
	"net/url"
)

// RenderStatus reports the progress of a video render job.
type RenderStatus struct {
	// Status is the upstream job status ("pending", "running", "done", ...).
	Status string

	// URL is the rendered video URL, set once Status is "done".
	URL string
}

// Done reports whether the render finished successfully.
func (s *RenderStatus) Done() bool { return s.Status == "done" && s.URL != "" }

// Video is the video-rendering collaborator.
type Video interface {
	// StartRender submits a render job for the subject and returns the
	// project ID to poll with.
	StartRender(ctx context.Context, subject string) (string, error)

	// Status returns the current state of the render job.
	Status(ctx context.Context, projectID string) (*RenderStatus, error)
}

const json2videoBaseURL = "https://api.json2video.com/v2"

// json2video talks to the JSON2Video movies API.
type json2video struct {
	apiKey  string
	client  httpDoer
	baseURL string
}

// NewJSON2Video creates a Video backed by JSON2Video.
func NewJSON2Video(apiKey string) Video {
	return &json2video{apiKey: apiKey, client: defaultClient(), baseURL: json2videoBaseURL}
}

func (j *json2video) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + j.apiKey}
}

func (j *json2video) StartRender(ctx context.Context, subject string) (string, error) {
	if j.apiKey == "" {
		return "", Errf("video", "JSON2Video API key not configured")
	}

	// A minimal movie spec: the template narrates the subject. The heavy
	// scene-by-scene scripting the upstream service supports is delegated to
	// its template engine.
	payload := map[string]any{
		"template": "faceless",
		"variables": map[string]any{
			"subject": subject,
		},
	}

	var result struct {
		Success bool   `json:"success"`
		Project string `json:"project"`
	}
	u := j.baseURL + "/movies"
	if err := doJSON(ctx, j.client, "video", http.MethodPost, u, j.headers(), payload, &result); err != nil {
		return "", err
	}
	if result.Project == "" {
		return "", Errf("video", "render submission returned no project id")
	}
	return result.Project, nil
}

func (j *json2video) Status(ctx context.Context, projectID string) (*RenderStatus, error) {
	if j.apiKey == "" {
		return nil, Errf("video", "JSON2Video API key not configured")
	}

	q := url.Values{}
	q.Set("project", projectID)

	var result struct {
		Movie struct {
			Status string `json:"status"`
			URL    string `json:"url"`
		} `json:"movie"`
	}
	u := j.baseURL + "/movies?" + q.Encode()
	if err := doJSON(ctx, j.client, "video", http.MethodGet, u, j.headers(), nil, &result); err != nil {
		return nil, err
	}
	return &RenderStatus{Status: result.Movie.Status, URL: result.Movie.URL}, nil
}
