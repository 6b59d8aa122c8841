package collab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// GeneratedImage is the result of GenerateImage.
type GeneratedImage struct {
	Title string
	URL   string
}

// FoundImage is the result of SearchImage.
type FoundImage struct {
	Name string
	Link string
}

// BlogPost is the result of GenerateBlog.
type BlogPost struct {
	Topic   string
	Content string
}

// Studio is the content-generation collaborator: image generation, stored
// image lookup, and blog writing.
type Studio interface {
	// GenerateImage renders an image for the prompt and returns its URL.
	GenerateImage(ctx context.Context, title, prompt string) (*GeneratedImage, error)

	// SearchImage looks up a previously generated image by name.
	// Returns (nil, nil) when nothing matches.
	SearchImage(ctx context.Context, query string) (*FoundImage, error)

	// GenerateBlog researches a topic and writes a blog post for the audience.
	GenerateBlog(ctx context.Context, topic, audience string) (*BlogPost, error)
}

const (
	openAIImagesURL = "https://api.openai.com/v1/images/generations"
	driveBaseURL    = "https://www.googleapis.com/drive/v3"
)

// studio combines the OpenAI image API, Google Drive lookup and the
// completion capability into one content-generation collaborator.
type studio struct {
	openAIKey string
	tokens    TokenSource
	client    httpDoer
	imagesURL string
	driveURL  string
	completer Completer
	search    WebSearch
}

// NewStudio creates a Studio. search may be nil; blog research then relies on
// the model alone.
func NewStudio(openAIKey string, tokens TokenSource, completer Completer, search WebSearch) Studio {
	return &studio{
		openAIKey: openAIKey,
		tokens:    tokens,
		client:    defaultClient(),
		imagesURL: openAIImagesURL,
		driveURL:  driveBaseURL,
		completer: completer,
		search:    search,
	}
}

func (s *studio) GenerateImage(ctx context.Context, title, prompt string) (*GeneratedImage, error) {
	if s.openAIKey == "" {
		return nil, Errf("image_gen", "OpenAI API key not configured")
	}

	body := map[string]any{
		"model":  "dall-e-3",
		"prompt": prompt,
		"n":      1,
		"size":   "1024x1024",
	}
	headers := map[string]string{"Authorization": "Bearer " + s.openAIKey}

	var result struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := doJSON(ctx, s.client, "image_gen", http.MethodPost, s.imagesURL, headers, body, &result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 || result.Data[0].URL == "" {
		return nil, Errf("image_gen", "no image returned")
	}
	return &GeneratedImage{Title: title, URL: result.Data[0].URL}, nil
}

func (s *studio) SearchImage(ctx context.Context, query string) (*FoundImage, error) {
	tok, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, Errf("image_search", "credentials unavailable: %v", err)
	}
	headers := map[string]string{"Authorization": "Bearer " + tok}

	q := url.Values{}
	q.Set("q", fmt.Sprintf("name contains '%s' and mimeType contains 'image/'", query))
	q.Set("fields", "files(id,name,webViewLink)")
	q.Set("pageSize", "1")

	var result struct {
		Files []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			WebViewLink string `json:"webViewLink"`
		} `json:"files"`
	}
	u := s.driveURL + "/files?" + q.Encode()
	if err := doJSON(ctx, s.client, "image_search", http.MethodGet, u, headers, nil, &result); err != nil {
		return nil, err
	}
	if len(result.Files) == 0 {
		return nil, nil
	}
	return &FoundImage{Name: result.Files[0].Name, Link: result.Files[0].WebViewLink}, nil
}

func (s *studio) GenerateBlog(ctx context.Context, topic, audience string) (*BlogPost, error) {
	if s.completer == nil {
		return nil, Errf("blog_gen", "completion capability not configured")
	}

	research := ""
	if s.search != nil {
		summary, err := s.search.Search(ctx, topic)
		if err == nil {
			research = summary
		}
		// Research failures degrade to model-only writing.
	}

	system := fmt.Sprintf("You are a professional blog writer. Write an engaging, well-structured blog post for %s. Use headings and short paragraphs.", audience)
	user := fmt.Sprintf("Topic: %s", topic)
	if research != "" {
		user += "\n\nResearch notes:\n" + research
	}

	content, err := s.completer.Complete(ctx, system, user)
	if err != nil {
		return nil, Errf("blog_gen", "writing failed: %v", err)
	}
	return &BlogPost{Topic: topic, Content: content}, nil
}
