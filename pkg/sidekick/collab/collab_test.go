package collab

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDoJSON_DecodesSuccessResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"name": "ok"}`))
	}))
	defer srv.Close()

	var out struct {
		Name string `json:"name"`
	}
	err := doJSON(context.Background(), srv.Client(), "test", http.MethodGet, srv.URL,
		map[string]string{"Authorization": "Bearer tok"}, nil, &out)
	if err != nil {
		t.Fatalf("doJSON: %v", err)
	}
	if out.Name != "ok" {
		t.Errorf("decoded = %+v", out)
	}
}

func TestDoJSON_ErrorStatusBecomesAPIError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "google style nested error",
			status:  404,
			body:    `{"error": {"code": 404, "message": "Event not found"}}`,
			wantMsg: "Event not found (HTTP 404)",
		},
		{
			name:    "openweathermap style message",
			status:  401,
			body:    `{"cod": 401, "message": "Invalid API key"}`,
			wantMsg: "Invalid API key (HTTP 401)",
		},
		{
			name:    "string error field",
			status:  400,
			body:    `{"error": "bad request"}`,
			wantMsg: "bad request (HTTP 400)",
		},
		{
			name:    "non-json body passes through",
			status:  502,
			body:    "Bad Gateway",
			wantMsg: "Bad Gateway (HTTP 502)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := doJSON(context.Background(), srv.Client(), "svc", http.MethodGet, srv.URL, nil, nil, nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.Service != "svc" {
				t.Errorf("service = %q", apiErr.Service)
			}
			if apiErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", apiErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken("abc").Token(context.Background())
	if err != nil || tok != "abc" {
		t.Errorf("Token() = %q, %v", tok, err)
	}
	if _, err := StaticToken("").Token(context.Background()); err == nil {
		t.Error("empty token should error")
	}
}
