package collab

import (
	"context"
	"net/http"
	"net/url"
)

// Contact is a person record as returned by Search.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// Contacts is the contacts collaborator.
type Contacts interface {
	// Search finds contacts by name or email.
	Search(ctx context.Context, query string) ([]Contact, error)
}

const peopleBaseURL = "https://people.googleapis.com/v1"

// googleContacts talks to the Google People API.
type googleContacts struct {
	tokens  TokenSource
	client  httpDoer
	baseURL string
}

// NewGoogleContacts creates a Contacts backed by the People API.
func NewGoogleContacts(tokens TokenSource) Contacts {
	return &googleContacts{tokens: tokens, client: defaultClient(), baseURL: peopleBaseURL}
}

func (g *googleContacts) Search(ctx context.Context, query string) ([]Contact, error) {
	tok, err := g.tokens.Token(ctx)
	if err != nil {
		return nil, Errf("contacts", "credentials unavailable: %v", err)
	}
	headers := map[string]string{"Authorization": "Bearer " + tok}

	q := url.Values{}
	q.Set("query", query)
	q.Set("readMask", "names,emailAddresses,phoneNumbers")

	var result struct {
		Results []struct {
			Person struct {
				Names []struct {
					DisplayName string `json:"displayName"`
				} `json:"names"`
				EmailAddresses []struct {
					Value string `json:"value"`
				} `json:"emailAddresses"`
				PhoneNumbers []struct {
					Value string `json:"value"`
				} `json:"phoneNumbers"`
			} `json:"person"`
		} `json:"results"`
	}
	u := g.baseURL + "/people:searchContacts?" + q.Encode()
	if err := doJSON(ctx, g.client, "contacts", http.MethodGet, u, headers, nil, &result); err != nil {
		return nil, err
	}

	contacts := make([]Contact, 0, len(result.Results))
	for _, r := range result.Results {
		c := Contact{Name: "(unnamed)", Email: "-", Phone: "-"}
		if len(r.Person.Names) > 0 {
			c.Name = r.Person.Names[0].DisplayName
		}
		if len(r.Person.EmailAddresses) > 0 {
			c.Email = r.Person.EmailAddresses[0].Value
		}
		if len(r.Person.PhoneNumbers) > 0 {
			c.Phone = r.Person.PhoneNumbers[0].Value
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}
