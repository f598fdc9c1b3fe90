package httpclient

import "net/http"

// Auth adds credentials to an outgoing request. A nil Auth sends none.
type Auth func(*http.Request)

// Bearer sends "Authorization: Bearer <token>".
func Bearer(token string) Auth {
	return Header("Authorization", "Bearer "+token)
}

// Header sets one header, e.g. AssemblyAI's raw key in Authorization.
func Header(name, value string) Auth {
	return func(r *http.Request) { r.Header.Set(name, value) }
}

// Query sets one query parameter, the form Gemini-style endpoints accept.
func Query(name, value string) Auth {
	return func(r *http.Request) {
		q := r.URL.Query()
		q.Set(name, value)
		r.URL.RawQuery = q.Encode()
	}
}

func (a Auth) apply(r *http.Request) {
	if a != nil {
		a(r)
	}
}
