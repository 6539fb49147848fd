package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const stateTTL = 10 * time.Minute

// Exchanger trades an authorization code for a token. Implemented by services.SpotifyService.
type Exchanger interface {
	ExchangeCodeForTokens(ctx context.Context, code string) (*oauth2.Token, error)
}

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles the Spotify callback for a single CLI authorization.
//
// It validates the state parameter, exchanges the code, and reports the result through [OAuthHandler.Result].
// Only the first callback is processed.
type OAuthHandler struct {
	exchanger   Exchanger
	state       string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a handler expecting state, which should come from shared.GenerateState.
func NewOAuthHandler(exchanger Exchanger, state string) *OAuthHandler {
	return &OAuthHandler{
		exchanger:  exchanger,
		state:      state,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		writeAuthPage(w, http.StatusBadRequest, false, "Callback already processed.")
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.Send(OAuthResult{err: fmt.Errorf("invalid state parameter")})
		writeAuthPage(w, http.StatusBadRequest, false, "Invalid state parameter.")
		return
	}

	code := q.Get("code")
	if code == "" {
		h.Send(OAuthResult{err: fmt.Errorf("authorization failed: %s - %s", q.Get("error"), q.Get("error_description"))})
		writeAuthPage(w, http.StatusBadRequest, false, "Authorization was denied.")
		return
	}

	token, err := h.exchanger.ExchangeCodeForTokens(r.Context(), code)
	if err != nil {
		h.Send(OAuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		writeAuthPage(w, http.StatusInternalServerError, false, "Token exchange failed.")
		return
	}

	h.Send(OAuthResult{Token: token})
	writeAuthPage(w, http.StatusOK, true, "You can close this window and return to the terminal.")
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

// stateStore maps pending OAuth states to the user that started the flow.
type stateStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[string]pendingAuth
	now     func() time.Time
}

type pendingAuth struct {
	userID  string
	expires time.Time
}

func newStateStore(ttl time.Duration) *stateStore {
	return &stateStore{ttl: ttl, pending: make(map[string]pendingAuth), now: time.Now}
}

func (s *stateStore) put(state, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, p := range s.pending {
		if now.After(p.expires) {
			delete(s.pending, k)
		}
	}
	s.pending[state] = pendingAuth{userID: userID, expires: now.Add(s.ttl)}
}

// take consumes state and returns its user. Unknown and expired states report false.
func (s *stateStore) take(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[state]
	if !ok {
		return "", false
	}
	delete(s.pending, state)
	if s.now().After(p.expires) {
		return "", false
	}
	return p.userID, true
}

var authPage = template.Must(template.New("auth").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: {{.Color}}; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

func writeAuthPage(w http.ResponseWriter, status int, ok bool, msg string) {
	data := struct {
		Title   string
		Color   template.CSS
		Message string
	}{Title: "Authorization Failed", Color: "#E22134", Message: msg}
	if ok {
		data.Title, data.Color = "Spotify Connected", "#1DB954"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = authPage.Execute(w, data)
}
