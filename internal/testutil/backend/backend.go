// Package backend is an in-process fake of the Marrfa REST backend for tests.
// It issues tokens, keeps per-user favorites, serves a small catalog, and
// records every request so tests can assert on headers and call counts.
package backend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Route names used by Calls, Fail and Block.
const (
	RouteJWT            = "POST /jwt"
	RouteListFavorites  = "GET /savedproperty"
	RouteAddFavorite    = "POST /savedreellyproperty"
	RouteRemoveFavorite = "DELETE /savedproperty"
	RoutePostUser       = "POST /users"
	RouteUserPhone      = "GET /userphone"
	RouteUpdatePhone    = "PATCH /userphone"
	RouteInterest       = "POST /registerinterest"
	RouteScheduleCall   = "POST /schedulecall"
	RouteRecommended    = "GET /marrfacollectionspublic"
	RouteUpdateMessage  = "PATCH /updatemessage"
	RouteCityProperties = "GET /cityproperty"
	RouteProperties     = "GET /properties"
	RouteSingle         = "GET /single"
)

// TokenShape selects how POST /jwt encodes the issued token.
type TokenShape string

const (
	TokenField       TokenShape = "token"
	AccessTokenField TokenShape = "accessToken"
	JWTField         TokenShape = "jwt"
	TokenJSONString  TokenShape = "string"
	TokenRawText     TokenShape = "text"
	TokenAbsent      TokenShape = "absent"
)

// ListShape selects how GET /savedproperty wraps the favorites.
type ListShape string

const (
	ListArray      ListShape = "array"
	ListItems      ListShape = "items"
	ListProperties ListShape = "properties"
	ListUnknown    ListShape = "unknown"
)

// Property is the fake's property record.
type Property struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Price  float64  `json:"price"`
	City   string   `json:"city,omitempty"`
	AreaID int      `json:"areaId,omitempty"`
	Images []string `json:"images,omitempty"`
}

// Recorded is a request as the fake saw it.
type Recorded struct {
	Route  string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Backend is the fake server.
type Backend struct {
	Server *httptest.Server

	mu          sync.Mutex
	tokenShape  TokenShape
	listShape   ListShape
	requireAuth bool
	issued      map[string]string // token -> email
	seq         int
	favorites   map[string][]int64
	catalog     map[int64]Property
	phones      map[string]json.RawMessage
	calls       map[string]int
	requests    []Recorded
	failures    map[string]int
	blocks      map[string]chan struct{}
	entered     map[string]chan struct{}
}

// New starts a fake backend that is shut down when t finishes.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		tokenShape:  TokenField,
		listShape:   ListItems,
		requireAuth: true,
		issued:      make(map[string]string),
		favorites:   make(map[string][]int64),
		catalog:     make(map[int64]Property),
		phones:      make(map[string]json.RawMessage),
		calls:       make(map[string]int),
		failures:    make(map[string]int),
		blocks:      make(map[string]chan struct{}),
		entered:     make(map[string]chan struct{}),
	}
	for _, p := range defaultCatalog {
		b.catalog[p.ID] = p
	}
	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Server.Close)
	return b
}

var defaultCatalog = []Property{
	{ID: 101, Name: "Marina Heights", Price: 1250000, City: "Dubai", AreaID: 1, Images: []string{"https://img.example/101.jpg"}},
	{ID: 102, Name: "Creek Vista", Price: 980000, City: "Dubai", AreaID: 2},
	{ID: 103, Name: "Saadiyat Dunes", Price: 2100000, City: "Abu Dhabi", AreaID: 3},
	{ID: 104, Name: "Palm Residences", Price: 3400000, City: "Dubai", AreaID: 1},
}

// URL returns the fake's base URL.
func (b *Backend) URL() string {
	return b.Server.URL
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)

	r.Post("/jwt", b.handleJWT)

	r.Group(func(r chi.Router) {
		r.Use(b.authenticate)
		r.Get("/savedproperty", b.handleListFavorites)
		r.Delete("/savedproperty", b.handleRemoveFavorite)
		r.Post("/savedreellyproperty", b.handleAddFavorite)
		r.Post("/users", b.handleEcho)
		r.Get("/userphone", b.handleUserPhone)
		r.Patch("/userphone", b.handleUpdatePhone)
		r.Post("/registerinterest", b.handleEcho)
		r.Post("/schedulecall", b.handleEcho)
		r.Get("/marrfacollectionspublic/{email}", b.handleRecommended)
		r.Patch("/updatemessage/{messageID}/{email}", b.handleEcho)
	})

	r.Get("/cityproperty", b.handleCityProperties)
	r.Get("/properties", b.handleProperties)
	r.Get("/single", b.handleSingle)
	return r
}

// routeOf maps a request to its route name; parameterized paths collapse to their prefix.
func routeOf(r *http.Request) string {
	path := r.URL.Path
	for _, prefix := range []string{"/marrfacollectionspublic", "/updatemessage"} {
		if strings.HasPrefix(path, prefix+"/") {
			path = prefix
		}
	}
	return r.Method + " " + path
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		route := routeOf(r)

		b.mu.Lock()
		b.calls[route]++
		b.requests = append(b.requests, Recorded{
			Route:  route,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		status := b.failures[route]
		block := b.blocks[route]
		entered := b.entered[route]
		b.mu.Unlock()

		if entered != nil {
			select {
			case entered <- struct{}{}:
			default:
			}
		}
		if block != nil {
			select {
			case <-block:
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		require := b.requireAuth
		_, ok := b.issued[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
		b.mu.Unlock()

		if require && !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetTokenShape changes how /jwt encodes its reply.
func (b *Backend) SetTokenShape(s TokenShape) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokenShape = s
}

// SetListShape changes how /savedproperty wraps its reply.
func (b *Backend) SetListShape(s ListShape) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listShape = s
}

// RequireAuth toggles bearer checking on token-gated routes. On by default.
func (b *Backend) RequireAuth(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requireAuth = on
}

// IssueToken mints a token for email as if /jwt had been called.
func (b *Backend) IssueToken(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueLocked(email)
}

func (b *Backend) issueLocked(email string) string {
	b.seq++
	tok := fmt.Sprintf("tok-%d-%s", b.seq, email)
	b.issued[tok] = email
	return tok
}

// Fail makes every request to route answer with status until cleared with status 0.
func (b *Backend) Fail(route string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, route)
		return
	}
	b.failures[route] = status
}

// Block holds requests to route until the returned release func is called.
// The entered channel receives once per held request.
func (b *Backend) Block(route string) (entered <-chan struct{}, release func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	gate := make(chan struct{})
	in := make(chan struct{}, 16)
	b.blocks[route] = gate
	b.entered[route] = in

	var once sync.Once
	return in, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.blocks, route)
			delete(b.entered, route)
			b.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many requests route has received.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// Requests returns the recorded requests for route, oldest first.
func (b *Backend) Requests(route string) []Recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Recorded
	for _, r := range b.requests {
		if r.Route == route {
			out = append(out, r)
		}
	}
	return out
}

// LastRequest returns the most recent request to route, or nil.
func (b *Backend) LastRequest(route string) *Recorded {
	reqs := b.Requests(route)
	if len(reqs) == 0 {
		return nil
	}
	return &reqs[len(reqs)-1]
}

// SeedFavorites replaces the server-side favorites of email.
func (b *Backend) SeedFavorites(email string, ids ...int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.favorites[email] = append([]int64(nil), ids...)
}

// Favorites returns the server-side favorite IDs of email.
func (b *Backend) Favorites(email string) []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int64(nil), b.favorites[email]...)
}

// AddProperty adds or replaces a catalog entry.
func (b *Backend) AddProperty(p Property) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catalog[p.ID] = p
}

func (b *Backend) handleJWT(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email required"})
		return
	}

	b.mu.Lock()
	tok := b.issueLocked(req.Email)
	shape := b.tokenShape
	b.mu.Unlock()

	switch shape {
	case AccessTokenField:
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": tok})
	case JWTField:
		writeJSON(w, http.StatusOK, map[string]string{"jwt": tok})
	case TokenJSONString:
		writeJSON(w, http.StatusOK, tok)
	case TokenRawText:
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, tok)
	case TokenAbsent:
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"token": tok})
	}
}

func (b *Backend) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	b.mu.Lock()
	items := make([]Property, 0, len(b.favorites[email]))
	for _, id := range b.favorites[email] {
		p, ok := b.catalog[id]
		if !ok {
			p = Property{ID: id}
		}
		items = append(items, p)
	}
	shape := b.listShape
	b.mu.Unlock()

	switch shape {
	case ListArray:
		writeJSON(w, http.StatusOK, items)
	case ListProperties:
		writeJSON(w, http.StatusOK, map[string]any{"properties": items})
	case ListUnknown:
		writeJSON(w, http.StatusOK, map[string]any{"favorites": items})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

func (b *Backend) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   json.Number `json:"id"`
		User string      `json:"user"`
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil || req.User == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id and user required"})
		return
	}
	id, err := req.ID.Int64()
	if err != nil || id == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "numeric id required"})
		return
	}

	b.mu.Lock()
	if !containsID(b.favorites[req.User], id) {
		b.favorites[req.User] = append(b.favorites[req.User], id)
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"message": "saved", "id": id})
}

func (b *Backend) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if email == "" || err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and id required"})
		return
	}

	b.mu.Lock()
	ids := b.favorites[email][:0:0]
	for _, existing := range b.favorites[email] {
		if existing != id {
			ids = append(ids, existing)
		}
	}
	b.favorites[email] = ids
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"message": "removed", "id": id})
}

func (b *Backend) handleEcho(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	if len(body) == 0 {
		body = []byte("null")
	}
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"received": body})
}

func (b *Backend) handleUserPhone(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	b.mu.Lock()
	phone, ok := b.phones[email]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "phone not found"})
		return
	}
	writeJSON(w, http.StatusOK, phone)
}

func (b *Backend) handleUpdatePhone(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	body, _ := io.ReadAll(r.Body)
	if email == "" || !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and phone required"})
		return
	}
	b.mu.Lock()
	b.phones[email] = body
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, json.RawMessage(body))
}

func (b *Backend) handleRecommended(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"email":      chi.URLParam(r, "email"),
		"properties": b.filter(func(p Property) bool { return p.Price < 2000000 }),
	})
}

func (b *Backend) handleCityProperties(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("cityName")
	if city == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cityName required"})
		return
	}
	writeJSON(w, http.StatusOK, b.filter(func(p Property) bool { return strings.EqualFold(p.City, city) }))
}

func (b *Backend) handleProperties(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	areas := map[int]bool{}
	for _, s := range strings.Split(q.Get("areas"), ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			areas[n] = true
		}
	}
	city := q.Get("city")
	writeJSON(w, http.StatusOK, map[string]any{
		"properties": b.filter(func(p Property) bool {
			if len(areas) > 0 && !areas[p.AreaID] {
				return false
			}
			return city == "" || strings.EqualFold(p.City, city)
		}),
	})
}

func (b *Backend) handleSingle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id required"})
		return
	}
	b.mu.Lock()
	p, ok := b.catalog[id]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (b *Backend) filter(keep func(Property) bool) []Property {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []Property{}
	for _, p := range b.catalog {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func containsID(ids []int64, id int64) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
