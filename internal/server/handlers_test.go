package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.cscs.ch/openchami/chamicore-abbrev/internal/csrf"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/events"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/model"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/store"
	"git.cscs.ch/openchami/chamicore-abbrev/pkg/types"
)

func entryValues(abbr, fullForm, description string) url.Values {
	return url.Values{
		"abbreviation": {abbr},
		"full_form":    {fullForm},
		"description":  {description},
		"csrf_token":   {"test-token"},
	}
}

var errDB = errors.New("database exploded")

// ---------------------------------------------------------------------------
// GET /
// ---------------------------------------------------------------------------

func TestIndex_ListsAllWithoutSearch(t *testing.T) {
	var searched bool
	st := &mockStore{
		listFn: func(context.Context) ([]model.Entry, error) {
			return []model.Entry{
				{ID: 1, Abbreviation: "AI", FullForm: "Artificial Intelligence"},
				{ID: 2, Abbreviation: "API", FullForm: "Application Programming Interface"},
			}, nil
		},
		searchFn: func(context.Context, store.SearchOptions) ([]model.Entry, error) {
			searched = true
			return nil, nil
		},
	}
	router := newTestServer(t, st).Router()

	for _, path := range []string{"/", "/?search=", "/?search=%20%20"} {
		resp := doGet(t, router, path)
		require.Equal(t, http.StatusOK, resp.Code, path)
		assert.Contains(t, resp.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, resp.Body.String(), "Artificial Intelligence")
		assert.Contains(t, resp.Body.String(), "Application Programming Interface")
	}
	assert.False(t, searched)
}

func TestIndex_SearchMatchesAllColumns(t *testing.T) {
	var got store.SearchOptions
	st := &mockStore{
		searchFn: func(_ context.Context, opts store.SearchOptions) ([]model.Entry, error) {
			got = opts
			return []model.Entry{{ID: 5, Abbreviation: "RAM", FullForm: "Random Access Memory", Description: "volatile"}}, nil
		},
	}

	resp := doGet(t, newTestServer(t, st).Router(), "/?search=volatile")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, store.SearchOptions{Query: "volatile", Scope: store.ScopeAll}, got)
	assert.Contains(t, resp.Body.String(), "Random Access Memory")
	assert.Contains(t, resp.Body.String(), `value="volatile"`)
}

func TestIndex_StoreError(t *testing.T) {
	st := &mockStore{listFn: func(context.Context) ([]model.Entry, error) { return nil, errDB }}

	resp := doGet(t, newTestServer(t, st).Router(), "/")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.NotContains(t, resp.Body.String(), errDB.Error())
}

// ---------------------------------------------------------------------------
// GET /get_abbreviations
// ---------------------------------------------------------------------------

func TestGetAbbreviations_SearchesAbbreviationOnly(t *testing.T) {
	var got store.SearchOptions
	st := &mockStore{
		searchFn: func(_ context.Context, opts store.SearchOptions) ([]model.Entry, error) {
			got = opts
			return []model.Entry{
				{ID: 1, Abbreviation: "AI", FullForm: "Artificial Intelligence", Description: "smart"},
				{ID: 2, Abbreviation: "API", FullForm: "Application Programming Interface"},
			}, nil
		},
	}

	resp := doGet(t, newTestServer(t, st).Router(), "/get_abbreviations?search=i")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/json", resp.Header().Get("Content-Type"))
	assert.Equal(t, store.SearchOptions{Query: "i", Scope: store.ScopeAbbreviation}, got)

	var items []types.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	assert.Equal(t, []types.Entry{
		{ID: 1, Abbreviation: "AI", FullForm: "Artificial Intelligence", Description: "smart"},
		{ID: 2, Abbreviation: "API", FullForm: "Application Programming Interface"},
	}, items)
}

func TestGetAbbreviations_EmptyResultIsArray(t *testing.T) {
	st := &mockStore{
		searchFn: func(context.Context, store.SearchOptions) ([]model.Entry, error) { return nil, nil },
	}

	resp := doGet(t, newTestServer(t, st).Router(), "/get_abbreviations?search=zzz")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())
}

func TestGetAbbreviations_UsesSnakeCaseFields(t *testing.T) {
	st := &mockStore{
		searchFn: func(context.Context, store.SearchOptions) ([]model.Entry, error) {
			return []model.Entry{{ID: 9, Abbreviation: "OS", FullForm: "Operating System"}}, nil
		},
	}

	resp := doGet(t, newTestServer(t, st).Router(), "/get_abbreviations")
	assert.JSONEq(t, `[{"id":9,"abbreviation":"OS","full_form":"Operating System","description":""}]`, resp.Body.String())
}

func TestGetAbbreviations_StoreError(t *testing.T) {
	st := &mockStore{
		searchFn: func(context.Context, store.SearchOptions) ([]model.Entry, error) { return nil, errDB },
	}

	resp := doGet(t, newTestServer(t, st).Router(), "/get_abbreviations?search=a")
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "application/problem+json", resp.Header().Get("Content-Type"))
	assert.NotContains(t, resp.Body.String(), errDB.Error())
}

// ---------------------------------------------------------------------------
// GET/POST /create
// ---------------------------------------------------------------------------

func TestCreateForm(t *testing.T) {
	resp := doGet(t, newTestServer(t, &mockStore{}).Router(), "/create")
	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Contains(t, body, "Add Abbreviation")
	assert.Contains(t, body, `name="csrf_token" value="test-token"`)
	assert.Contains(t, body, `action="/create"`)
}

func TestCreate_Success(t *testing.T) {
	var got model.Entry
	st := &mockStore{
		createFn: func(_ context.Context, m model.Entry) (model.Entry, error) {
			got = m
			m.ID = 42
			return m, nil
		},
	}
	pub := &recordingPublisher{}
	router := newTestServer(t, st, WithPublisher(pub)).Router()

	resp := doPostForm(t, router, "/create", entryValues("  AI ", " Artificial Intelligence ", "  kept  "))
	require.Equal(t, http.StatusSeeOther, resp.Code)
	assert.Equal(t, "/", resp.Header().Get("Location"))

	assert.Equal(t, model.Entry{Abbreviation: "AI", FullForm: "Artificial Intelligence", Description: "  kept  "}, got)

	published := pub.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.OpCreated, published[0].Op())
	assert.Equal(t, "42", published[0].Subject)
}

func TestCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		form     url.Values
		wantMsgs []string
	}{
		{
			name:     "missing abbreviation",
			form:     entryValues("", "Artificial Intelligence", ""),
			wantMsgs: []string{"Abbreviation is required."},
		},
		{
			name:     "whitespace-only full form",
			form:     entryValues("AI", "   ", "desc"),
			wantMsgs: []string{"Full form is required."},
		},
		{
			name:     "both missing",
			form:     entryValues(" ", "", ""),
			wantMsgs: []string{"Abbreviation is required.", "Full form is required."},
		},
		{
			name:     "abbreviation too long",
			form:     entryValues(strings.Repeat("A", 51), "x", ""),
			wantMsgs: []string{"Abbreviation must be at most 50 characters."},
		},
		{
			name:     "full form too long",
			form:     entryValues("X", strings.Repeat("x", 101), ""),
			wantMsgs: []string{"Full form must be at most 100 characters."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			st := &mockStore{createFn: func(_ context.Context, m model.Entry) (model.Entry, error) {
				called = true
				return m, nil
			}}
			pub := &recordingPublisher{}

			resp := doPostForm(t, newTestServer(t, st, WithPublisher(pub)).Router(), "/create", tt.form)
			require.Equal(t, http.StatusOK, resp.Code)
			for _, msg := range tt.wantMsgs {
				assert.Contains(t, resp.Body.String(), msg)
			}
			assert.False(t, called)
			assert.Empty(t, pub.published())
		})
	}
}

func TestCreate_RedisplaysSubmittedValues(t *testing.T) {
	resp := doPostForm(t, newTestServer(t, &mockStore{}).Router(), "/create", entryValues("AI", "", "my description"))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `value="AI"`)
	assert.Contains(t, resp.Body.String(), "my description")
}

func TestCreate_InvalidToken(t *testing.T) {
	var called bool
	st := &mockStore{createFn: func(_ context.Context, m model.Entry) (model.Entry, error) {
		called = true
		return m, nil
	}}
	router := newTestServer(t, st, WithCSRF(&stubCSRF{verifyErr: csrf.ErrInvalidToken})).Router()

	resp := doPostForm(t, router, "/create", entryValues("AI", "Artificial Intelligence", ""))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "The form has expired")
	assert.False(t, called)
}

func TestCreate_DuplicateAbbreviation(t *testing.T) {
	st := &mockStore{createFn: func(context.Context, model.Entry) (model.Entry, error) {
		return model.Entry{}, store.ErrConflict
	}}
	pub := &recordingPublisher{}

	resp := doPostForm(t, newTestServer(t, st, WithPublisher(pub)).Router(), "/create", entryValues("AI", "Adobe Illustrator", ""))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "already exists.")
	assert.Empty(t, pub.published())
}

func TestCreate_StoreError(t *testing.T) {
	st := &mockStore{createFn: func(context.Context, model.Entry) (model.Entry, error) {
		return model.Entry{}, errDB
	}}

	resp := doPostForm(t, newTestServer(t, st).Router(), "/create", entryValues("AI", "Artificial Intelligence", ""))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestCreate_PublishFailureStillRedirects(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats down")}

	resp := doPostForm(t, newTestServer(t, &mockStore{}, WithPublisher(pub)).Router(), "/create", entryValues("AI", "Artificial Intelligence", ""))
	assert.Equal(t, http.StatusSeeOther, resp.Code)
	assert.Len(t, pub.published(), 1)
}

// ---------------------------------------------------------------------------
// GET/POST /update/{id}
// ---------------------------------------------------------------------------

func existingEntryStore() *mockStore {
	return &mockStore{
		getFn: func(_ context.Context, id int64) (model.Entry, error) {
			if id != 3 {
				return model.Entry{}, store.ErrNotFound
			}
			return model.Entry{ID: 3, Abbreviation: "AI", FullForm: "Artificial Intelligence", Description: "old"}, nil
		},
	}
}

func TestUpdateForm_Prefilled(t *testing.T) {
	resp := doGet(t, newTestServer(t, existingEntryStore()).Router(), "/update/3")
	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Contains(t, body, "Update Abbreviation")
	assert.Contains(t, body, `action="/update/3"`)
	assert.Contains(t, body, `value="Artificial Intelligence"`)
	assert.Contains(t, body, ">old</textarea>")
}

func TestUpdateForm_NotFound(t *testing.T) {
	router := newTestServer(t, existingEntryStore()).Router()

	for _, path := range []string{"/update/4", "/update/abc", "/update/-1", "/update/0", "/update/99999999999999999999"} {
		resp := doGet(t, router, path)
		assert.Equal(t, http.StatusNotFound, resp.Code, path)
	}
}

func TestUpdate_ReplacesAllFields(t *testing.T) {
	st := existingEntryStore()
	var got model.Entry
	st.updateFn = func(_ context.Context, m model.Entry) (model.Entry, error) {
		got = m
		return m, nil
	}
	pub := &recordingPublisher{}

	resp := doPostForm(t, newTestServer(t, st, WithPublisher(pub)).Router(), "/update/3", entryValues(" ML ", "Machine Learning", ""))
	require.Equal(t, http.StatusSeeOther, resp.Code)
	assert.Equal(t, "/", resp.Header().Get("Location"))
	assert.Equal(t, model.Entry{ID: 3, Abbreviation: "ML", FullForm: "Machine Learning", Description: ""}, got)

	published := pub.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.OpUpdated, published[0].Op())
}

func TestUpdate_NotFoundPerformsNoMutation(t *testing.T) {
	st := existingEntryStore()
	var called bool
	st.updateFn = func(_ context.Context, m model.Entry) (model.Entry, error) {
		called = true
		return m, nil
	}

	resp := doPostForm(t, newTestServer(t, st).Router(), "/update/99", entryValues("ML", "Machine Learning", ""))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.False(t, called)
}

func TestUpdate_ValidationError(t *testing.T) {
	st := existingEntryStore()
	var called bool
	st.updateFn = func(_ context.Context, m model.Entry) (model.Entry, error) {
		called = true
		return m, nil
	}

	resp := doPostForm(t, newTestServer(t, st).Router(), "/update/3", entryValues("AI", "", ""))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "Full form is required.")
	assert.False(t, called)
}

func TestUpdate_Conflict(t *testing.T) {
	st := existingEntryStore()
	st.updateFn = func(context.Context, model.Entry) (model.Entry, error) {
		return model.Entry{}, store.ErrConflict
	}

	resp := doPostForm(t, newTestServer(t, st).Router(), "/update/3", entryValues("API", "Application Programming Interface", ""))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "already exists.")
}

func TestUpdate_DeletedConcurrently(t *testing.T) {
	st := existingEntryStore()
	st.updateFn = func(context.Context, model.Entry) (model.Entry, error) {
		return model.Entry{}, store.ErrNotFound
	}

	resp := doPostForm(t, newTestServer(t, st).Router(), "/update/3", entryValues("AI", "Artificial Intelligence", ""))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUpdate_StoreError(t *testing.T) {
	st := &mockStore{getFn: func(context.Context, int64) (model.Entry, error) {
		return model.Entry{}, errDB
	}}

	resp := doPostForm(t, newTestServer(t, st).Router(), "/update/3", entryValues("AI", "Artificial Intelligence", ""))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

// ---------------------------------------------------------------------------
// GET /delete/{id}
// ---------------------------------------------------------------------------

func TestDelete(t *testing.T) {
	var deleted int64
	st := &mockStore{deleteFn: func(_ context.Context, id int64) error {
		deleted = id
		return nil
	}}
	pub := &recordingPublisher{}

	resp := doGet(t, newTestServer(t, st, WithPublisher(pub)).Router(), "/delete/7")
	require.Equal(t, http.StatusSeeOther, resp.Code)
	assert.Equal(t, "/", resp.Header().Get("Location"))
	assert.Equal(t, int64(7), deleted)

	published := pub.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.OpDeleted, published[0].Op())
	assert.Equal(t, "7", published[0].Subject)
}

func TestDelete_NotFound(t *testing.T) {
	st := &mockStore{deleteFn: func(context.Context, int64) error { return store.ErrNotFound }}
	pub := &recordingPublisher{}

	resp := doGet(t, newTestServer(t, st, WithPublisher(pub)).Router(), "/delete/7")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Contains(t, resp.Body.String(), "Abbreviation 7 does not exist.")
	assert.Empty(t, pub.published())
}

func TestDelete_StoreError(t *testing.T) {
	st := &mockStore{deleteFn: func(context.Context, int64) error { return errDB }}

	resp := doGet(t, newTestServer(t, st).Router(), "/delete/7")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

// ---------------------------------------------------------------------------
// GET /seed
// ---------------------------------------------------------------------------

func TestSeed(t *testing.T) {
	catalog := []model.Entry{
		{Abbreviation: "AI", FullForm: "Artificial Intelligence"},
		{Abbreviation: "API", FullForm: "Application Programming Interface"},
	}
	var got []model.Entry
	st := &mockStore{seedFn: func(_ context.Context, entries []model.Entry) (int, error) {
		got = entries
		return 2, nil
	}}
	pub := &recordingPublisher{}
	router := newTestServer(t, st, WithCatalog(catalog), WithPublisher(pub)).Router()

	resp := doGet(t, router, "/seed")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header().Get("Content-Type"))
	assert.Equal(t, SeedMessage(2), resp.Body.String())
	assert.Equal(t, catalog, got)

	published := pub.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.OpSeeded, published[0].Op())

	metricsResp := doGet(t, router, "/metrics")
	assert.Contains(t, metricsResp.Body.String(), "chamicore_abbrev_entries_seeded_total 2")
}

func TestSeed_NothingInsertedPublishesNothing(t *testing.T) {
	st := &mockStore{seedFn: func(context.Context, []model.Entry) (int, error) { return 0, nil }}
	pub := &recordingPublisher{}

	resp := doGet(t, newTestServer(t, st, WithCatalog([]model.Entry{}), WithPublisher(pub)).Router(), "/seed")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "0 new abbreviations")
	assert.Empty(t, pub.published())
}

func TestSeed_StoreError(t *testing.T) {
	st := &mockStore{seedFn: func(context.Context, []model.Entry) (int, error) { return 0, errDB }}

	resp := doGet(t, newTestServer(t, st).Router(), "/seed")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "application/problem+json", resp.Header().Get("Content-Type"))
}
