package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"remnantsync/internal/model"
	"remnantsync/internal/repository"

	"github.com/stretchr/testify/require"
)

type stubLister struct {
	list    []model.ListedRemnant
	err     error
	filters []repository.ListFilter
}

func (s *stubLister) List(ctx context.Context, f repository.ListFilter) ([]model.ListedRemnant, error) {
	s.filters = append(s.filters, f)
	return s.list, s.err
}

func intPtr(n int) *int { return &n }

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  repository.ListFilter
	}{
		{
			name:  "empty",
			query: "",
			want:  repository.ListFilter{},
		},
		{
			name:  "repeated materials and trimmed text",
			query: "material=Quartz&material=+Granite+&material=&stone=+hailey+&status=Available",
			want: repository.ListFilter{
				Materials: []string{"Quartz", "Granite"},
				Stone:     "hailey",
				Status:    "Available",
			},
		},
		{
			name:  "dashed minimums",
			query: "min-width=42&min-height=18.5",
			want:  repository.ListFilter{MinWidth: intPtr(42), MinHeight: intPtr(19)},
		},
		{
			name:  "camel case minimums",
			query: "minWidth=30&minHeight=12",
			want:  repository.ListFilter{MinWidth: intPtr(30), MinHeight: intPtr(12)},
		},
		{
			name:  "dashed wins over camel case",
			query: "min-width=10&minWidth=99",
			want:  repository.ListFilter{MinWidth: intPtr(10)},
		},
		{
			name:  "non numeric ignored",
			query: "min-width=wide&min-height=",
			want:  repository.ListFilter{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			require.Equal(t, tt.want, ParseFilter(q))
		})
	}
}

func TestHandlerListsRemnants(t *testing.T) {
	lister := &stubLister{list: []model.ListedRemnant{
		{ID: 49, Name: "Cambria Hailey", Material: "Quartz", Width: 42, Height: 60, Thickness: "3cm", Status: "hold", IsActive: true},
	}}
	mux := http.NewServeMux()
	Routes(mux, lister, nil)

	for _, path := range []string{"/api/remnants?material=Quartz", "/api/remnants/QUICK?material=Quartz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		require.Equal(t, http.StatusOK, rec.Code, path)
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var got []model.ListedRemnant
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Equal(t, lister.list, got)
	}

	require.Len(t, lister.filters, 2)
	require.Equal(t, lister.filters[0], lister.filters[1])
	require.Equal(t, []string{"Quartz"}, lister.filters[0].Materials)
}

func TestHandlerEmptyListIsArray(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(&stubLister{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/remnants", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandlerListError(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(&stubLister{err: errors.New("pool closed")}, nil).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/remnants", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"Failed to filter remnants"}`, rec.Body.String())
}

func TestRoutesRejectOtherMethods(t *testing.T) {
	mux := http.NewServeMux()
	Routes(mux, &stubLister{}, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/remnants", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCacheKeyIsOrderInsensitive(t *testing.T) {
	a := cacheKey(repository.ListFilter{Materials: []string{"Quartz", "Granite"}, Stone: "Hailey"})
	b := cacheKey(repository.ListFilter{Materials: []string{"Granite", "Quartz"}, Stone: "hailey"})
	require.Equal(t, a, b)

	c := cacheKey(repository.ListFilter{Materials: []string{"Granite"}, MinWidth: intPtr(10)})
	require.NotEqual(t, a, c)
}
