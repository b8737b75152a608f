package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"remnantsync/internal/model"
	"remnantsync/internal/observability"
	"remnantsync/internal/repository"
)

type Lister interface {
	List(ctx context.Context, f repository.ListFilter) ([]model.ListedRemnant, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

// Routes registers the listing endpoint. The {owner} segment is accepted
// for old links and ignored.
func Routes(mux *http.ServeMux, lister Lister, cache *ResponseCache) {
	h := Handler(lister, cache)
	mux.Handle("GET /api/remnants", h)
	mux.Handle("GET /api/remnants/{owner}", h)
}

func Handler(lister Lister, cache *ResponseCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		filter := ParseFilter(r.URL.Query())
		key := cacheKey(filter)

		if body, ok := cache.Get(ctx, key); ok {
			observability.APIRequestsTotal.WithLabelValues("hit").Inc()
			writeBody(w, http.StatusOK, body)
			return
		}
		if cache == nil {
			observability.APIRequestsTotal.WithLabelValues("disabled").Inc()
		} else {
			observability.APIRequestsTotal.WithLabelValues("miss").Inc()
		}

		list, err := lister.List(ctx, filter)
		if err != nil {
			slog.ErrorContext(ctx, "error filtering remnants", "err", err)
			body, _ := json.Marshal(errorResponse{Error: "Failed to filter remnants"})
			writeBody(w, http.StatusInternalServerError, body)
			return
		}
		if list == nil {
			list = []model.ListedRemnant{}
		}

		body, err := json.Marshal(list)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		cache.Set(ctx, key, body)
		writeBody(w, http.StatusOK, body)
	}
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// ParseFilter reads the listing filters. Blank or non-numeric minimums are
// ignored.
func ParseFilter(q url.Values) repository.ListFilter {
	var f repository.ListFilter
	for _, m := range q["material"] {
		if m = strings.TrimSpace(m); m != "" {
			f.Materials = append(f.Materials, m)
		}
	}
	f.Stone = strings.TrimSpace(q.Get("stone"))
	f.Status = strings.TrimSpace(q.Get("status"))
	f.MinWidth = minimum(q, "min-width", "minWidth")
	f.MinHeight = minimum(q, "min-height", "minHeight")
	return f
}

func minimum(q url.Values, keys ...string) *int {
	for _, k := range keys {
		if _, ok := q[k]; !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(q.Get(k)), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		// Sizes are whole inches, so width >= 42.5 is width >= 43.
		n := int(math.Ceil(v))
		return &n
	}
	return nil
}

func cacheKey(f repository.ListFilter) string {
	materials := append([]string(nil), f.Materials...)
	sort.Strings(materials)

	v := url.Values{}
	v["material"] = materials
	v.Set("stone", strings.ToLower(f.Stone))
	v.Set("status", strings.ToLower(f.Status))
	if f.MinWidth != nil {
		v.Set("min_width", strconv.Itoa(*f.MinWidth))
	}
	if f.MinHeight != nil {
		v.Set("min_height", strconv.Itoa(*f.MinHeight))
	}
	return "remnants:" + v.Encode()
}
