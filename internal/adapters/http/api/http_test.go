package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	api "github.com/senselab/datakit/internal/adapters/http/api"
	comp "github.com/senselab/datakit/internal/domain/comp"
	model "github.com/senselab/datakit/internal/domain/model"
	raw "github.com/senselab/datakit/internal/domain/raw"
	record "github.com/senselab/datakit/internal/domain/record"
	logging "github.com/senselab/datakit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logging.Init()
}

// testDeps backs the handlers with real normalizers and an in-memory map.
type testDeps struct {
	compNorm *comp.Normalizer
	rawNorm  *raw.Normalizer

	seen      map[string]bool
	datasets  map[string]model.Dataset
	nextID    int
	congested bool
}

func newTestDeps() *testDeps {
	return &testDeps{
		compNorm: comp.New(),
		rawNorm:  raw.New(),
		seen:     make(map[string]bool),
		datasets: make(map[string]model.Dataset),
	}
}

func (d *testDeps) SeenAndRecord(_ context.Context, id string) bool {
	if d.seen[id] {
		return true
	}
	d.seen[id] = true
	return false
}

func (d *testDeps) Unrecord(_ context.Context, id string) {
	delete(d.seen, id)
}

func (d *testDeps) Ingest(_ context.Context, ds model.Dataset) (string, bool) {
	if d.congested {
		return "", false
	}
	if ds.ID == "" {
		d.nextID++
		ds.ID = fmt.Sprintf("generated-%d", d.nextID)
	}
	ds.ReceivedAt = time.Now()
	d.datasets[ds.ID] = ds
	return ds.ID, true
}

func (d *testDeps) NormalizeComp(ctx context.Context, rec record.Comp, tag string) (record.Comp, error) {
	opts := []comp.NormalizeOption{}
	if tag != "" {
		opts = append(opts, comp.WithVersion(tag))
	}
	return d.compNorm.Normalize(ctx, rec, opts...)
}

func (d *testDeps) NormalizeRaw(ctx context.Context, rec record.Raw, tag string) (record.Raw, error) {
	opts := []raw.NormalizeOption{}
	if tag != "" {
		opts = append(opts, raw.WithVersion(tag))
	}
	return d.rawNorm.Normalize(ctx, rec, opts...)
}

func (d *testDeps) Dataset(_ context.Context, id string) (model.Dataset, error) {
	ds, ok := d.datasets[id]
	if !ok {
		return model.Dataset{}, fmt.Errorf("dataset not found: %s", id)
	}
	return ds, nil
}

func (d *testDeps) Datasets(_ context.Context, limit int) ([]model.Dataset, error) {
	out := make([]model.Dataset, 0, len(d.datasets))
	for _, ds := range d.datasets {
		if len(out) == limit {
			break
		}
		out = append(out, ds)
	}
	return out, nil
}

func (d *testDeps) Stats() map[string]any {
	return map[string]any{"datasets_stored": len(d.datasets)}
}

func newTestServer(deps *testDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, deps).Register(context.Background(), mux)
	return mux
}

const compBody = `{
	"time": [[0, 0.1, 0.2]],
	"trial": [[[1, 2, 3], [4, 5, 6]]],
	"label": ["comp01", "comp02"],
	"topo": [[1, 0], [0, 1], [1, 1]],
	"topolabel": ["ch1", "ch2", "ch3"]
}`

func TestNormalizeEndpoint(t *testing.T) {
	Convey("Given the API server", t, func() {
		mux := newTestServer(newTestDeps())

		Convey("When posting a comp record for the latest version", func() {
			body := fmt.Sprintf(`{"kind":"comp","version":"latest","record":%s}`, compBody)
			req := httptest.NewRequest(http.MethodPost, "/normalize", bytes.NewBufferString(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the normalized record carries an unmixing matrix", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var resp struct {
					Kind   string `json:"kind"`
					Record struct {
						Unmixing [][]float64 `json:"unmixing"`
						Topo     [][]float64 `json:"topo"`
					} `json:"record"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Kind, ShouldEqual, "comp")
				So(resp.Record.Unmixing, ShouldHaveLength, 2)
				So(resp.Record.Unmixing[0], ShouldHaveLength, 3)
				So(resp.Record.Topo, ShouldResemble, [][]float64{{1, 0}, {0, 1}, {1, 1}})
			})

			Convey("And the response carries a request id", func() {
				So(rec.Header().Get("X-Request-ID"), ShouldNotBeEmpty)
			})
		})

		Convey("When posting with an unsupported version", func() {
			body := fmt.Sprintf(`{"kind":"comp","version":"1999","record":%s}`, compBody)
			req := httptest.NewRequest(http.MethodPost, "/normalize", bytes.NewBufferString(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it fails with 400 naming the tag", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(rec.Body.String(), ShouldContainSubstring, "unsupported_version")
				So(rec.Body.String(), ShouldContainSubstring, "1999")
			})
		})

		Convey("When posting a record missing its topography", func() {
			body := `{"kind":"comp","record":{"time":[[0]],"trial":[[[1]]],"label":["c1"],"topolabel":["ch1"],"topo":null}}`
			req := httptest.NewRequest(http.MethodPost, "/normalize", bytes.NewBufferString(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it fails with 400 and the missing field", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(rec.Body.String(), ShouldContainSubstring, "missing_field")
			})
		})

		Convey("When posting an unknown kind", func() {
			body := `{"kind":"spike","record":{}}`
			req := httptest.NewRequest(http.MethodPost, "/normalize", bytes.NewBufferString(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When using the wrong method", func() {
			req := httptest.NewRequest(http.MethodGet, "/normalize", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestDatasetEndpoints(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := newTestDeps()
		mux := newTestServer(deps)

		ingest := func(body string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/datasets", bytes.NewBufferString(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			return rec
		}

		Convey("When ingesting a dataset with a client-supplied ID", func() {
			body := fmt.Sprintf(`{"id":"ds-1","name":"subject01 ica","kind":"comp","record":%s}`, compBody)
			rec := ingest(body)

			Convey("Then it is accepted", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(rec.Body.String(), ShouldContainSubstring, `"ds-1"`)
			})

			Convey("And ingesting the same ID again reports a duplicate", func() {
				again := ingest(body)
				So(again.Code, ShouldEqual, http.StatusOK)
				So(again.Body.String(), ShouldContainSubstring, `"duplicate":true`)
			})

			Convey("And the dataset can be fetched by ID", func() {
				req := httptest.NewRequest(http.MethodGet, "/datasets/ds-1", nil)
				get := httptest.NewRecorder()
				mux.ServeHTTP(get, req)

				So(get.Code, ShouldEqual, http.StatusOK)
				So(get.Body.String(), ShouldContainSubstring, `"kind":"comp"`)
			})

			Convey("And it appears in the list", func() {
				req := httptest.NewRequest(http.MethodGet, "/datasets?limit=10", nil)
				list := httptest.NewRecorder()
				mux.ServeHTTP(list, req)

				So(list.Code, ShouldEqual, http.StatusOK)
				So(list.Body.String(), ShouldContainSubstring, `"ds-1"`)
			})
		})

		Convey("When ingesting without an ID", func() {
			body := fmt.Sprintf(`{"kind":"comp","record":%s}`, compBody)
			rec := ingest(body)

			Convey("Then an ID is generated", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(rec.Body.String(), ShouldContainSubstring, "generated-")
			})
		})

		Convey("When the queue pushes back", func() {
			deps.congested = true
			body := fmt.Sprintf(`{"id":"ds-2","kind":"comp","record":%s}`, compBody)
			rec := ingest(body)

			Convey("Then the client gets 429 and may retry the same ID", func() {
				So(rec.Code, ShouldEqual, http.StatusTooManyRequests)

				deps.congested = false
				retry := ingest(body)
				So(retry.Code, ShouldEqual, http.StatusAccepted)
			})
		})

		Convey("When fetching an unknown dataset", func() {
			req := httptest.NewRequest(http.MethodGet, "/datasets/nope", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When listing with a bad limit", func() {
			req := httptest.NewRequest(http.MethodGet, "/datasets?limit=abc", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestStatsAndHealth(t *testing.T) {
	Convey("Given the API server", t, func() {
		mux := newTestServer(newTestDeps())

		Convey("When fetching stats", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the counters are returned as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "datasets_stored")
			})
		})

		Convey("When fetching health", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the metrics exposition is served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}
