package bigquery

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"suppliers/internal"
	"suppliers/internal/config"
	"suppliers/internal/util"
)

func newTestSink(t *testing.T, handler http.HandlerFunc) *Sink {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Config{
		GCPProject:      "proj",
		BigQueryDataset: "suppliers_data",
		BigQueryTable:   "test2",
		BigQueryPollRPS: 1000,
		BigQueryTimeout: 5000,
	}
	sink, err := NewSinkWithOptions(context.Background(), cfg,
		option.WithEndpoint(srv.URL+"/bigquery/v2/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return sink
}

func sampleRows() []internal.TabularRow {
	return []internal.TabularRow{{
		CompanyName: util.StringPtr("ACME"),
		Size:        util.Int64Ptr(200),
		CEO:         util.StringPtr("Jane Doe"),
		LoadDate:    util.StringPtr("2026-10-19"),
	}}
}

func TestReplaceRowsRunsTruncatingLoadJob(t *testing.T) {
	var uploaded string
	polls := 0
	sink := newTestSink(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPost:
			assert.True(t, strings.HasSuffix(r.URL.Path, "/projects/proj/jobs"), r.URL.Path)
			blob, _ := io.ReadAll(r.Body)
			uploaded = string(blob)
			_, _ = io.WriteString(w, `{"jobReference":{"projectId":"proj","jobId":"job-1","location":"US"},"status":{"state":"RUNNING"}}`)
		case http.MethodGet:
			assert.True(t, strings.HasSuffix(r.URL.Path, "/projects/proj/jobs/job-1"), r.URL.Path)
			assert.Equal(t, "US", r.URL.Query().Get("location"))
			polls++
			state := "RUNNING"
			if polls > 1 {
				state = "DONE"
			}
			_, _ = io.WriteString(w, `{"jobReference":{"projectId":"proj","jobId":"job-1","location":"US"},"status":{"state":"`+state+`"}}`)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})

	require.NoError(t, sink.ReplaceRows(context.Background(), sampleRows()))
	assert.Equal(t, 2, polls)
	assert.Contains(t, uploaded, `"WRITE_TRUNCATE"`)
	assert.Contains(t, uploaded, `"CREATE_IF_NEEDED"`)
	assert.Contains(t, uploaded, `"NEWLINE_DELIMITED_JSON"`)
	assert.Contains(t, uploaded, `"company_name":"ACME"`)
}

func TestReplaceRowsReportsJobError(t *testing.T) {
	sink := newTestSink(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"jobReference":{"projectId":"proj","jobId":"job-2"},"status":{"state":"DONE","errorResult":{"reason":"invalid","message":"schema mismatch"}}}`)
	})

	err := sink.ReplaceRows(context.Background(), sampleRows())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema mismatch")
}

func TestEncodeRowsOmitsNullColumns(t *testing.T) {
	blob, err := EncodeRows(sampleRows())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(blob)), "\n")
	require.Len(t, lines, 1)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "ACME", got["company_name"])
	assert.Equal(t, float64(200), got["size"])
	assert.Equal(t, "2026-10-19", got["load_date"])
	assert.NotContains(t, got, "city")
}

func TestTableSchemaMatchesTabularSchema(t *testing.T) {
	schema := TableSchema()
	require.Len(t, schema.Fields, len(internal.TabularSchema))
	assert.Equal(t, "size", schema.Fields[5].Name)
	assert.Equal(t, "INTEGER", schema.Fields[5].Type)
	assert.Equal(t, "DATE", schema.Fields[13].Type)
}
