package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/himanishpuri/maidata/pkg/maidata"
)

const testMaidata = "&title=Server Song\n&artist=Someone\n&first=0.5\n&lv_5=13+\n&inote_5=(120){4}1,2h[4:1],\n"

// setupTestServer starts the API on a temporary database
func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	svc, err := maidata.NewService(maidata.WithDBPath(filepath.Join(t.TempDir(), "server.sqlite3")))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	srv := NewServer(svc, &ServerConfig{AllowedOrigins: []string{"*"}})
	ts := httptest.NewServer(srv.setupRoutes())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t)

	resp := get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decode[map[string]string](t, resp)["status"])
}

func TestParseEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/parse", ParseRequest{Inote: "(120){4}1,"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[ParseResponse](t, resp)
	require.Equal(t, 3, body.Count)
	assert.Equal(t, "tempo", body.Instructions[0].Kind)
	assert.Equal(t, "subdivision", body.Instructions[1].Kind)
	assert.Equal(t, "note", body.Instructions[2].Kind)
	assert.Equal(t, 9, body.Instructions[2].Span.Col)
}

func TestParseEndpointErrors(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name   string
		body   any
		status int
		line   int
		col    int
	}{
		{"syntax error", ParseRequest{Inote: "(120){4}\n1x5"}, http.StatusBadRequest, 2, 2},
		{"missing inote", ParseRequest{}, http.StatusBadRequest, 0, 0},
		{"not json", "just text", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/parse", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)

			body := decode[ErrorResponse](t, resp)
			assert.Equal(t, tt.status, body.Code)
			assert.Equal(t, tt.line, body.Line)
			assert.Equal(t, tt.col, body.Col)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestMaterializeEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	offset := 1.0
	resp := postJSON(t, ts.URL+"/api/materialize", MaterializeRequest{Inote: "(120){4}1,,2h[4:1],", Offset: &offset})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[NotesResponse](t, resp)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, 1.0, body.Notes[0].Ts)
	assert.Equal(t, "tap", body.Notes[0].Type)
	assert.Equal(t, 2.0, body.Notes[1].Ts)
	require.NotNil(t, body.Notes[1].Dur)
	assert.Equal(t, 0.5, *body.Notes[1].Dur)

	// timing errors are reported as unprocessable with their position
	resp = postJSON(t, ts.URL+"/api/materialize", MaterializeRequest{Inote: "(120)1,"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	errBody := decode[ErrorResponse](t, resp)
	assert.Equal(t, 1, errBody.Line)
	assert.Equal(t, 6, errBody.Col)
}

func TestChartLifecycle(t *testing.T) {
	ts := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/charts", ImportChartRequest{Maidata: testMaidata})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	imported := decode[ImportChartResponse](t, resp)
	id := imported.Chart.ID
	require.NotEmpty(t, id)
	assert.Equal(t, "Server Song", imported.Chart.Title)
	require.Len(t, imported.Chart.Difficulties, 1)
	assert.Equal(t, "Master", imported.Chart.Difficulties[0].Name)
	assert.Equal(t, 2, imported.Chart.Difficulties[0].NoteCount)

	list := decode[ListChartsResponse](t, get(t, ts.URL+"/api/charts"))
	assert.Equal(t, 1, list.Count)

	resp = get(t, ts.URL+"/api/charts/"+id+"/difficulties/master/notes")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	notes := decode[NotesResponse](t, resp)
	require.Equal(t, 2, notes.Count)
	assert.Equal(t, 0.5, notes.Notes[0].Ts)
	assert.Equal(t, "hold", notes.Notes[1].Type)

	resp = get(t, ts.URL+"/api/charts/"+id+"/difficulties/5/inote")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var inote bytes.Buffer
	_, err := inote.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "(120){4}1,2h[4:1],", inote.String())

	resp = get(t, ts.URL+"/api/charts/"+id+"/difficulties/master/midi")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/midi", resp.Header.Get("Content-Type"))
	mid, err := smf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, mid.Tracks)

	resp = get(t, ts.URL+"/api/charts/"+id+"/difficulties/basic/notes")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = get(t, ts.URL+"/api/charts/"+id+"/difficulties/hardest/notes")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/charts/"+id, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusOK, delResp.StatusCode)

	resp = get(t, ts.URL+"/api/charts/"+id)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestImportErrors(t *testing.T) {
	ts := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/charts", ImportChartRequest{Maidata: "&title=Empty\n"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/charts", ImportChartRequest{Maidata: "&title=Bad\n&inote_5=(120){4}\n9,\n"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, 3, body.Line)
	assert.Equal(t, 1, body.Col)
}

func TestCORSAndUnknownRoutes(t *testing.T) {
	ts := setupTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/charts", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp = get(t, ts.URL+"/api/nothing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, http.StatusNotFound, decode[ErrorResponse](t, resp).Code)
}
