package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sushihentaime/blogcms/internal/common"
	"github.com/sushihentaime/blogcms/internal/postservice"
	"github.com/sushihentaime/blogcms/internal/userservice"
)

const testSecret = "test-secret"

type testServer struct {
	*httptest.Server
}

func newTestServer(t *testing.T, h http.Handler) *testServer {
	ts := httptest.NewServer(h)

	t.Cleanup(ts.Close)

	return &testServer{ts}
}

func readResponse(t *testing.T, res *http.Response) (int, http.Header, envelope) {
	defer res.Body.Close()

	responseBody, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}

	var envelope envelope
	err = json.Unmarshal(responseBody, &envelope)
	if err != nil {
		t.Fatal(err)
	}

	return res.StatusCode, res.Header, envelope
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newBareApplication has no database; only token checks work against it.
func newBareApplication() *application {
	return &application{
		config:      &Config{Environment: "test", Version: "test"},
		logger:      testLogger(),
		userService: userservice.NewUserService(nil, userservice.NewTokenIssuer(testSecret, time.Hour)),
	}
}

// newTestApplication wires the post and user services to a migrated
// postgres container. Queued jobs are recorded by the returned producer.
func newTestApplication(t *testing.T) (*application, *sql.DB, *common.MockMessageProducer) {
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	db := common.TestDB("file://../migrations", t)
	logger := testLogger()
	producer := &common.MockMessageProducer{}

	app := &application{
		config:      &Config{Environment: "test", Version: "test", AppURL: "https://blog.example.com"},
		logger:      logger,
		userService: userservice.NewUserService(db, userservice.NewTokenIssuer(testSecret, time.Hour)),
		postService: postservice.NewPostService(
			db,
			common.NewCache(time.Minute, 2*time.Minute),
			postservice.NewQueueDispatcher(producer),
			postservice.NewDiskImageStore(t.TempDir()),
			logger,
			postservice.Config{BaseURL: "https://blog.example.com"},
		),
	}

	return app, db, producer
}

func (ts *testServer) do(t *testing.T, method, path string, token string, payload any) (int, http.Header, envelope) {
	var body io.Reader
	if payload != nil {
		jsonPayload, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(jsonPayload)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}

	return readResponse(t, res)
}
