package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/starford/hikelog/internal/hikeservice"
	"github.com/starford/hikelog/internal/live"
	"github.com/starford/hikelog/internal/testutil"
)

// testEnv sets up a temp DB, photo dir, service, broker and router.
// An empty authToken means auth is disabled.
func testEnv(t *testing.T, authToken string) (*hikeservice.Service, http.Handler) {
	t.Helper()
	_, ps := testutil.TestPhotos(t)
	broker := live.NewBroker()
	t.Cleanup(broker.Close)

	svc := hikeservice.NewService(testutil.TestDB(t), broker, hikeservice.WithPhotos(ps))
	router := NewRouter(svc, broker, ps, authToken != "", authToken)
	return svc, router
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func snowdonBody() map[string]any {
	return map[string]any{
		"name":             "Snowdon",
		"location":         "Llanberis, UK",
		"date":             "2025-07-10",
		"parkingAvailable": true,
		"lengthKm":         14.5,
		"difficulty":       "hard",
	}
}

func createHike(t *testing.T, router http.Handler, body map[string]any) int64 {
	t.Helper()
	w := do(t, router, http.MethodPost, "/hikes", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created struct {
		ID int64 `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	return created.ID
}

func TestCreateAndGetHike(t *testing.T) {
	_, router := testEnv(t, "")
	id := createHike(t, router, snowdonBody())

	w := do(t, router, http.MethodGet, "/hikes/"+itoa(id), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var hike map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &hike)
	if hike["name"] != "Snowdon" || hike["difficulty"] != "Hard" {
		t.Errorf("hike = %v", hike)
	}
	if _, ok := hike["description"]; ok {
		t.Error("absent optional field should be omitted")
	}
}

func TestCreateHikeInvalid(t *testing.T) {
	_, router := testEnv(t, "")
	body := snowdonBody()
	body["difficulty"] = "Extreme"
	if w := do(t, router, http.MethodPost, "/hikes", body); w.Code != http.StatusBadRequest {
		t.Errorf("bad difficulty = %d", w.Code)
	}

	body = snowdonBody()
	body["date"] = "10/07/2025"
	if w := do(t, router, http.MethodPost, "/hikes", body); w.Code != http.StatusBadRequest {
		t.Errorf("bad date = %d", w.Code)
	}

	if w := do(t, router, http.MethodPost, "/hikes", "{"); w.Code != http.StatusBadRequest {
		t.Errorf("bad JSON = %d", w.Code)
	}
}

func TestCreateDuplicateHike(t *testing.T) {
	_, router := testEnv(t, "")
	id := createHike(t, router, snowdonBody())

	w := do(t, router, http.MethodPost, "/hikes", snowdonBody())
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate create = %d, want 409", w.Code)
	}
	var dup DuplicateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &dup)
	if dup.Existing.ID != id {
		t.Errorf("existing id = %d, want %d", dup.Existing.ID, id)
	}

	if w := do(t, router, http.MethodPost, "/hikes?force=true", snowdonBody()); w.Code != http.StatusCreated {
		t.Errorf("forced create = %d", w.Code)
	}
}

func TestDuplicateCheckEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodPost, "/hikes/duplicate", snowdonBody()); w.Code != http.StatusNotFound {
		t.Fatalf("empty store = %d", w.Code)
	}
	createHike(t, router, snowdonBody())
	if w := do(t, router, http.MethodPost, "/hikes/duplicate", snowdonBody()); w.Code != http.StatusOK {
		t.Fatalf("after create = %d", w.Code)
	}
	other := snowdonBody()
	other["lengthKm"] = 14.6
	if w := do(t, router, http.MethodPost, "/hikes/duplicate", other); w.Code != http.StatusNotFound {
		t.Fatalf("different length = %d", w.Code)
	}
}

func TestUpdateAndDeleteHike(t *testing.T) {
	_, router := testEnv(t, "")
	id := createHike(t, router, snowdonBody())

	body := snowdonBody()
	body["rating"] = 4.5
	if w := do(t, router, http.MethodPut, "/hikes/"+itoa(id), body); w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPut, "/hikes/999", body); w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d", w.Code)
	}

	if w := do(t, router, http.MethodDelete, "/hikes/"+itoa(id), nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/hikes/"+itoa(id), nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/hikes/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id = %d", w.Code)
	}
}

func TestListAndDeleteAll(t *testing.T) {
	_, router := testEnv(t, "")
	older := snowdonBody()
	older["name"] = "Helvellyn"
	older["date"] = "2024-05-01"
	createHike(t, router, older)
	createHike(t, router, snowdonBody())

	w := do(t, router, http.MethodGet, "/hikes", nil)
	var list HikeListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 2 || list.Hikes[0].Name != "Snowdon" {
		t.Fatalf("list = %+v", list)
	}

	if w := do(t, router, http.MethodDelete, "/hikes", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete all = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/hikes", nil)
	if !strings.Contains(w.Body.String(), `"hikes":[]`) {
		t.Errorf("empty list body = %s", w.Body.String())
	}
}

func TestSearchAndFilter(t *testing.T) {
	_, router := testEnv(t, "")
	createHike(t, router, snowdonBody())
	easy := snowdonBody()
	easy["name"] = "Box Hill"
	easy["location"] = "Surrey"
	easy["lengthKm"] = 5.0
	easy["difficulty"] = "Easy"
	easy["parkingAvailable"] = false
	createHike(t, router, easy)

	w := do(t, router, http.MethodGet, "/hikes/search?q=SNOW", nil)
	var list HikeListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 || list.Hikes[0].Name != "Snowdon" {
		t.Fatalf("search = %+v", list)
	}

	w = do(t, router, http.MethodGet, "/hikes/filter?max_length=10&parking=false", nil)
	list = HikeListResponse{}
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 || list.Hikes[0].Name != "Box Hill" {
		t.Fatalf("filter = %+v", list)
	}

	if w := do(t, router, http.MethodGet, "/hikes/filter?min_length=x", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad min_length = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/hikes/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing q = %d", w.Code)
	}
}

func TestObservationEndpoints(t *testing.T) {
	_, router := testEnv(t, "")
	id := createHike(t, router, snowdonBody())

	w := do(t, router, http.MethodPost, "/hikes/"+itoa(id)+"/observations",
		map[string]any{"observation": "Mist", "timestamp": 1000})
	if w.Code != http.StatusCreated {
		t.Fatalf("create observation = %d, body = %s", w.Code, w.Body.String())
	}
	var o struct {
		ID int64 `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &o)

	w = do(t, router, http.MethodPut, "/observations/"+itoa(o.ID),
		map[string]any{"observation": "Mist lifting", "timestamp": 2000})
	if w.Code != http.StatusOK {
		t.Fatalf("update observation = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/hikes/"+itoa(id)+"/observations", nil)
	var list ObservationListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Observations) != 1 || list.Observations[0].Observation != "Mist lifting" {
		t.Fatalf("observations = %+v", list)
	}

	if w := do(t, router, http.MethodDelete, "/observations/"+itoa(o.ID), nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete observation = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/observations/"+itoa(o.ID), nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted observation = %d", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/hikes/999/observations",
		map[string]any{"observation": "x", "timestamp": 1}); w.Code != http.StatusNotFound {
		t.Errorf("observation on missing hike = %d", w.Code)
	}
}

func TestExportImport(t *testing.T) {
	_, router := testEnv(t, "")
	id := createHike(t, router, snowdonBody())

	w := do(t, router, http.MethodGet, "/hikes/"+itoa(id)+"/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d", w.Code)
	}
	text := w.Body.String()
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/hikes/"+itoa(id)+"/export", nil)
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("conditional export = %d", rec.Code)
	}

	w = do(t, router, http.MethodPost, "/import", text)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate import = %d", w.Code)
	}

	do(t, router, http.MethodDelete, "/hikes", nil)
	w = do(t, router, http.MethodPost, "/import", text)
	if w.Code != http.StatusCreated {
		t.Fatalf("import = %d, body = %s", w.Code, w.Body.String())
	}
	var res hikeservice.ImportResult
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if !res.Success || res.Message != `Imported "Snowdon" with 0 observations` {
		t.Errorf("result = %+v", res)
	}
}

func TestStats(t *testing.T) {
	_, router := testEnv(t, "")
	createHike(t, router, snowdonBody())

	w := do(t, router, http.MethodGet, "/stats", nil)
	var stats StatsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.Hikes != 1 {
		t.Errorf("hikes = %d", stats.Hikes)
	}
	testutil.Eventually(t, time.Second, func() bool {
		w := do(t, router, http.MethodGet, "/stats", nil)
		var s StatsResponse
		_ = json.Unmarshal(w.Body.Bytes(), &s)
		return s.Version == 1
	})
}

func TestCalendarWithoutAdder(t *testing.T) {
	_, router := testEnv(t, "")
	id := createHike(t, router, snowdonBody())
	w := do(t, router, http.MethodPost, "/hikes/"+itoa(id)+"/calendar", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"added":false`) {
		t.Errorf("calendar = %d %s", w.Code, w.Body.String())
	}
}

// Auth.

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/hikes", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/hikes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/hikes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// SSE.

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnv(t, "secret")
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_StreamsChanges(t *testing.T) {
	svc, router := testEnv(t, "")
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	go func() {
		// Headers are flushed only after subscribing, so the change is seen.
		_, _ = svc.CreateHike(context.Background(), testutil.Snowdon(), false)
	}()

	buf := make([]byte, 512)
	var got strings.Builder
	for !strings.Contains(got.String(), "\n\n") {
		n, err := resp.Body.Read(buf)
		got.Write(buf[:n])
		if err != nil {
			break
		}
	}
	if !strings.HasPrefix(got.String(), "event: hikes.changed\nid: 1\n") {
		t.Fatalf("stream = %q", got.String())
	}
}

// Photos.

func uploadPhoto(t *testing.T, router http.Handler, target, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadAndServePhoto(t *testing.T) {
	_, router := testEnv(t, "")
	id := createHike(t, router, snowdonBody())

	w := uploadPhoto(t, router, "/hikes/"+itoa(id)+"/photo", "summit.png", []byte("fake-png-data"))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var hike struct {
		PhotoURI string `json:"photoUri"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &hike)
	if !strings.HasPrefix(hike.PhotoURI, "photos/") {
		t.Fatalf("photoUri = %q", hike.PhotoURI)
	}

	w = do(t, router, http.MethodGet, "/"+hike.PhotoURI, nil)
	if w.Code != http.StatusOK || w.Body.String() != "fake-png-data" {
		t.Fatalf("serve = %d %q", w.Code, w.Body.String())
	}
}

func TestUploadObservationPhoto(t *testing.T) {
	_, router := testEnv(t, "")
	id := createHike(t, router, snowdonBody())
	w := do(t, router, http.MethodPost, "/hikes/"+itoa(id)+"/observations",
		map[string]any{"observation": "Ravens", "timestamp": 1000})
	var o struct {
		ID       int64  `json:"id"`
		PhotoURI string `json:"photoUri"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &o)

	w = uploadPhoto(t, router, "/observations/"+itoa(o.ID)+"/photo", "ravens.jpg", []byte("fake-jpg"))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	_ = json.Unmarshal(w.Body.Bytes(), &o)
	if !strings.HasPrefix(o.PhotoURI, "photos/") {
		t.Fatalf("photoUri = %q", o.PhotoURI)
	}
	if w := do(t, router, http.MethodGet, "/"+o.PhotoURI, nil); w.Code != http.StatusOK {
		t.Fatalf("serve = %d", w.Code)
	}

	if w := uploadPhoto(t, router, "/observations/999/photo", "x.jpg", []byte("x")); w.Code != http.StatusNotFound {
		t.Errorf("missing observation = %d, want 404", w.Code)
	}
}

func TestUploadPhoto_RejectsNonImage(t *testing.T) {
	_, router := testEnv(t, "")
	id := createHike(t, router, snowdonBody())
	if w := uploadPhoto(t, router, "/hikes/"+itoa(id)+"/photo", "notes.txt", []byte("x")); w.Code != http.StatusBadRequest {
		t.Errorf("non-image upload = %d, want 400", w.Code)
	}
}

func TestUploadPhoto_MissingFileField(t *testing.T) {
	_, router := testEnv(t, "")
	id := createHike(t, router, snowdonBody())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "value")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/hikes/"+itoa(id)+"/photo", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file = %d, want 400", w.Code)
	}
}

func TestServePhoto_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/photos/missing.png", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing photo = %d, want 404", w.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestLiveHikesFollowsChanges(t *testing.T) {
	_, ps := testutil.TestPhotos(t)
	broker := live.NewBroker()
	t.Cleanup(broker.Close)
	svc := hikeservice.NewService(testutil.TestDB(t), broker, hikeservice.WithPhotos(ps))

	list := live.NewHikeList(broker, svc.ListHikes, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = list.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	router := NewRouter(svc, broker, ps, false, "")
	router.Get("/live/hikes", LiveHikes(list))

	if _, err := svc.CreateHike(context.Background(), testutil.Snowdon(), false); err != nil {
		t.Fatal(err)
	}
	testutil.Eventually(t, 2*time.Second, func() bool {
		w := do(t, router, http.MethodGet, "/live/hikes", nil)
		var resp LiveListResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		return resp.Version == 1 && resp.Total == 1 && resp.Hikes[0].Name == "Snowdon"
	})
}
