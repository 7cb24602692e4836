package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/humanmixer/api/internal/audio"
	"github.com/humanmixer/api/internal/handler"
	"github.com/humanmixer/api/internal/middleware"
	"github.com/humanmixer/api/internal/model"
	"github.com/humanmixer/api/internal/progress"
	"github.com/humanmixer/api/internal/separation"
	"github.com/humanmixer/api/internal/service"
	"github.com/humanmixer/api/internal/stems"
	"github.com/humanmixer/api/internal/worker"
	ws "github.com/humanmixer/api/internal/websocket"
)

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	progress *progress.Store
	stems    *stems.Repository
	worker   *worker.SeparationWorker
}

// setupApp wires a Fiber app identical to main.go but with the stub
// separator, a temp data dir and Redis test DB 15. Tests that drive
// separation to completion call processSession instead of waiting on the
// asynq server.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	// Redis on localhost, skipped when not running
	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid collision
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() {
		redisClient.FlushDB(context.Background())
		redisClient.Close()
	})

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: "localhost:6379",
		DB:   15,
	})
	t.Cleanup(func() { asynqClient.Close() })

	dataDir := t.TempDir()
	progressStore, err := progress.Open(filepath.Join(dataDir, "progress.db"))
	if err != nil {
		t.Fatalf("open progress store: %v", err)
	}
	t.Cleanup(func() { progressStore.Close() })

	stemRepo, err := stems.New(filepath.Join(dataDir, "sessions"))
	if err != nil {
		t.Fatalf("create stem repo: %v", err)
	}

	validate := validator.New()
	hub := ws.NewHub()
	go hub.Run()

	separator := separation.NewStub()

	sessionService := service.NewSessionService(progressStore, stemRepo, asynqClient)
	mixService := service.NewMixService(progressStore, stemRepo)

	separationHandler := handler.NewSeparationHandler(sessionService)
	mixHandler := handler.NewMixHandler(mixService, validate)
	sessionHandler := handler.NewSessionHandler(sessionService)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Static("/files", stemRepo.Root())

	api := app.Group("/api")

	// Very high limits so tests never get throttled
	sep := api.Group("/separation")
	sep.Post("/start", rateLimiter.SeparationLimit(10000), separationHandler.Start)
	sep.Get("/progress/:sessionId", separationHandler.Progress)
	sep.Post("/cancel/:sessionId", separationHandler.Cancel)

	api.Post("/mix", rateLimiter.MixLimit(10000), mixHandler.Mix)
	api.Delete("/sessions/:sessionId", sessionHandler.Delete)

	return &testApp{
		app:      app,
		progress: progressStore,
		stems:    stemRepo,
		worker:   worker.NewSeparationWorker(progressStore, stemRepo, separator, hub),
	}
}

// processSession runs the separation worker synchronously for a session,
// standing in for the asynq server that main.go runs.
func (ta *testApp) processSession(t *testing.T, sessionID string) {
	t.Helper()
	payload, err := json.Marshal(model.SeparationTaskPayload{SessionID: sessionID})
	if err != nil {
		t.Fatal(err)
	}
	task := asynq.NewTask(separation.TaskTypeSeparation, payload)
	if err := ta.worker.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process session %s: %v", sessionID, err)
	}
}

// makeWavBytes renders a mono sine wave as a WAV file in memory.
func makeWavBytes(t *testing.T, sampleRate int, seconds float64, amp float64) []byte {
	t.Helper()

	samples := int(float64(sampleRate) * seconds)
	data := make([]float64, samples)
	for i := range data {
		data[i] = amp * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate))
	}
	wave := &audio.Waveform{SampleRate: sampleRate, Data: [][]float64{data}}

	path := filepath.Join(t.TempDir(), "upload.wav")
	if err := audio.EncodeFile(path, wave); err != nil {
		t.Fatalf("encode test wav: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

// uploadRequest builds a multipart/form-data separation start request.
func uploadRequest(t *testing.T, fileBytes []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="song.wav"`)
	partHeader.Set("Content-Type", "audio/wav")
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(fileBytes); err != nil {
		t.Fatal(err)
	}
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/separation/start", &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// doJSON performs a request with a JSON body.
func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// parseJSON parses a response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("parse JSON: %v\nbody: %s", err, raw)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
