package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vnkhanh/aetherstudy-backend/controllers"
	"github.com/vnkhanh/aetherstudy-backend/models"
	"github.com/vnkhanh/aetherstudy-backend/routes"
	"github.com/vnkhanh/aetherstudy-backend/services"
	"github.com/vnkhanh/aetherstudy-backend/utils"
	"github.com/vnkhanh/aetherstudy-backend/ws"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("controller-secret")
}

// memStore keeps uploaded objects in memory.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (m *memStore) Upload(bucket, path string, body io.Reader, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+path] = data
	return nil
}

func (m *memStore) Remove(bucket string, paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		delete(m.objects, bucket+"/"+p)
		m.removed = append(m.removed, p)
	}
	return nil
}

func (m *memStore) SignedURL(bucket, path string, expiresIn time.Duration) (string, error) {
	return fmt.Sprintf("https://storage.test/sign/%s/%s?expires=%d", bucket, path, int(expiresIn.Seconds())), nil
}

func (m *memStore) PublicURL(bucket, path string) string {
	return "https://storage.test/public/" + bucket + "/" + path
}

func (m *memStore) Download(bucket, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+path]
	if !ok {
		return nil, fmt.Errorf("object %s not found", path)
	}
	return data, nil
}

// stubLLM answers every prompt with the same text.
type stubLLM struct {
	mu       sync.Mutex
	response string
	calls    int
	prompts  []string
}

func (s *stubLLM) Name() string { return "stub" }

func (s *stubLLM) Complete(_ context.Context, _, prompt string, _ services.CompletionOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.prompts = append(s.prompts, prompt)
	return s.response, nil
}

type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
	store  *memStore
	llm    *stubLLM
	hub    *ws.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	env := &testEnv{t: t, db: db, store: newMemStore(), llm: &stubLLM{}, hub: ws.NewHub()}

	generator, err := services.NewGenerator(env.llm, 5000)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	subscriptions := services.NewSubscriptionService(db, nil, "", env.hub)

	env.router = routes.SetupRouter(gin.New(), db, routes.Deps{
		Hub: env.hub,
		AI: &controllers.AIController{
			Generator:     generator,
			Usage:         services.NewUsageService(db, services.DefaultFreeWindow),
			Subscriptions: subscriptions,
			Store:         env.store,
			FileBucket:    "user_files",
		},
		Subscriptions: &controllers.SubscriptionController{Subscriptions: subscriptions},
		Webhooks:      &controllers.WebhookController{Processor: services.NewWebhookProcessor(db, env.hub)},
		Files: &controllers.FileController{
			Store:       env.store,
			FileBucket:  "user_files",
			ImageBucket: "flashcard_images",
		},
	})
	return env
}

type testUser struct {
	id    uuid.UUID
	email string
	token string
}

func (e *testEnv) newUser(email string) testUser {
	e.t.Helper()
	id := uuid.New()
	token, err := utils.GenerateToken(id.String(), email, time.Hour)
	if err != nil {
		e.t.Fatalf("GenerateToken: %v", err)
	}
	return testUser{id: id, email: email, token: token}
}

func (e *testEnv) do(user *testUser, method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+user.token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) send(req *http.Request, user *testUser) *httptest.ResponseRecorder {
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+user.token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body %s", w.Code, want, w.Body.String())
	}
}
